// Package policy holds the data model for qrexec policy rules: service,
// argument and qube specifiers, actions with their parameters, and the
// parsed Rule itself. All specifier sets are closed; dispatch over them is
// by exhaustive switch so a new kind fails to compile everywhere it matters.
package policy

import (
	"regexp"
	"strings"
)

const WildcardToken = "*"

var (
	serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)
	qubeNamePattern    = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)
	tagNamePattern     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ServiceSpecifier is either a literal RPC service name or the wildcard.
type ServiceSpecifier struct {
	Any  bool
	Name string
}

func (s ServiceSpecifier) String() string {
	if s.Any {
		return WildcardToken
	}
	return s.Name
}

// Matches reports whether the specifier covers the requested service name.
func (s ServiceSpecifier) Matches(service string) bool {
	return s.Any || s.Name == service
}

func ParseService(token string) (ServiceSpecifier, *ParseError) {
	if token == WildcardToken {
		return ServiceSpecifier{Any: true}, nil
	}
	if !serviceNamePattern.MatchString(token) {
		return ServiceSpecifier{}, errorf(KindInvalidService,
			"invalid service name %q", token)
	}
	return ServiceSpecifier{Name: token}, nil
}

type ArgumentKind int

const (
	ArgEmpty ArgumentKind = iota
	ArgAny
	ArgSpecific
)

// ArgumentSpecifier is the second rule field: bare "+" (empty argument),
// "*" (any argument), or "+text". Text is stored without the leading "+";
// the plus is a syntactic marker, not data.
type ArgumentSpecifier struct {
	Kind ArgumentKind
	Text string
}

func (a ArgumentSpecifier) String() string {
	switch a.Kind {
	case ArgEmpty:
		return "+"
	case ArgAny:
		return WildcardToken
	case ArgSpecific:
		return "+" + a.Text
	}
	return ""
}

// Matches reports whether the specifier covers the requested argument.
// The empty specifier matches only an empty request argument.
func (a ArgumentSpecifier) Matches(argument string) bool {
	switch a.Kind {
	case ArgAny:
		return true
	case ArgEmpty:
		return argument == ""
	case ArgSpecific:
		return argument == a.Text
	}
	return false
}

func ParseArgument(token string) (ArgumentSpecifier, *ParseError) {
	switch {
	case token == "+":
		return ArgumentSpecifier{Kind: ArgEmpty}, nil
	case token == WildcardToken:
		return ArgumentSpecifier{Kind: ArgAny}, nil
	case strings.HasPrefix(token, "+") && len(token) > 1:
		return ArgumentSpecifier{Kind: ArgSpecific, Text: token[1:]}, nil
	}
	return ArgumentSpecifier{}, errorf(KindInvalidArgumentSyntax,
		"invalid argument %q: expected +, * or +token", token)
}

type QubeKind int

const (
	QubeLiteral QubeKind = iota
	QubeAdminVM
	QubeAnyVM
	QubeDefault
	QubeDispVM
	QubeDispVMNamed
	QubeDispVMTag
	QubeTag
	QubeType
)

// Position is where a qube specifier appears in a rule. Legality of the
// specifier kinds depends on it.
type Position int

const (
	PositionSource Position = iota
	PositionDestination
	PositionParameter
)

func (p Position) String() string {
	switch p {
	case PositionSource:
		return "source"
	case PositionDestination:
		return "destination"
	case PositionParameter:
		return "parameter value"
	}
	return "unknown"
}

// QubeSpecifier is a source, destination, or target-parameter value. Name
// carries the literal qube name, the named-dispvm name, the tag, or the
// type, depending on Kind.
type QubeSpecifier struct {
	Kind QubeKind
	Name string
}

func (q QubeSpecifier) String() string {
	switch q.Kind {
	case QubeLiteral:
		return q.Name
	case QubeAdminVM:
		return "@adminvm"
	case QubeAnyVM:
		return "@anyvm"
	case QubeDefault:
		return "@default"
	case QubeDispVM:
		return "@dispvm"
	case QubeDispVMNamed:
		return "@dispvm:" + q.Name
	case QubeDispVMTag:
		return "@dispvm:@tag:" + q.Name
	case QubeTag:
		return "@tag:" + q.Name
	case QubeType:
		return "@type:" + q.Name
	}
	return ""
}

// ParseQube parses a qube specifier token and enforces the position
// legality rules: @default is legal only as destination or parameter
// value, bare @dispvm is illegal as source, and tag/type/dispvm-by-tag
// specifiers are illegal as parameter values.
func ParseQube(token string, pos Position) (QubeSpecifier, *ParseError) {
	spec, err := parseQubeToken(token)
	if err != nil {
		return QubeSpecifier{}, err
	}
	if err := checkPosition(spec, pos); err != nil {
		return QubeSpecifier{}, err
	}
	return spec, nil
}

func parseQubeToken(token string) (QubeSpecifier, *ParseError) {
	if !strings.HasPrefix(token, "@") {
		if !qubeNamePattern.MatchString(token) {
			return QubeSpecifier{}, errorf(KindInvalidQubeName,
				"invalid qube name %q", token)
		}
		return QubeSpecifier{Kind: QubeLiteral, Name: token}, nil
	}

	switch token {
	case "@adminvm":
		return QubeSpecifier{Kind: QubeAdminVM}, nil
	case "@anyvm":
		return QubeSpecifier{Kind: QubeAnyVM}, nil
	case "@default":
		return QubeSpecifier{Kind: QubeDefault}, nil
	case "@dispvm":
		return QubeSpecifier{Kind: QubeDispVM}, nil
	}

	if rest, ok := strings.CutPrefix(token, "@dispvm:@tag:"); ok {
		if !tagNamePattern.MatchString(rest) {
			return QubeSpecifier{}, errorf(KindInvalidQubeName,
				"invalid tag name %q", rest)
		}
		return QubeSpecifier{Kind: QubeDispVMTag, Name: rest}, nil
	}
	if rest, ok := strings.CutPrefix(token, "@dispvm:"); ok {
		if !qubeNamePattern.MatchString(rest) {
			return QubeSpecifier{}, errorf(KindInvalidQubeName,
				"invalid disposable template name %q", rest)
		}
		return QubeSpecifier{Kind: QubeDispVMNamed, Name: rest}, nil
	}
	if rest, ok := strings.CutPrefix(token, "@tag:"); ok {
		if !tagNamePattern.MatchString(rest) {
			return QubeSpecifier{}, errorf(KindInvalidQubeName,
				"invalid tag name %q", rest)
		}
		return QubeSpecifier{Kind: QubeTag, Name: rest}, nil
	}
	if rest, ok := strings.CutPrefix(token, "@type:"); ok {
		if !tagNamePattern.MatchString(rest) {
			return QubeSpecifier{}, errorf(KindInvalidQubeName,
				"invalid type name %q", rest)
		}
		return QubeSpecifier{Kind: QubeType, Name: rest}, nil
	}

	return QubeSpecifier{}, errorf(KindUnknownQubeKeyword,
		"unknown keyword %q", token)
}

func checkPosition(spec QubeSpecifier, pos Position) *ParseError {
	switch spec.Kind {
	case QubeDefault:
		if pos == PositionSource {
			return errorf(KindDefaultIllegalAsSource,
				"@default is not a valid source")
		}
	case QubeDispVM:
		if pos == PositionSource {
			return errorf(KindDispVMIllegalAsSource,
				"@dispvm is not a valid source")
		}
	case QubeDispVMTag, QubeTag, QubeType:
		if pos == PositionParameter {
			return errorf(KindSpecifierIllegalAsParam,
				"%s is not a valid %s", spec, pos)
		}
	case QubeLiteral, QubeAdminVM, QubeAnyVM, QubeDispVMNamed:
		// legal everywhere
	}
	return nil
}
