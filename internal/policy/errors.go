package policy

import "fmt"

type ErrorKind string

const (
	KindMissingField                ErrorKind = "missing_field"
	KindUnexpectedToken             ErrorKind = "unexpected_token"
	KindUnknownDirective            ErrorKind = "unknown_directive"
	KindInvalidService              ErrorKind = "invalid_service"
	KindInvalidArgumentSyntax       ErrorKind = "invalid_argument_syntax"
	KindInvalidQubeName             ErrorKind = "invalid_qube_name"
	KindUnknownQubeKeyword          ErrorKind = "unknown_qube_keyword"
	KindDefaultIllegalAsSource      ErrorKind = "default_illegal_as_source"
	KindDispVMIllegalAsSource       ErrorKind = "dispvm_illegal_as_source"
	KindSpecifierIllegalAsParam     ErrorKind = "specifier_illegal_as_parameter"
	KindUnknownAction               ErrorKind = "unknown_action"
	KindUnexpectedParametersForDeny ErrorKind = "unexpected_parameters_for_deny"
	KindParameterNotApplicable      ErrorKind = "parameter_not_applicable"
	KindDuplicateParameter          ErrorKind = "duplicate_parameter"
	KindMalformedParameter          ErrorKind = "malformed_parameter"
	KindIncludeNotAllowed           ErrorKind = "include_not_allowed"
	KindRedundantRule               ErrorKind = "redundant_rule"
)

// ParseError is a single problem found while validating one field of a rule.
// Parsing never raises; errors travel as values so every problem in a line
// can be reported at once.
type ParseError struct {
	Kind    ErrorKind
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

func errorf(kind ErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// TokenError attributes a ParseError to a token offset within the action
// token list, so the caller can map it back to a column in the raw line.
type TokenError struct {
	Index int
	Err   *ParseError
}
