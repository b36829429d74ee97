package policy

import "strings"

type ActionKind int

const (
	ActionDeny ActionKind = iota
	ActionAllow
	ActionAsk
)

func (k ActionKind) String() string {
	switch k {
	case ActionDeny:
		return "deny"
	case ActionAllow:
		return "allow"
	case ActionAsk:
		return "ask"
	}
	return ""
}

// Param is an opaque key=value action parameter (user=, notify=, ...).
// Order of appearance is preserved.
type Param struct {
	Key   string
	Value string
}

// Action is the rule verdict. Target is set only for allow target=...,
// DefaultTarget only for ask default_target=...; both are parsed as qube
// specifiers in parameter-value position. Deny admits no parameters.
type Action struct {
	Kind          ActionKind
	Target        *QubeSpecifier
	DefaultTarget *QubeSpecifier
	Params        []Param
}

func (a Action) String() string {
	var b strings.Builder
	b.WriteString(a.Kind.String())
	if a.Target != nil {
		b.WriteString(" target=")
		b.WriteString(a.Target.String())
	}
	if a.DefaultTarget != nil {
		b.WriteString(" default_target=")
		b.WriteString(a.DefaultTarget.String())
	}
	for _, p := range a.Params {
		b.WriteString(" ")
		b.WriteString(p.Key)
		b.WriteString("=")
		b.WriteString(p.Value)
	}
	return b.String()
}

// ParseAction parses the action keyword and its trailing key=value tokens.
// tokens[0] is the keyword. Every problem is collected; indexes in the
// returned errors are offsets into tokens.
func ParseAction(tokens []string) (Action, []TokenError) {
	var errs []TokenError

	var kind ActionKind
	switch tokens[0] {
	case "deny":
		kind = ActionDeny
	case "allow":
		kind = ActionAllow
	case "ask":
		kind = ActionAsk
	default:
		errs = append(errs, TokenError{0, errorf(KindUnknownAction,
			"unknown action %q: expected allow, deny or ask", tokens[0])})
		return Action{}, errs
	}

	action := Action{Kind: kind}

	if kind == ActionDeny && len(tokens) > 1 {
		errs = append(errs, TokenError{1, errorf(KindUnexpectedParametersForDeny,
			"deny does not accept parameters")})
		return Action{}, errs
	}

	seen := map[string]bool{}
	for i, token := range tokens[1:] {
		idx := i + 1
		key, value, found := strings.Cut(token, "=")
		if !found || key == "" {
			errs = append(errs, TokenError{idx, errorf(KindMalformedParameter,
				"malformed parameter %q: expected key=value", token)})
			continue
		}
		if seen[key] {
			errs = append(errs, TokenError{idx, errorf(KindDuplicateParameter,
				"duplicate parameter %q", key)})
			continue
		}
		seen[key] = true

		switch key {
		case "target":
			if kind != ActionAllow {
				errs = append(errs, TokenError{idx, errorf(KindParameterNotApplicable,
					"target= applies only to allow")})
				continue
			}
			spec, err := ParseQube(value, PositionParameter)
			if err != nil {
				errs = append(errs, TokenError{idx, err})
				continue
			}
			action.Target = &spec
		case "default_target":
			if kind != ActionAsk {
				errs = append(errs, TokenError{idx, errorf(KindParameterNotApplicable,
					"default_target= applies only to ask")})
				continue
			}
			spec, err := ParseQube(value, PositionParameter)
			if err != nil {
				errs = append(errs, TokenError{idx, err})
				continue
			}
			action.DefaultTarget = &spec
		default:
			action.Params = append(action.Params, Param{Key: key, Value: value})
		}
	}

	if len(errs) > 0 {
		return Action{}, errs
	}
	return action, nil
}
