package policy

import "strings"

// Rule is one parsed policy line. Immutable after a successful parse;
// edits build a replacement rule at the same position.
type Rule struct {
	Service     ServiceSpecifier
	Argument    ArgumentSpecifier
	Source      QubeSpecifier
	Destination QubeSpecifier
	Action      Action
	LineNumber  int
}

// String renders the canonical single-line form: one space between fields,
// target/default_target first among the action parameters.
func (r Rule) String() string {
	fields := []string{
		r.Service.String(),
		r.Argument.String(),
		r.Source.String(),
		r.Destination.String(),
		r.Action.String(),
	}
	return strings.Join(fields, " ")
}

// Equivalent reports whether two rules match the same requests with the
// same outcome, ignoring line numbers and parameter order. Used for
// redundant-rule detection.
func (r Rule) Equivalent(other Rule) bool {
	if r.Service != other.Service ||
		r.Argument != other.Argument ||
		r.Source != other.Source ||
		r.Destination != other.Destination {
		return false
	}
	return r.Action.equivalent(other.Action)
}

func (a Action) equivalent(b Action) bool {
	if a.Kind != b.Kind || !equalSpec(a.Target, b.Target) ||
		!equalSpec(a.DefaultTarget, b.DefaultTarget) ||
		len(a.Params) != len(b.Params) {
		return false
	}
	params := make(map[string]string, len(a.Params))
	for _, p := range a.Params {
		params[p.Key] = p.Value
	}
	for _, p := range b.Params {
		value, ok := params[p.Key]
		if !ok || value != p.Value {
			return false
		}
	}
	return true
}

func equalSpec(a, b *QubeSpecifier) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
