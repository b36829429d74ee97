// Package parser splits raw policy text into classified lines and parses
// candidate rule lines into policy.Rule values. All problems are returned
// as diagnostics attached to the line; a single bad field never hides the
// remaining problems in the same line.
package parser

import (
	"github.com/qpolicy/qpolicy/internal/policy"
)

var fieldNames = [...]string{"service", "argument", "source", "destination", "action"}

// parseRuleLine parses the fixed field order: service, argument, source,
// destination, action, then zero or more key=value parameter tokens.
func parseRuleLine(file, raw string, number int, tokens []string, offsets []int) Line {
	var diags []Diagnostic

	addError := func(col, span int, err *policy.ParseError) {
		diags = append(diags, Diagnostic{
			File:     file,
			Line:     number,
			Column:   col,
			Span:     span,
			Kind:     err.Kind,
			Severity: SeverityError,
			Message:  err.Message,
		})
	}

	for i := len(tokens); i < len(fieldNames); i++ {
		diags = append(diags, Diagnostic{
			File:     file,
			Line:     number,
			Kind:     policy.KindMissingField,
			Severity: SeverityError,
			Message:  "missing " + fieldNames[i] + " field",
		})
	}

	rule := policy.Rule{LineNumber: number}

	if len(tokens) > 0 {
		spec, err := policy.ParseService(tokens[0])
		if err != nil {
			addError(offsets[0]+1, len(tokens[0]), err)
		} else {
			rule.Service = spec
		}
	}
	if len(tokens) > 1 {
		spec, err := policy.ParseArgument(tokens[1])
		if err != nil {
			addError(offsets[1]+1, len(tokens[1]), err)
		} else {
			rule.Argument = spec
		}
	}
	if len(tokens) > 2 {
		spec, err := policy.ParseQube(tokens[2], policy.PositionSource)
		if err != nil {
			addError(offsets[2]+1, len(tokens[2]), err)
		} else {
			rule.Source = spec
		}
	}
	if len(tokens) > 3 {
		spec, err := policy.ParseQube(tokens[3], policy.PositionDestination)
		if err != nil {
			addError(offsets[3]+1, len(tokens[3]), err)
		} else {
			rule.Destination = spec
		}
	}
	if len(tokens) > 4 {
		action, errs := policy.ParseAction(tokens[4:])
		for _, te := range errs {
			idx := 4 + te.Index
			addError(offsets[idx]+1, len(tokens[idx]), te.Err)
		}
		if len(errs) == 0 {
			rule.Action = action
		}
	}

	if len(diags) > 0 {
		return Line{Kind: LineMalformed, Raw: raw, Number: number, Diagnostics: diags}
	}
	return Line{Kind: LineRule, Raw: raw, Number: number, Rule: &rule}
}
