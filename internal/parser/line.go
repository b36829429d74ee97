package parser

import (
	"strings"
	"unicode"

	"github.com/qpolicy/qpolicy/internal/policy"
)

const includeDirective = "!include"

type LineKind int

const (
	LineBlank LineKind = iota
	LineComment
	LineInclude
	LineRule
	LineMalformed
)

// Line is one classified line of a policy file. Raw always preserves the
// exact source text so untouched lines round-trip byte for byte.
type Line struct {
	Kind        LineKind
	Raw         string
	Number      int
	Include     string       // set for LineInclude
	Rule        *policy.Rule // set for LineRule
	Diagnostics []Diagnostic // set for LineMalformed
}

// Classify turns one raw line into a Line variant. Classification itself
// never fails; anything that is not blank, comment or include is handed to
// the rule parser, and its problems are carried on a LineMalformed.
func Classify(file, raw string, number int) Line {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Line{Kind: LineBlank, Raw: raw, Number: number}
	}
	if strings.HasPrefix(trimmed, "#") {
		return Line{Kind: LineComment, Raw: raw, Number: number}
	}

	tokens, offsets := tokenize(raw)

	if tokens[0] == includeDirective {
		return classifyInclude(file, raw, number, tokens, offsets)
	}
	if strings.HasPrefix(tokens[0], "!") {
		return Line{
			Kind:   LineMalformed,
			Raw:    raw,
			Number: number,
			Diagnostics: []Diagnostic{{
				File:     file,
				Line:     number,
				Column:   offsets[0] + 1,
				Span:     len(tokens[0]),
				Kind:     policy.KindUnknownDirective,
				Severity: SeverityError,
				Message:  "unknown directive " + tokens[0],
			}},
		}
	}

	return parseRuleLine(file, raw, number, tokens, offsets)
}

func classifyInclude(file, raw string, number int, tokens []string, offsets []int) Line {
	switch {
	case len(tokens) < 2:
		return Line{
			Kind:   LineMalformed,
			Raw:    raw,
			Number: number,
			Diagnostics: []Diagnostic{{
				File:     file,
				Line:     number,
				Kind:     policy.KindMissingField,
				Severity: SeverityError,
				Message:  "!include requires a path",
			}},
		}
	case len(tokens) > 2:
		return Line{
			Kind:   LineMalformed,
			Raw:    raw,
			Number: number,
			Diagnostics: []Diagnostic{{
				File:     file,
				Line:     number,
				Column:   offsets[2] + 1,
				Span:     len(tokens[2]),
				Kind:     policy.KindUnexpectedToken,
				Severity: SeverityError,
				Message:  "unexpected token after !include path",
			}},
		}
	}
	return Line{Kind: LineInclude, Raw: raw, Number: number, Include: tokens[1]}
}

// tokenize splits on runs of whitespace and records each token's byte
// offset into the raw line. Tokenization never fails; wrong token counts
// are the parser's concern.
func tokenize(raw string) ([]string, []int) {
	var tokens []string
	var offsets []int
	start := -1
	for i, r := range raw {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, raw[start:i])
				offsets = append(offsets, start)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, raw[start:])
		offsets = append(offsets, start)
	}
	return tokens, offsets
}
