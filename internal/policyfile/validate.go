package policyfile

import (
	"strconv"

	"github.com/qpolicy/qpolicy/internal/parser"
	"github.com/qpolicy/qpolicy/internal/policy"
)

// Validate recomputes the full diagnostic set from the current lines. It is
// pure: no state is read besides the lines and the include flag, and no
// state is written, so calling it twice on unchanged content yields
// identical output. Per-line problems come straight from classification;
// the only cross-line check is the redundant-rule warning, and the only
// contextual check is the include flag.
func (f *File) Validate() []parser.Diagnostic {
	var diags []parser.Diagnostic
	var seen []*policy.Rule

	for _, line := range f.Lines {
		switch line.Kind {
		case parser.LineMalformed:
			diags = append(diags, line.Diagnostics...)
		case parser.LineInclude:
			if !f.AllowInclude {
				diags = append(diags, parser.Diagnostic{
					File:     f.Name,
					Line:     line.Number,
					Column:   1,
					Kind:     policy.KindIncludeNotAllowed,
					Severity: parser.SeverityError,
					Message:  "!include is not allowed in this file",
				})
			}
		case parser.LineRule:
			for _, earlier := range seen {
				if line.Rule.Equivalent(*earlier) {
					diags = append(diags, parser.Diagnostic{
						File:     f.Name,
						Line:     line.Number,
						Column:   1,
						Kind:     policy.KindRedundantRule,
						Severity: parser.SeverityWarning,
						Message: "rule is unreachable: identical to rule on line " +
							strconv.Itoa(earlier.LineNumber),
					})
					break
				}
			}
			seen = append(seen, line.Rule)
		case parser.LineBlank, parser.LineComment:
		}
	}
	return diags
}

// CanSave reports whether the file may be persisted: no line carries an
// error. Warnings (redundant rules) do not block saving.
func (f *File) CanSave() bool {
	for _, d := range f.Validate() {
		if d.Severity == parser.SeverityError {
			return false
		}
	}
	return true
}
