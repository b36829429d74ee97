package parser

import (
	"fmt"

	"github.com/qpolicy/qpolicy/internal/policy"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one problem found in one line. Column is 1-based byte
// offset of the offending token; Span its length in bytes (0 when the
// problem has no token, e.g. a missing field).
type Diagnostic struct {
	File     string
	Line     int
	Column   int
	Span     int
	Kind     policy.ErrorKind
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	if d.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Severity, d.Message)
}
