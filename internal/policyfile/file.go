// Package policyfile holds the ordered line model for one policy file:
// loading raw text, revalidating on change, the save gate, and byte-stable
// serialization.
package policyfile

import (
	"strings"

	"github.com/qpolicy/qpolicy/internal/parser"
)

// File is one policy file under edit. Lines keep their raw text so a file
// that is loaded and saved without structural edits round-trips exactly.
// AllowInclude is decided by the caller at load time: top-level policy
// files may use !include, include fragments may not nest.
type File struct {
	Name         string
	AllowInclude bool
	Lines        []parser.Line

	trailingNewline bool
}

// Load classifies raw text into lines. An empty text yields an empty file.
func Load(name, text string, allowInclude bool) *File {
	f := &File{
		Name:            name,
		AllowInclude:    allowInclude,
		trailingNewline: strings.HasSuffix(text, "\n"),
	}
	if text == "" {
		return f
	}
	raw := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	f.Lines = make([]parser.Line, 0, len(raw))
	for i, line := range raw {
		f.Lines = append(f.Lines, parser.Classify(name, line, i+1))
	}
	return f
}

// Serialize renders the file back to text. Raw line text is preserved
// verbatim; only lines replaced through structured edits differ from the
// loaded bytes.
func (f *File) Serialize() string {
	if len(f.Lines) == 0 {
		return ""
	}
	var b strings.Builder
	for i, line := range f.Lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line.Raw)
	}
	if f.trailingNewline {
		b.WriteString("\n")
	}
	return b.String()
}

// ReplaceLine swaps the line at index for a reclassified one built from
// raw text, renumbering nothing: line numbers always reflect position.
func (f *File) ReplaceLine(index int, raw string) {
	f.Lines[index] = parser.Classify(f.Name, raw, index+1)
}

// InsertLine inserts raw text at index and renumbers subsequent lines.
func (f *File) InsertLine(index int, raw string) {
	line := parser.Classify(f.Name, raw, index+1)
	f.Lines = append(f.Lines, parser.Line{})
	copy(f.Lines[index+1:], f.Lines[index:])
	f.Lines[index] = line
	f.renumber(index + 1)
	if len(f.Lines) == 1 {
		f.trailingNewline = true
	}
}

// DeleteLine removes the line at index and renumbers subsequent lines.
func (f *File) DeleteLine(index int) {
	f.Lines = append(f.Lines[:index], f.Lines[index+1:]...)
	f.renumber(index)
}

// MoveLine moves the line at from to position to, renumbering the span
// between them. Sibling lines are never re-interpreted by a move.
func (f *File) MoveLine(from, to int) {
	if from == to {
		return
	}
	line := f.Lines[from]
	rest := append(f.Lines[:from], f.Lines[from+1:]...)
	f.Lines = append(rest, parser.Line{})
	copy(f.Lines[to+1:], f.Lines[to:])
	f.Lines[to] = line
	low := from
	if to < low {
		low = to
	}
	f.renumber(low)
}

func (f *File) renumber(from int) {
	for i := from; i < len(f.Lines); i++ {
		if f.Lines[i].Number == i+1 {
			continue
		}
		f.Lines[i] = parser.Classify(f.Name, f.Lines[i].Raw, i+1)
	}
}
