// Package session owns the policy files open for editing. Every mutating
// operation revalidates synchronously and returns the file's full
// diagnostic set, and saving is gated on a clean validation pass. A
// session is single-writer, multiple-reader per file: Validate and
// Evaluate may run concurrently with each other, but not with a mutation
// of the same file.
package session

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/qpolicy/qpolicy/internal/parser"
	"github.com/qpolicy/qpolicy/internal/policy"
	"github.com/qpolicy/qpolicy/internal/policyfile"
)

var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidationError refuses a save while errors remain, carrying every
// current diagnostic so the caller can show all of them at once.
type ValidationError struct {
	Name        string
	Diagnostics []parser.Diagnostic
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d validation problem(s) prevent saving", e.Name, len(e.Diagnostics))
}

// Field names one editable part of a rule.
type Field string

const (
	FieldService     Field = "service"
	FieldArgument    Field = "argument"
	FieldSource      Field = "source"
	FieldDestination Field = "destination"
	FieldAction      Field = "action"
	FieldTarget      Field = "target"
)

type Session struct {
	store Store
	files map[string]*policyfile.File
	order []string
}

func New(store Store) *Session {
	return &Session{store: store, files: map[string]*policyfile.File{}}
}

// Open loads a file from the store. Fragments addressed as include/<name>
// may not themselves use !include.
func (s *Session) Open(name string) (*policyfile.File, error) {
	text, err := s.store.Read(name)
	if err != nil {
		return nil, err
	}
	file := policyfile.Load(name, text, !strings.HasPrefix(name, IncludePrefix))
	s.track(file)
	return file, nil
}

// Create adds a new empty file. Names are restricted to alphanumerics,
// underscore and hyphen, optionally behind the include/ prefix.
func (s *Session) Create(name string) (*policyfile.File, error) {
	base := strings.TrimPrefix(name, IncludePrefix)
	if !fileNamePattern.MatchString(base) {
		return nil, fmt.Errorf("invalid policy file name %q: only alphanumerics, underscore and hyphen are allowed", name)
	}
	if _, open := s.files[name]; open {
		return nil, fmt.Errorf("policy file %q is already open", name)
	}
	file := policyfile.Load(name, "", !strings.HasPrefix(name, IncludePrefix))
	s.track(file)
	return file, nil
}

func (s *Session) track(file *policyfile.File) {
	if _, open := s.files[file.Name]; !open {
		s.order = append(s.order, file.Name)
	}
	s.files[file.Name] = file
}

// File returns an open file by name.
func (s *Session) File(name string) (*policyfile.File, bool) {
	file, ok := s.files[name]
	return file, ok
}

// Files returns the open files in open order.
func (s *Session) Files() []*policyfile.File {
	out := make([]*policyfile.File, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.files[name])
	}
	return out
}

// Close discards an open file without saving.
func (s *Session) Close(name string) {
	delete(s.files, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// InsertRule inserts one line of rule text at index and returns the
// file's updated diagnostics.
func (s *Session) InsertRule(name string, index int, text string) ([]parser.Diagnostic, error) {
	file, err := s.mutable(name, index, true)
	if err != nil {
		return nil, err
	}
	file.InsertLine(index, text)
	return file.Validate(), nil
}

// MoveRule moves the line at from to position to.
func (s *Session) MoveRule(name string, from, to int) ([]parser.Diagnostic, error) {
	file, err := s.mutable(name, from, false)
	if err != nil {
		return nil, err
	}
	if to < 0 || to >= len(file.Lines) {
		return nil, fmt.Errorf("%s: line index %d out of range", name, to)
	}
	file.MoveLine(from, to)
	return file.Validate(), nil
}

// DeleteLine removes the line at index.
func (s *Session) DeleteLine(name string, index int) ([]parser.Diagnostic, error) {
	file, err := s.mutable(name, index, false)
	if err != nil {
		return nil, err
	}
	file.DeleteLine(index)
	return file.Validate(), nil
}

// SetLine replaces the raw text of the line at index. The new text goes
// through full classification, so it may turn a rule line into a comment,
// a blank line, or a malformed line.
func (s *Session) SetLine(name string, index int, text string) ([]parser.Diagnostic, error) {
	file, err := s.mutable(name, index, false)
	if err != nil {
		return nil, err
	}
	file.ReplaceLine(index, text)
	return file.Validate(), nil
}

// EditField replaces one field of the parsed rule at index and rewrites
// the line in canonical form. The previous rule is left untouched if the
// new value does not validate.
func (s *Session) EditField(name string, index int, field Field, value string) ([]parser.Diagnostic, error) {
	file, err := s.mutable(name, index, false)
	if err != nil {
		return nil, err
	}
	line := file.Lines[index]
	if line.Kind != parser.LineRule {
		return nil, fmt.Errorf("%s:%d: not an editable rule line", name, index+1)
	}

	rule := *line.Rule
	if err := setField(&rule, field, value); err != nil {
		return nil, fmt.Errorf("%s:%d: %w", name, index+1, err)
	}
	file.ReplaceLine(index, rule.String())
	return file.Validate(), nil
}

func setField(rule *policy.Rule, field Field, value string) error {
	switch field {
	case FieldService:
		spec, err := policy.ParseService(value)
		if err != nil {
			return err
		}
		rule.Service = spec
	case FieldArgument:
		spec, err := policy.ParseArgument(value)
		if err != nil {
			return err
		}
		rule.Argument = spec
	case FieldSource:
		spec, err := policy.ParseQube(value, policy.PositionSource)
		if err != nil {
			return err
		}
		rule.Source = spec
	case FieldDestination:
		spec, err := policy.ParseQube(value, policy.PositionDestination)
		if err != nil {
			return err
		}
		rule.Destination = spec
	case FieldAction:
		return setAction(rule, value)
	case FieldTarget:
		return setTarget(rule, value)
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// setAction switches the action keyword while carrying the existing
// target across the allow/ask boundary; switching to deny drops every
// parameter, since deny admits none.
func setAction(rule *policy.Rule, keyword string) error {
	previous := rule.Action.Target
	if previous == nil {
		previous = rule.Action.DefaultTarget
	}
	switch keyword {
	case "deny":
		rule.Action = policy.Action{Kind: policy.ActionDeny}
	case "allow":
		rule.Action = policy.Action{Kind: policy.ActionAllow, Target: previous, Params: rule.Action.Params}
	case "ask":
		rule.Action = policy.Action{Kind: policy.ActionAsk, DefaultTarget: previous, Params: rule.Action.Params}
	default:
		return fmt.Errorf("unknown action %q", keyword)
	}
	return nil
}

func setTarget(rule *policy.Rule, value string) error {
	spec, err := policy.ParseQube(value, policy.PositionParameter)
	if err != nil {
		return err
	}
	switch rule.Action.Kind {
	case policy.ActionAllow:
		rule.Action.Target = &spec
	case policy.ActionAsk:
		rule.Action.DefaultTarget = &spec
	case policy.ActionDeny:
		return fmt.Errorf("deny rules have no target")
	}
	return nil
}

func (s *Session) mutable(name string, index int, insert bool) (*policyfile.File, error) {
	file, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("policy file %q is not open", name)
	}
	limit := len(file.Lines)
	if insert {
		limit++
	}
	if index < 0 || index >= limit {
		return nil, fmt.Errorf("%s: line index %d out of range", name, index)
	}
	return file, nil
}

// Save persists one file through the store's atomic write. It refuses,
// without touching storage, while any error-severity diagnostic remains.
func (s *Session) Save(name string) error {
	file, ok := s.files[name]
	if !ok {
		return fmt.Errorf("policy file %q is not open", name)
	}
	if !file.CanSave() {
		return &ValidationError{Name: name, Diagnostics: file.Validate()}
	}
	return s.store.Write(name, file.Serialize())
}
