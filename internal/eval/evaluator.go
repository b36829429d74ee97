// Package eval answers "what would happen" for a synthetic RPC request
// against an ordered set of policy files: first matching rule wins, files
// in caller order, lines top to bottom, includes evaluated in place. It is
// pure over its inputs and usable without any editor or GUI attached.
package eval

import (
	"sort"
	"strings"

	"github.com/qpolicy/qpolicy/internal/parser"
	"github.com/qpolicy/qpolicy/internal/policy"
	"github.com/qpolicy/qpolicy/internal/policyfile"
)

// Match identifies the rule that decided a request.
type Match struct {
	File string
	Line int
	Rule *policy.Rule
}

// Ruleset is the evaluation input: top-level files in evaluation order and
// the include fragments they may reference by name. A nil Info falls back
// to StaticQubeInfo's defaults (dom0 is the admin VM, no tags, no types).
type Ruleset struct {
	Files     []*policyfile.File
	Fragments map[string]*policyfile.File
	Info      QubeInfo
}

// NewRuleset orders files lexicographically by name, the way on-disk
// policy loaders do.
func NewRuleset(files []*policyfile.File, fragments map[string]*policyfile.File, info QubeInfo) *Ruleset {
	ordered := make([]*policyfile.File, len(files))
	copy(ordered, files)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	return &Ruleset{Files: ordered, Fragments: fragments, Info: info}
}

// Evaluate returns the action of the first rule matching the request, with
// the file and line that decided it. ok is false when nothing matches; the
// caller treats that as implicit deny.
func (rs *Ruleset) Evaluate(req Request) (action policy.Action, match Match, ok bool) {
	info := rs.Info
	if info == nil {
		info = StaticQubeInfo{}
	}
	visited := map[string]bool{}
	for _, file := range rs.Files {
		if action, match, ok := rs.walk(file, req, info, visited); ok {
			return action, match, true
		}
	}
	return policy.Action{}, Match{}, false
}

func (rs *Ruleset) walk(file *policyfile.File, req Request, info QubeInfo, visited map[string]bool) (policy.Action, Match, bool) {
	if visited[file.Name] {
		return policy.Action{}, Match{}, false
	}
	visited[file.Name] = true
	defer delete(visited, file.Name)

	for _, line := range file.Lines {
		switch line.Kind {
		case parser.LineBlank, parser.LineComment, parser.LineMalformed:
			continue
		case parser.LineInclude:
			fragment, found := rs.Fragments[line.Include]
			if !found {
				continue
			}
			if action, match, ok := rs.walk(fragment, req, info, visited); ok {
				return action, match, true
			}
		case parser.LineRule:
			if matches(*line.Rule, req, info) {
				return line.Rule.Action, Match{File: file.Name, Line: line.Number, Rule: line.Rule}, true
			}
		}
	}
	return policy.Action{}, Match{}, false
}

func matches(rule policy.Rule, req Request, info QubeInfo) bool {
	if !rule.Service.Matches(req.Service) {
		return false
	}
	if !rule.Argument.Matches(req.Argument) {
		return false
	}
	if !matchQube(rule.Source, req.Source, false, req, info) {
		return false
	}
	return matchQube(rule.Destination, req.Destination, true, req, info)
}

// matchQube applies one qube specifier to one concrete request endpoint.
// @default matches only a request that names no destination; every other
// specifier requires a named endpoint.
func matchQube(spec policy.QubeSpecifier, name string, destination bool, req Request, info QubeInfo) bool {
	if destination && req.NoDestination {
		return spec.Kind == policy.QubeDefault
	}

	switch spec.Kind {
	case policy.QubeLiteral:
		return name == spec.Name
	case policy.QubeAdminVM:
		return name == "@adminvm" || info.IsAdminVM(name)
	case policy.QubeAnyVM:
		return name != "" && !strings.HasPrefix(name, "@") && !info.IsAdminVM(name)
	case policy.QubeDefault:
		return false
	case policy.QubeDispVM:
		return name == "@dispvm"
	case policy.QubeDispVMNamed:
		return name == "@dispvm:"+spec.Name
	case policy.QubeDispVMTag:
		template, found := strings.CutPrefix(name, "@dispvm:")
		return found && info.HasTag(template, spec.Name)
	case policy.QubeTag:
		return info.HasTag(name, spec.Name)
	case policy.QubeType:
		return info.TypeOf(name) == spec.Name
	}
	return false
}
