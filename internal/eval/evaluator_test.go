package eval

import (
	"testing"

	"github.com/qpolicy/qpolicy/internal/policy"
	"github.com/qpolicy/qpolicy/internal/policyfile"
)

func ruleset(t *testing.T, files map[string]string, fragments map[string]string, info QubeInfo) *Ruleset {
	t.Helper()
	var list []*policyfile.File
	for name, text := range files {
		file := policyfile.Load(name, text, true)
		if diags := file.Validate(); len(diags) != 0 {
			for _, d := range diags {
				if d.Severity == "error" {
					t.Fatalf("fixture %s does not parse: %v", name, diags)
				}
			}
		}
		list = append(list, file)
	}
	frags := map[string]*policyfile.File{}
	for name, text := range fragments {
		frags[name] = policyfile.Load(name, text, false)
	}
	return NewRuleset(list, frags, info)
}

func TestFirstMatchWithinFile(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "qubes.Filecopy * work vault deny\nqubes.Filecopy * work vault allow\n",
	}, nil, nil)

	action, match, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "work", Destination: "vault"})
	if !ok {
		t.Fatalf("expected a match")
	}
	if action.Kind != policy.ActionDeny {
		t.Fatalf("expected first rule (deny) to win, got %v", action.Kind)
	}
	if match.Line != 1 {
		t.Fatalf("expected line 1, got %d", match.Line)
	}
}

func TestFilesScannedInNameOrder(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"90-default": "qubes.Filecopy * work vault allow\n",
		"30-user":    "qubes.Filecopy * work vault deny\n",
	}, nil, nil)

	action, match, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "work", Destination: "vault"})
	if !ok || action.Kind != policy.ActionDeny {
		t.Fatalf("expected 30-user deny to win, got %v (file %s)", action.Kind, match.File)
	}
	if match.File != "30-user" {
		t.Fatalf("expected match in 30-user, got %s", match.File)
	}
}

func TestNoMatchIsImplicitDeny(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "qubes.Filecopy * work vault allow\n",
	}, nil, nil)

	_, _, ok := rs.Evaluate(Request{Service: "qubes.Gpg", Source: "work", Destination: "vault"})
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestWildcardServiceAndArgument(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "* * work vault allow\n",
	}, nil, nil)

	_, _, ok := rs.Evaluate(Request{Service: "qubes.Anything", Argument: "x", Source: "work", Destination: "vault"})
	if !ok {
		t.Fatalf("expected wildcard rule to match")
	}
}

func TestEmptyArgumentSpecifier(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "qubes.Gpg + work vault allow\n",
	}, nil, nil)

	if _, _, ok := rs.Evaluate(Request{Service: "qubes.Gpg", Source: "work", Destination: "vault"}); !ok {
		t.Fatalf("empty specifier must match empty request argument")
	}
	if _, _, ok := rs.Evaluate(Request{Service: "qubes.Gpg", Argument: "x", Source: "work", Destination: "vault"}); ok {
		t.Fatalf("empty specifier must not match a non-empty argument")
	}
}

func TestAskDefaultTargetCase(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "qubes.Filecopy * work @default ask default_target=vault\n",
	}, nil, nil)

	action, _, ok := rs.Evaluate(Request{
		Service:       "qubes.Filecopy",
		Argument:      "anything",
		Source:        "work",
		NoDestination: true,
	})
	if !ok {
		t.Fatalf("expected match")
	}
	if action.Kind != policy.ActionAsk {
		t.Fatalf("expected ask, got %v", action.Kind)
	}
	if action.DefaultTarget == nil || action.DefaultTarget.Name != "vault" {
		t.Fatalf("expected default_target vault, got %+v", action.DefaultTarget)
	}
}

func TestAllowTargetCase(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "qubes.Filecopy * work @default allow target=vault\n",
	}, nil, nil)

	action, _, ok := rs.Evaluate(Request{
		Service:       "qubes.Filecopy",
		Argument:      "anything",
		Source:        "work",
		NoDestination: true,
	})
	if !ok || action.Kind != policy.ActionAllow {
		t.Fatalf("expected allow, got ok=%v %v", ok, action.Kind)
	}
	if action.Target == nil || action.Target.Kind != policy.QubeLiteral || action.Target.Name != "vault" {
		t.Fatalf("expected target vault, got %+v", action.Target)
	}
}

func TestDefaultMatchesOnlyNoDestination(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "qubes.Filecopy * work @default allow target=vault\n",
	}, nil, nil)

	if _, _, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "work", Destination: "vault"}); ok {
		t.Fatalf("@default must not match an explicit destination")
	}
}

func TestAnyVMExcludesAdminVM(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "qubes.Filecopy * @anyvm @anyvm allow\n",
	}, nil, nil)

	if _, _, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "work", Destination: "personal"}); !ok {
		t.Fatalf("@anyvm must match concrete qubes")
	}
	if _, _, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "dom0", Destination: "personal"}); ok {
		t.Fatalf("@anyvm must not match the admin VM")
	}
}

func TestAdminVMSpecifier(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "qubes.Filecopy * work @adminvm allow\n",
	}, nil, nil)

	if _, _, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "work", Destination: "dom0"}); !ok {
		t.Fatalf("@adminvm must match the admin VM by name")
	}
}

func TestTagAndTypeMatching(t *testing.T) {
	info := StaticQubeInfo{
		Tags:  map[string][]string{"work": {"corp"}},
		Types: map[string]string{"vault": "AppVM"},
	}
	rs := ruleset(t, map[string]string{
		"50-user": "qubes.Filecopy * @tag:corp @type:AppVM allow\n",
	}, nil, info)

	if _, _, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "work", Destination: "vault"}); !ok {
		t.Fatalf("expected tag/type rule to match supplied metadata")
	}
	if _, _, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "personal", Destination: "vault"}); ok {
		t.Fatalf("expected untagged source not to match")
	}
}

func TestDispVMDestinations(t *testing.T) {
	info := StaticQubeInfo{Tags: map[string][]string{"anon-dvm": {"whonix"}}}
	rs := ruleset(t, map[string]string{
		"10-a": "qubes.OpenInVM * work @dispvm:@tag:whonix allow\n",
		"20-b": "qubes.OpenInVM * work @dispvm:work-dvm allow target=keyvm\n",
		"30-c": "qubes.OpenInVM * work @dispvm ask\n",
	}, nil, info)

	action, match, ok := rs.Evaluate(Request{Service: "qubes.OpenInVM", Source: "work", Destination: "@dispvm:anon-dvm"})
	if !ok || match.File != "10-a" {
		t.Fatalf("expected dispvm-by-tag match in 10-a, got ok=%v file=%s", ok, match.File)
	}
	_ = action

	_, match, ok = rs.Evaluate(Request{Service: "qubes.OpenInVM", Source: "work", Destination: "@dispvm:work-dvm"})
	if !ok || match.File != "10-a" && match.File != "20-b" {
		t.Fatalf("unexpected match: ok=%v file=%s", ok, match.File)
	}

	_, match, ok = rs.Evaluate(Request{Service: "qubes.OpenInVM", Source: "work", Destination: "@dispvm"})
	if !ok || match.File != "30-c" {
		t.Fatalf("expected bare @dispvm match in 30-c, got ok=%v file=%s", ok, match.File)
	}
}

func TestIncludeEvaluatedInPlace(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "!include include/shared\nqubes.Filecopy * work vault allow\n",
	}, map[string]string{
		"include/shared": "qubes.Filecopy * work vault deny\n",
	}, nil)

	action, match, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "work", Destination: "vault"})
	if !ok || action.Kind != policy.ActionDeny {
		t.Fatalf("expected fragment deny to win, got %v", action.Kind)
	}
	if match.File != "include/shared" {
		t.Fatalf("expected match attributed to fragment, got %s", match.File)
	}
}

func TestMissingIncludeIsSkipped(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "!include include/ghost\nqubes.Filecopy * work vault allow\n",
	}, nil, nil)

	_, _, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "work", Destination: "vault"})
	if !ok {
		t.Fatalf("expected evaluation to continue past missing include")
	}
}

func TestMalformedLinesSkipped(t *testing.T) {
	rs := ruleset(t, map[string]string{
		"50-user": "total garbage\nqubes.Filecopy * work vault allow\n",
	}, nil, nil)

	_, match, ok := rs.Evaluate(Request{Service: "qubes.Filecopy", Source: "work", Destination: "vault"})
	if !ok || match.Line != 2 {
		t.Fatalf("expected malformed line skipped, match on line 2; got ok=%v line=%d", ok, match.Line)
	}
}

func TestReorderingNonMatchingRulesIsStable(t *testing.T) {
	a := "qubes.Gpg + work keyvm deny\nqubes.Other * work vault deny\nqubes.Filecopy * work vault allow\n"
	b := "qubes.Other * work vault deny\nqubes.Gpg + work keyvm deny\nqubes.Filecopy * work vault allow\n"
	req := Request{Service: "qubes.Filecopy", Source: "work", Destination: "vault"}

	for _, text := range []string{a, b} {
		rs := ruleset(t, map[string]string{"50-user": text}, nil, nil)
		action, _, ok := rs.Evaluate(req)
		if !ok || action.Kind != policy.ActionAllow {
			t.Fatalf("reordering non-matching rules changed the result")
		}
	}
}
