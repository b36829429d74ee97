package report

import (
	"strings"
	"testing"
	"time"

	"github.com/qpolicy/qpolicy/internal/logging"
)

func TestSummarize(t *testing.T) {
	decisions := []logging.Decision{
		{Timestamp: time.Unix(0, 0), Action: "allow", Matched: true, Service: "qubes.Filecopy", Source: "work", File: "50-user", Line: 3, DurationMS: 10},
		{Timestamp: time.Unix(1, 0), Action: "deny", Matched: true, Service: "qubes.Gpg", Source: "personal", File: "50-user", Line: 7, DurationMS: 30},
		{Timestamp: time.Unix(2, 0), Action: "deny", Matched: false, Service: "qubes.Gpg", Source: "untrusted", DurationMS: 20},
		{Timestamp: time.Unix(3, 0), Action: "ask", Matched: true, Service: "qubes.Filecopy", Source: "work", File: "30-default", Line: 1, DurationMS: 15},
	}

	summary := Summarize(decisions)
	if summary.Total != 4 {
		t.Fatalf("expected total 4, got %d", summary.Total)
	}
	if summary.Allowed != 1 || summary.Asked != 1 || summary.Denied != 2 {
		t.Fatalf("unexpected action counts: %+v", summary)
	}
	if summary.Unmatched != 1 {
		t.Fatalf("expected 1 unmatched, got %d", summary.Unmatched)
	}
	if len(summary.TopServices) == 0 || summary.TopServices[0].Key != "qubes.Filecopy" {
		t.Fatalf("expected qubes.Filecopy as top service, got %+v", summary.TopServices)
	}
	if len(summary.TopRules) != 3 {
		t.Fatalf("expected 3 deciding rules, got %+v", summary.TopRules)
	}
	if summary.TopRules[0].Key != "50-user:3" && summary.TopRules[0].Count != 1 {
		t.Fatalf("unexpected top rule: %+v", summary.TopRules[0])
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.Total != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestRenderTextListsLeaders(t *testing.T) {
	summary := Summarize([]logging.Decision{
		{Timestamp: time.Unix(0, 0), Action: "allow", Matched: true, Service: "qubes.Filecopy", Source: "work", File: "50-user", Line: 3, DurationMS: 10},
		{Timestamp: time.Unix(1, 0), Action: "allow", Matched: true, Service: "qubes.Filecopy", Source: "work", File: "50-user", Line: 3, DurationMS: 12},
		{Timestamp: time.Unix(2, 0), Action: "deny", Matched: false, Service: "qubes.Gpg", Source: "untrusted", DurationMS: 20},
	})

	text := RenderText(summary)
	for _, want := range []string{
		"decisions: 3",
		"allow 2",
		"implicit deny 1",
		"qubes.Filecopy",
		"50-user:3",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered text missing %q:\n%s", want, text)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	_, err := RenderJSON(Summary{Total: 1})
	if err != nil {
		t.Fatalf("expected json render ok: %v", err)
	}
}
