package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDecisionLoggerWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDecisionLogger(&buf)

	decision := Decision{
		Timestamp:   time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		Service:     "qubes.Filecopy",
		Argument:    "report.txt",
		Source:      "work",
		Destination: "vault",
		Matched:     true,
		File:        "50-user",
		Line:        3,
		Rule:        "qubes.Filecopy * work vault allow",
		Action:      "allow",
		DurationMS:  1,
	}

	if err := logger.Write(decision); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var parsed Decision
	if err := json.Unmarshal([]byte(lines[0]), &parsed); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if parsed.Service != "qubes.Filecopy" || parsed.Action != "allow" {
		t.Fatalf("unexpected round trip: %+v", parsed)
	}
	if parsed.Line != 3 {
		t.Fatalf("expected line 3, got %d", parsed.Line)
	}
}

func TestDecisionLoggerAppends(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDecisionLogger(&buf)

	for i := 0; i < 3; i++ {
		if err := logger.Write(Decision{Action: "deny"}); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
}
