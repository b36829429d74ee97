package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Decision is written as a single JSON object per evaluated request.
type Decision struct {
	Timestamp     time.Time `json:"ts"`
	Service       string    `json:"service"`
	Argument      string    `json:"argument"`
	Source        string    `json:"source"`
	Destination   string    `json:"destination"`
	NoDestination bool      `json:"no_destination,omitempty"`
	Matched       bool      `json:"matched"`
	File          string    `json:"file,omitempty"`
	Line          int       `json:"line,omitempty"`
	Rule          string    `json:"rule,omitempty"`
	Action        string    `json:"action"`
	DurationMS    int64     `json:"duration_ms"`
}

type DecisionLogger struct {
	w io.Writer
}

func NewDecisionLogger(w io.Writer) *DecisionLogger {
	return &DecisionLogger{w: w}
}

func OpenDecisionLog(path string) (*DecisionLogger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewDecisionLogger(file), file.Close, nil
}

func (l *DecisionLogger) Write(decision Decision) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return err
	}
	_, err = l.w.Write(append(data, '\n'))
	return err
}
