// Package server exposes the evaluator over HTTP so confirmation dialogs
// and tooling can ask "what would this call do" without reparsing policy
// themselves. One endpoint, POST /v1/evaluate, plus /metrics.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/qpolicy/qpolicy/internal/eval"
	"github.com/qpolicy/qpolicy/internal/logging"
	"github.com/qpolicy/qpolicy/internal/observability"
)

const maxRequestBytes = 1 << 16

type Server struct {
	ruleset     *eval.Ruleset
	decisionLog *logging.DecisionLogger
	metrics     *observability.Metrics
	mux         *http.ServeMux
}

func New(ruleset *eval.Ruleset) (*Server, error) {
	if ruleset == nil {
		return nil, errors.New("ruleset is required")
	}
	s := &Server{ruleset: ruleset, mux: http.NewServeMux()}
	s.mux.HandleFunc("/v1/evaluate", s.handleEvaluate)
	return s, nil
}

func (s *Server) SetDecisionLogger(logger *logging.DecisionLogger) {
	s.decisionLog = logger
}

func (s *Server) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type evaluateRequest struct {
	Service       string `json:"service"`
	Argument      string `json:"argument"`
	Source        string `json:"source"`
	Destination   string `json:"destination"`
	NoDestination bool   `json:"no_destination"`
}

type evaluateResponse struct {
	Action  string `json:"action"`
	Matched bool   `json:"matched"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Rule    string `json:"rule,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req evaluateRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Service == "" || req.Source == "" {
		http.Error(w, "service and source are required", http.StatusBadRequest)
		return
	}
	if req.Destination == "" && !req.NoDestination {
		http.Error(w, "destination or no_destination is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	action, match, matched := s.ruleset.Evaluate(eval.Request{
		Service:       req.Service,
		Argument:      req.Argument,
		Source:        req.Source,
		Destination:   req.Destination,
		NoDestination: req.NoDestination,
	})
	elapsed := time.Since(start)

	resp := evaluateResponse{Action: "deny", Matched: matched}
	if matched {
		resp.Action = action.Kind.String()
		resp.File = match.File
		resp.Line = match.Line
		resp.Rule = match.Rule.String()
	}

	s.metrics.ObserveEvaluation(resp.Action, matched, elapsed.Seconds())
	if s.decisionLog != nil {
		_ = s.decisionLog.Write(logging.Decision{
			Timestamp:     start,
			Service:       req.Service,
			Argument:      req.Argument,
			Source:        req.Source,
			Destination:   req.Destination,
			NoDestination: req.NoDestination,
			Matched:       matched,
			File:          resp.File,
			Line:          resp.Line,
			Rule:          resp.Rule,
			Action:        resp.Action,
			DurationMS:    elapsed.Milliseconds(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
