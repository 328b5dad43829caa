package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/phasewise"
	"github.com/aretw0/phasewise/internal/logging"
	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine defines what the HTTP API needs from the session engine.
type Engine interface {
	ports.SessionEngine
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Server serves the JSON session API.
type Server struct {
	Engine   Engine
	Streams  *StreamManager
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Get("/events", s.SubscribeEvents)

	r.Post("/sessions", s.StartSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.GetSession)
		r.Post("/submit", s.Submit)
		r.Post("/collect", s.Collect)
		r.Post("/transition", s.Transition)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartRequest is the body of POST /sessions. An empty id is generated.
type StartRequest struct {
	SessionID string `json:"session_id"`
}

// SubmitRequest is the body of POST /sessions/{id}/submit.
type SubmitRequest struct {
	Fields map[string]any `json:"fields"`
}

// CollectRequest is the body of POST /sessions/{id}/collect.
type CollectRequest struct {
	PhaseID string         `json:"phase_id"`
	Fields  map[string]any `json:"fields"`
}

// TransitionRequest is the body of POST /sessions/{id}/transition.
type TransitionRequest struct {
	Target string `json:"target"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Phase   string `json:"phase,omitempty"`
	Allowed string `json:"allowed,omitempty"`
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if !s.decode(w, r, &body, true) {
		return
	}
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}

	snap, err := s.Engine.Start(r.Context(), body.SessionID)
	if err != nil {
		s.fail(w, "StartSession", err)
		return
	}
	s.respond(w, http.StatusCreated, snap)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Engine.Status(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	s.respond(w, http.StatusOK, snap)
}

// Submit handles POST /sessions/{id}/submit.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	var body SubmitRequest
	if !s.decode(w, r, &body, false) {
		return
	}
	res, err := s.Engine.Submit(r.Context(), chi.URLParam(r, "sessionID"), body.Fields)
	s.result(w, "Submit", res, err)
}

// Collect handles POST /sessions/{id}/collect.
func (s *Server) Collect(w http.ResponseWriter, r *http.Request) {
	var body CollectRequest
	if !s.decode(w, r, &body, false) {
		return
	}
	res, err := s.Engine.Collect(r.Context(), chi.URLParam(r, "sessionID"), body.PhaseID, body.Fields)
	s.result(w, "Collect", res, err)
}

// Transition handles POST /sessions/{id}/transition.
func (s *Server) Transition(w http.ResponseWriter, r *http.Request) {
	var body TransitionRequest
	if !s.decode(w, r, &body, true) {
		return
	}
	res, err := s.Engine.Transition(r.Context(), chi.URLParam(r, "sessionID"), body.Target)
	s.result(w, "Transition", res, err)
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.Engine.Graph().Definition())
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"app":     "phasewise-http",
		"version": phasewise.Version,
		"graph":   s.Engine.Graph().Name(),
	})
}

func (s *Server) result(w http.ResponseWriter, op string, res *domain.Result, err error) {
	if err != nil {
		s.fail(w, op, err)
		return
	}
	if res.Changes != nil {
		if payload, err := json.Marshal(res.Changes); err == nil {
			s.Streams.Broadcast(res.SessionID, string(payload))
		}
	}
	s.respond(w, http.StatusOK, res)
}

// decode reads a JSON body. An empty body is accepted when optional is set.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
	s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
	return false
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var illegal *domain.IllegalTargetError
	switch {
	case errors.As(err, &illegal):
		status = http.StatusConflict
		resp.Phase = illegal.Phase
		resp.Allowed = illegal.Allowed
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrPhaseNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPhaseMismatch), errors.Is(err, domain.ErrSessionCompleted):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "status", status, "err", err)
	}
	s.respond(w, status, resp)
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// SubscribeEvents handles the GET /events request (SSE).
//
// Without session_id the stream carries graph reload signals. With it, the
// stream carries the session diffs produced by every mutation. The optional
// watch parameter ("phase", "fields", "visits", comma separated) drops diffs
// that change none of the listed parts.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		events, err := s.Engine.Watch(r.Context())
		if err != nil {
			s.respond(w, http.StatusNotImplemented, ErrorResponse{Error: fmt.Sprintf("watch error: %v", err)})
			return
		}
		streamHeaders(w)
		fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: reload\ndata: %s\n\n", s.Engine.Graph().Name())
				flusher.Flush()
			}
		}
	}

	s.logger.Info("SSE: subscribing to session updates", "session_id", sessionID)
	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	streamHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		watch = strings.Split(raw, ",")
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !matches(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func streamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func matches(msg string, watch []string) bool {
	var diff domain.SessionDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, part := range watch {
		switch strings.TrimSpace(part) {
		case "phase":
			if diff.CurrentPhase != nil || diff.Completed != nil {
				return true
			}
		case "fields":
			if len(diff.Fields) > 0 {
				return true
			}
		case "visits":
			if len(diff.Visits) > 0 {
				return true
			}
		}
	}
	return false
}
