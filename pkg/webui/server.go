// Package webui exposes the hub state machine over a JSON HTTP API.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"omniagent/pkg/hub"
	"omniagent/pkg/logx"
	"omniagent/pkg/persistence"
	"omniagent/pkg/proto"
	"omniagent/pkg/version"
)

// maxBodyBytes bounds request bodies; prompts are short text.
const maxBodyBytes = 1 << 20

// Hub is the state machine driven by the API. *hub.Machine satisfies it.
type Hub interface {
	SetMode(kind *proto.AgentKind) error
	Submit(ctx context.Context, text string) error
	Revise(ctx context.Context, text string) error
	Approve(ctx context.Context) error
	Edit(ctx context.Context, text string) error
	Reset() error
	Snapshot() hub.View
}

// RunSource lists recorded runs. *persistence.Ledger satisfies it.
type RunSource interface {
	RecentRuns(ctx context.Context, limit int) ([]persistence.Run, error)
}

// Server is the HTTP API server.
type Server struct {
	hub      Hub
	runs     RunSource
	gatherer prometheus.Gatherer
	logger   *logx.Logger
}

// NewServer creates a server for h. runs and gatherer may be nil, which
// disables /api/runs and /metrics respectively.
func NewServer(h Hub, runs RunSource, gatherer prometheus.Gatherer) *Server {
	return &Server{
		hub:      h,
		runs:     runs,
		gatherer: gatherer,
		logger:   logx.NewLogger("webui"),
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/agents", s.handleAgents)
		r.Post("/mode", s.handleMode)
		r.Post("/submit", s.handleSubmit)
		r.Post("/revise", s.handleRevise)
		r.Post("/approve", s.handleApprove)
		r.Post("/edit", s.handleEdit)
		r.Post("/reset", s.handleReset)
		r.Get("/workspace/preview", s.handlePreview)
		r.Get("/runs", s.handleRuns)
		r.Get("/logs", s.handleLogs)
		r.Get("/healthz", s.handleHealth)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

// StartServer listens on host:port in the background and shuts down when ctx ends.
func (s *Server) StartServer(ctx context.Context, host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting web UI server on %s", ln.Addr())

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down web UI server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:contextcheck // Parent context is cancelled; we need a fresh context for shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed: %v", err)
		}
	}()
	return nil
}

type textRequest struct {
	Text string `json:"text"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type errorResponse struct {
	Error string    `json:"error"`
	State *hub.View `json:"state,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.hub.Snapshot())
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, proto.Catalog())
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !s.decode(w, r, &req) {
		return
	}
	var kind *proto.AgentKind
	if strings.TrimSpace(req.Mode) != "" {
		k, err := proto.ParseAgentKind(req.Mode)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err, nil)
			return
		}
		kind = &k
	}
	s.respond(w, s.hub.SetMode(kind))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, s.hub.Submit(r.Context(), req.Text))
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, s.hub.Revise(r.Context(), req.Text))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.hub.Approve(r.Context()))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, s.hub.Edit(r.Context(), req.Text))
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, s.hub.Reset())
}

// handlePreview serves the current WebArchitect markup as an isolated document.
// The markup is untrusted, so the response is sandboxed with scripts disabled
// and an opaque origin.
func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	view := s.hub.Snapshot()
	if view.Envelope == nil {
		http.Error(w, "no web build to preview", http.StatusNotFound)
		return
	}
	build, ok := view.Envelope.Content.(*proto.WebBuild)
	if !ok {
		http.Error(w, "no web build to preview", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Security-Policy", "sandbox")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if build.CSS != "" {
		_, _ = io.WriteString(w, "<style>"+strings.ReplaceAll(build.CSS, "</", "<\\/")+"</style>\n")
	}
	_, _ = io.WriteString(w, build.HTML)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeJSON(w, http.StatusOK, []persistence.Run{})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw), nil)
			return
		}
		limit = n
	}
	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to load runs: %v", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("failed to load runs"), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	component := query.Get("component")
	sinceStr := query.Get("since")

	var since time.Time
	if sinceStr != "" {
		var err error
		since, err = time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			s.logger.Warn("Invalid since parameter: %s", sinceStr)
			s.writeError(w, http.StatusBadRequest, errors.New("invalid since parameter (use RFC3339)"), nil)
			return
		}
	}

	logs := logx.GetRecentLogEntries(component, since)
	// Limit to 1000 newest lines.
	if len(logs) > 1000 {
		logs = logs[len(logs)-1000:]
	}
	s.writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// respond writes the view on success or maps a hub error to a status code.
func (s *Server) respond(w http.ResponseWriter, err error) {
	view := s.hub.Snapshot()
	if err == nil {
		s.writeJSON(w, http.StatusOK, view)
		return
	}
	s.writeError(w, StatusFor(err), err, &view)
}

// StatusFor maps a hub operation error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, hub.ErrBusy), errors.Is(err, hub.ErrIllegalInput):
		return http.StatusConflict
	case errors.Is(err, hub.ErrInvalidApproval):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), nil)
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error, view *hub.View) {
	if status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed (%d): %v", status, err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), State: view})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}
