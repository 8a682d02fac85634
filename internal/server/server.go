// Package server exposes the simulation engine over HTTP and streams run
// events to websocket clients.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"campaignsim/internal/orchestrator"
	apperrors "campaignsim/internal/platform/errors"
	"campaignsim/internal/platform/otel"
	"campaignsim/internal/types"
)

// maxBodyBytes caps scenario uploads.
const maxBodyBytes = 4 << 20

type Server struct {
	Router  *http.ServeMux
	hub     *Hub
	engine  *orchestrator.Engine
	logger  *slog.Logger
	metrics *metrics
}

// SimulateResponse is the body returned by POST /api/simulate.
type SimulateResponse struct {
	ID       string          `json:"id"`
	Result   types.RunResult `json:"result"`
	Analysis types.Analysis  `json:"analysis"`
}

// ValidateResponse lists the workflow in execution order.
type ValidateResponse struct {
	Valid bool     `json:"valid"`
	Order []string `json:"order"`
}

type errorResponse struct {
	Code     string            `json:"code"`
	Error    string            `json:"error"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func NewServer(engine *orchestrator.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	hub := NewHub(logger)
	go hub.run()

	s := &Server{
		Router:  mux,
		hub:     hub,
		engine:  engine,
		logger:  logger,
		metrics: newMetrics(),
	}

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/simulate", s.handleSimulate)
	mux.HandleFunc("/api/validate", s.handleValidate)
	mux.Handle("/metrics", s.metrics.handler())

	// CORS for local dev: wrap mux
	s.Router = http.NewServeMux()
	s.Router.Handle("/", withCORS(mux))
	return s
}

// Close stops the event hub and disconnects websocket clients. In-flight
// requests still complete; their events are dropped.
func (s *Server) Close() {
	s.hub.stop()
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	serveWS(s.hub, w, r)
}

func (s *Server) decodeScenario(w http.ResponseWriter, r *http.Request) (types.Scenario, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return types.Scenario{}, false
	}
	var sc types.Scenario
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "INVALID_JSON", Error: err.Error()})
		return types.Scenario{}, false
	}
	if sc.Request.WorkspaceID == "" {
		sc.Request.WorkspaceID = sc.Workspace.WorkspaceID
	}
	return sc, true
}

// handleSimulate runs one simulation synchronously. Progress is mirrored to
// websocket clients as sim_start, result, analysis and done (or error).
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.decodeScenario(w, r)
	if !ok {
		return
	}
	id := uuid.NewString()

	ctx, span := otel.Tracer().Start(r.Context(), "simulate")
	defer span.End()
	span.SetAttributes(
		attribute.String("simulation.id", id),
		attribute.String("workspace.id", sc.Workspace.WorkspaceID),
		attribute.Int("workflow.nodes", len(sc.Nodes())),
	)

	s.hub.broadcastJSON(newEvent("sim_start", map[string]any{
		"id":          id,
		"workspaceId": sc.Workspace.WorkspaceID,
		"nodes":       len(sc.Nodes()),
	}))

	s.metrics.activeRuns.Inc()
	run, err := s.engine.RunSimulation(ctx, sc.Workspace, sc.Nodes(), sc.Request)
	s.metrics.activeRuns.Dec()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(w, id, err)
		return
	}

	analysis := orchestrator.Analyze(sc.Workspace, run)
	s.metrics.observeRun(run, analysis)
	span.SetAttributes(
		attribute.Int64("simulation.samples", int64(run.SampleCount)),
		attribute.Bool("simulation.partial", run.Partial),
		attribute.String("simulation.decision", string(analysis.Decision)),
	)
	s.logger.Info("simulation finished",
		"id", id,
		"workspace", sc.Workspace.WorkspaceID,
		"samples", run.SampleCount,
		"stop", run.StopReason,
		"decision", analysis.Decision,
		"elapsed", run.Elapsed)

	s.hub.broadcastJSON(newEvent("result", map[string]any{"id": id, "result": run}))
	s.hub.broadcastJSON(newEvent("analysis", map[string]any{"id": id, "analysis": analysis}))
	s.hub.broadcastJSON(newEvent("done", map[string]any{"id": id, "elapsedMs": run.Elapsed.Milliseconds()}))

	writeJSON(w, http.StatusOK, SimulateResponse{ID: id, Result: run, Analysis: analysis})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.decodeScenario(w, r)
	if !ok {
		return
	}
	order, err := s.engine.Validate(sc.Workspace, sc.Nodes(), sc.Request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, Order: order})
}

func (s *Server) fail(w http.ResponseWriter, id string, err error) {
	code := apperrors.CodeOf(err)
	s.metrics.observeError(strings.ToLower(string(code)))
	s.logger.Warn("simulation failed", "id", id, "code", code, "err", err)
	s.hub.broadcastJSON(newEvent("error", map[string]any{
		"id":    id,
		"code":  code,
		"error": err.Error(),
	}))
	writeError(w, err)
}

func statusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeConfiguration:
		return http.StatusBadRequest
	case apperrors.CodePartialResultTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Code: string(apperrors.CodeOf(err)), Error: err.Error()}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		resp.Metadata = appErr.Metadata
	}
	writeJSON(w, statusFor(apperrors.CodeOf(err)), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
