package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-assistant/internal/assistant"
	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 64 << 10

// Assistant is the request-level API served over HTTP.
type Assistant interface {
	Handle(ctx context.Context, sessionID, text string) assistant.Result
	UpdateLocation(ctx context.Context, sessionID, location string) (assistant.LocationUpdate, error)
	Turns(sessionID string) []domain.TurnSnapshot
	Sessions() int
	CheckReadiness(ctx context.Context) error
}

// Info is the static configuration reported by /health.
type Info struct {
	GeoProvider string
	SessionTTL  time.Duration
	GeocodeTTL  time.Duration
	ForecastTTL time.Duration
	AlertsTTL   time.Duration
}

// Server exposes the assistant API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	assistant  Assistant
	info       Info
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the assistant routes, /healthz,
// /readyz, and /metrics.
func NewServer(addr string, a Assistant, info Info, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		assistant: a,
		info:      info,
		logger:    logger,
	}

	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("POST /session/location", s.handleLocation)
	mux.HandleFunc("GET /session/{id}/turns", s.handleTurns)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(a))
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer.Handler = s.withRequestLogging(mux)
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type predictRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
}

type locationRequest struct {
	SessionID string `json:"session_id"`
	Location  string `json:"location"`
}

type locationResponse struct {
	Status      string              `json:"status"`
	Location    string              `json:"location,omitempty"`
	Coordinates *domain.Coordinates `json:"coordinates,omitempty"`
	Message     string              `json:"message,omitempty"`
}

type healthTTL struct {
	Session  int64 `json:"session"`
	Geocode  int64 `json:"geocode"`
	Forecast int64 `json:"forecast"`
	Alerts   int64 `json:"alerts"`
}

type healthResponse struct {
	Status      string    `json:"status"`
	GeoProvider string    `json:"geo_provider"`
	Sessions    int       `json:"sessions"`
	TTL         healthTTL `json:"ttl"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.assistant.Handle(r.Context(), req.SessionID, req.Text))
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id must be provided")
		return
	}

	upd, err := s.assistant.UpdateLocation(r.Context(), req.SessionID, req.Location)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, locationResponse{
			Status:      "ok",
			Location:    upd.Location,
			Coordinates: &upd.Coordinates,
		})
	case errors.Is(err, assistant.ErrEmptyLocation),
		errors.Is(err, assistant.ErrLocationTooLong),
		errors.Is(err, assistant.ErrUninterpretableLocation),
		errors.Is(err, assistant.ErrUnknownLocation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		observability.LoggerFromContext(r.Context(), s.logger).Error("location update failed",
			"session_id", req.SessionID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      s.assistant.Turns(id),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		GeoProvider: s.info.GeoProvider,
		Sessions:    s.assistant.Sessions(),
		TTL: healthTTL{
			Session:  seconds(s.info.SessionTTL),
			Geocode:  seconds(s.info.GeocodeTTL),
			Forecast: seconds(s.info.ForecastTTL),
			Alerts:   seconds(s.info.AlertsTTL),
		},
	})
}

// decode reads a JSON body into v, writing a 400 and returning false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		observability.LoggerFromContext(r.Context(), s.logger).Warn("invalid request body",
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestLogging assigns a request id and logs one line per request.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(observability.WithRequestID(r.Context(), id)))

		s.logger.Info("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, locationResponse{Status: "error", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
