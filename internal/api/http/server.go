package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/execution-hub/execution-tracker/internal/application/tracking"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/sse"
)

// Options tunes the router.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc    *tracking.Service
	hub    *sse.Hub
	opts   Options
	logger zerolog.Logger
}

func NewServer(svc *tracking.Service, hub *sse.Hub, opts Options, logger zerolog.Logger) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{
		svc:    svc,
		hub:    hub,
		opts:   opts,
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	timeout := middleware.Timeout(s.opts.RequestTimeout)

	// Streams are long-lived and stay outside the request timeout.
	r.Get("/events/stream", s.streamAll)

	r.Route("/executions", func(r chi.Router) {
		r.Get("/{executionId}/stream", s.streamExecution)

		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Post("/", s.createExecution)
			r.Get("/", s.listExecutions)
			r.Get("/{executionId}", s.getExecutionDetail)
			r.Patch("/{executionId}/end", s.endExecution)
			r.Post("/{executionId}/steps", s.createStep)
			r.Get("/{executionId}/events", s.listEvents)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(timeout)

		r.Get("/healthz", s.healthz)
		r.Get("/stats", s.stats)

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", s.registerAgent)
			r.Get("/", s.listAgents)
			r.Get("/{agentId}", s.getAgent)
		})

		r.Route("/steps", func(r chi.Router) {
			r.Get("/{stepId}", s.getStep)
			r.Patch("/{stepId}/end", s.endStep)
		})

		r.Route("/workers/heartbeat", func(r chi.Router) {
			r.Post("/", s.upsertHeartbeat)
			r.Get("/", s.listHeartbeats)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondServiceError maps tracking errors to status codes.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracking.ErrExecutionNotFound),
		errors.Is(err, tracking.ErrStepNotFound),
		errors.Is(err, tracking.ErrAgentNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, tracking.ErrInvalidFilter):
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.Stats())
}
