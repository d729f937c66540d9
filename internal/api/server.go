package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yangwenmai/sitebook/internal/engine"
	"github.com/yangwenmai/sitebook/internal/intent"
	"github.com/yangwenmai/sitebook/internal/store"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// TurnRunner runs one conversational turn.
type TurnRunner interface {
	Run(ctx context.Context, turn *engine.Turn) (*engine.TurnResult, error)
}

// Executor applies one raw command. It is the only path that mutates
// action items.
type Executor interface {
	Execute(ctx context.Context, raw intent.RawCommand) intent.Outcome
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	store        store.Repository
	turns        TurnRunner
	exec         Executor
	log          zerolog.Logger
	corsOrigin   string
	defaultActor string
	mux          *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigin sets the allowed CORS origin (default "*").
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		if origin != "" {
			s.corsOrigin = origin
		}
	}
}

// WithDefaultActor labels changes from requests that name no actor.
func WithDefaultActor(actor string) Option {
	return func(s *Server) { s.defaultActor = actor }
}

// New creates a new API server.
func New(repo store.Repository, turns TurnRunner, exec Executor, log zerolog.Logger, opts ...Option) *Server {
	srv := &Server{
		store:      repo,
		turns:      turns,
		exec:       exec,
		log:        log,
		corsOrigin: "*",
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.requestLog(s.cors(limitBody(jsonContent(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/actions/execute", s.handleExecute)
	s.mux.HandleFunc("GET /api/lookup", s.handleLookup)
	s.mux.HandleFunc("GET /api/items", s.handleListItems)
	s.mux.HandleFunc("POST /api/items", s.handleCreateItem)
	s.mux.HandleFunc("GET /api/items/{id}", s.handleGetItem)
	s.mux.HandleFunc("GET /api/projects", s.handleListProjects)
	s.mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	s.mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		ev := s.log.Debug()
		if rec.status >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
