// Package server exposes the retrieval and chat API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lexrag/lexrag/internal/auth"
	"github.com/lexrag/lexrag/internal/chatlog"
	"github.com/lexrag/lexrag/internal/generate"
	"github.com/lexrag/lexrag/internal/memory"
	"github.com/lexrag/lexrag/internal/query"
	"github.com/lexrag/lexrag/internal/retriever"
)

// Config holds configuration for the HTTP server.
type Config struct {
	Host           string
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string

	APIKey    string
	JWTSecret string
	JWTExpiry time.Duration
}

// Server is the HTTP API server. Protected routes sit behind the auth
// middleware; health probes do not.
type Server struct {
	server    *http.Server
	router    *chi.Mux
	logger    *slog.Logger
	retriever *retriever.Retriever
	generator *generate.Generator
	processor *query.Processor
	memory    *memory.Store
	chatLog   *chatlog.Log
	tokens    *auth.TokenManager
}

// New creates the API server and mounts all routes.
func New(cfg Config, ret *retriever.Retriever, gen *generate.Generator, proc *query.Processor, mem *memory.Store, log *chatlog.Log) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var tokens *auth.TokenManager
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	}

	s := &Server{
		logger:    logger,
		retriever: ret,
		generator: gen,
		processor: proc,
		memory:    mem,
		chatLog:   log,
		tokens:    tokens,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.Get("/healthz", s.handleHealth)
	router.Get("/readyz", s.handleReady)
	router.Post("/v1/session", s.handleSession)

	authMW := auth.NewMiddleware(cfg.APIKey, tokens)
	router.Group(func(r chi.Router) {
		r.Use(authMW.Handler)
		r.Post("/v1/query", s.handleQuery)
		r.Post("/v1/search", s.handleSearch)
		r.Post("/v1/feedback", s.handleFeedback)
		r.Get("/v1/history/{sessionID}", s.handleHistory)
	})

	s.router = router
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Router exposes the mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 {
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
