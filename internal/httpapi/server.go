// Package httpapi is the thin query-side HTTP adapter over
// MomentumEngine (spec §4.10): GET /scan and GET /signals as JSON
// wrappers around Engine.Scan/Engine.Query, plus a GET /scan/stream
// websocket that fans out every audit record a running scan produces.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sawpanic/momentumcore/internal/engine"
)

// ServerConfig binds to localhost by default and sets explicit
// read/write/idle timeouts rather than relying on http.Server's zero
// values (no timeout).
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         8090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server is the read-only HTTP surface over one Engine.
type Server struct {
	router      *mux.Router
	server      *http.Server
	engine      *engine.Engine
	broadcaster *Broadcaster
	logger      zerolog.Logger
	config      ServerConfig
}

// NewServer builds a Server bound to addr (without listening yet).
// broadcaster may be nil to disable /scan/stream (it 404s instead).
func NewServer(config ServerConfig, eng *engine.Engine, broadcaster *Broadcaster, logger zerolog.Logger) *Server {
	router := mux.NewRouter()
	s := &Server{router: router, engine: eng, broadcaster: broadcaster, logger: logger, config: config}
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	api := s.router.PathPrefix("/").Subrouter()
	api.HandleFunc("/scan", s.handleScan).Methods(http.MethodGet)
	api.HandleFunc("/signals", s.handleSignals).Methods(http.MethodGet)
	if s.broadcaster != nil {
		api.HandleFunc("/scan/stream", s.handleScanStream).Methods(http.MethodGet)
	}
}

// ListenAndServe binds config.Host:config.Port and serves until the
// server is closed or ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", s.server.Addr, err)
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("request_id", fmt.Sprintf("%v", r.Context().Value(requestIDKey{}))).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
