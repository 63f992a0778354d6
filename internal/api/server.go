package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/gitshelf/internal/engine"
	"github.com/mattjoyce/gitshelf/internal/journal"
	"github.com/mattjoyce/gitshelf/internal/query"
)

// QueryEngine answers workspace queries.
type QueryEngine interface {
	Query(ctx context.Context, req engine.Request) (*query.Result, error)
	Diff(ctx context.Context, req engine.DiffRequest) (*engine.DiffResult, error)
}

// QueryJournal records and lists query outcomes.
type QueryJournal interface {
	Record(ctx context.Context, e journal.Entry) (string, error)
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// Config holds API server configuration
type Config struct {
	Listen               string
	MaxConcurrentQueries int
	// QueryTimeout bounds one query, zero means only the client can cancel it.
	QueryTimeout time.Duration
	MaxDiffLines int
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	engine    QueryEngine
	journal   QueryJournal
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
	active    atomic.Int64
	semaphore chan struct{}
	addr      atomic.Value

	// inflight counts queries that hold a scratch directory.
	inflight        sync.WaitGroup
	shutdownTimeout time.Duration
}

// New creates a new API server instance. journal may be nil.
func New(config Config, engine QueryEngine, journal QueryJournal, logger *slog.Logger) *Server {
	if config.MaxConcurrentQueries <= 0 {
		config.MaxConcurrentQueries = 16
	}
	return &Server{
		config:    config,
		engine:    engine,
		journal:   journal,
		logger:    logger,
		startedAt: time.Now(),
		semaphore: make(chan struct{}, config.MaxConcurrentQueries),

		shutdownTimeout: 5 * time.Second,
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled. On
// cancellation it stops accepting requests and waits for in-flight queries.
// Queries still running after the shutdown timeout have their contexts
// cancelled, and Start returns once they have unwound.
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}
	s.addr.Store(ln.Addr().String())

	baseCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()

	s.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      s.writeTimeout(),
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	s.logger.Info("API server starting", "listen", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown timed out, aborting in-flight queries",
				"timeout", s.shutdownTimeout.String(),
				"active_queries", s.active.Load(),
			)
			abort()
			_ = s.server.Close()
		}
		s.inflight.Wait()
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Addr returns the bound listen address, or "" before Start is listening.
func (s *Server) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}

func (s *Server) writeTimeout() time.Duration {
	if s.config.QueryTimeout <= 0 {
		return 10 * time.Minute
	}
	// A diff runs two queries.
	return 2*s.config.QueryTimeout + 10*time.Second
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/queries", s.handleListQueries)

	r.Route("/workspaces", func(r chi.Router) {
		r.Get("/", s.handleListWorkspaces)
		r.Group(func(r chi.Router) {
			r.Use(s.limitConcurrency)
			r.Get("/{name}", s.handleQueryWorkspace)
			r.Get("/{name}/diff", s.handleDiffWorkspace)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// limitConcurrency rejects work beyond MaxConcurrentQueries with 503 instead
// of queueing it.
func (s *Server) limitConcurrency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case s.semaphore <- struct{}{}:
			defer func() { <-s.semaphore }()
		default:
			s.logger.Warn("too many concurrent queries", "request_id", middleware.GetReqID(r.Context()))
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusServiceUnavailable, "too many concurrent queries, please try again later")
			return
		}

		s.inflight.Add(1)
		defer s.inflight.Done()
		s.active.Add(1)
		defer s.active.Add(-1)

		ctx, cancel := s.queryContext(r.Context())
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) queryContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.config.QueryTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.config.QueryTimeout)
}
