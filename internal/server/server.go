// Package server exposes a phonedata.Database over HTTP.
//
// Routes:
//
//	GET  /v1/phone/{number}  resolve one number
//	POST /v1/phone/batch     resolve {"numbers": [...]}
//	GET  /v1/stats           database and cache statistics
//	GET  /healthz            liveness
//
// The database is held behind an atomic pointer; Reload opens the configured
// file again and swaps it in without interrupting in-flight requests.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"github.com/phonedata/phonedata"
	"github.com/phonedata/phonedata/internal/config"
)

// Server serves lookups from the current database.
type Server struct {
	cfg     *config.Config
	logger  *log.Logger
	db      atomic.Pointer[phonedata.Database]
	router  chi.Router
	started time.Time

	reloadMu sync.Mutex
	reloads  atomic.Uint64
}

// New creates a server around db, which must be non-nil.
func New(cfg *config.Config, db *phonedata.Database, logger *log.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		started: time.Now(),
	}
	s.db.Store(db)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/phone/{number}", s.handleLookup)
		r.Post("/phone/batch", s.handleBatch)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Database returns the database currently serving requests.
func (s *Server) Database() *phonedata.Database {
	return s.db.Load()
}

// Reload opens the configured database file and swaps it in. The current
// database is kept when the file is unreadable, invalid or unchanged
// (same digest). swapped reports whether a new database is now serving.
func (s *Server) Reload() (swapped bool, err error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	opts, err := s.cfg.DatabaseOptions()
	if err != nil {
		return false, err
	}
	start := time.Now()
	next, err := phonedata.Open(s.cfg.Database.Path, opts...)
	if err != nil {
		s.logger.Errorf("reload %s: %v", s.cfg.Database.Path, err)
		return false, fmt.Errorf("reload database: %w", err)
	}

	if cur := s.db.Load(); cur != nil && cur.Digest() == next.Digest() {
		s.logger.Infof("reload %s: unchanged (digest %016x)", s.cfg.Database.Path, next.Digest())
		return false, nil
	}

	s.db.Store(next)
	s.reloads.Add(1)
	s.logger.Infof("reloaded %s: version %s, %d entries, %s strategy in %s",
		s.cfg.Database.Path, next.Version(), next.TotalEntries(), next.Strategy(), time.Since(start))
	return true, nil
}

// ReloadOn calls Reload for every value received on signals until ctx is
// done. Errors are logged; the previous database keeps serving.
func (s *Server) ReloadOn(ctx context.Context, signals <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			s.logger.Infof("received %s, reloading database", sig)
			_, _ = s.Reload()
		}
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully, waiting up to the configured shutdown timeout for in-flight
// requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Infof("listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Server.ShutdownTimeout))
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
