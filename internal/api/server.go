// Package api serves a local preview of the document tree: the AST as JSON,
// each chapter rendered as XHTML and the whole book as an HTML page.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dgallion1/pdf2epub/internal/doctree"
	"github.com/dgallion1/pdf2epub/internal/render"
)

// StatsWindow is how long request latencies are kept for /api/stats.
const StatsWindow = time.Hour

// Server is the preview HTTP server.
type Server struct {
	router   chi.Router
	renderer *render.Renderer
	stats    *LatencyStats
	log      zerolog.Logger
	path     string

	mu       sync.RWMutex
	doc      *doctree.Document
	loadedAt time.Time
}

// NewServer loads the AST at path and configures the routes.
func NewServer(path string, renderer *render.Renderer, log zerolog.Logger) (*Server, error) {
	s := &Server{
		renderer: renderer,
		stats:    NewLatencyStats(StatsWindow),
		log:      log.With().Str("component", "api").Logger(),
		path:     path,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log, s.stats))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/preview", s.handlePreview)

	r.Route("/api", func(r chi.Router) {
		r.Get("/document", s.handleDocument)
		r.Get("/chapters", s.handleChapters)
		r.Get("/chapters/{index}", s.handleChapter)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
}

// Reload re-reads the AST file. On failure the current document stays in
// place.
func (s *Server) Reload() error {
	doc, err := doctree.Load(s.path)
	if err != nil {
		return fmt.Errorf("load ast %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.doc = doc
	s.loadedAt = time.Now()
	s.mu.Unlock()
	s.log.Info().Str("path", s.path).Int("chapters", len(doc.Spine())).Msg("document loaded")
	return nil
}

func (s *Server) document() *doctree.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("preview server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("preview server stopped")
	return nil
}
