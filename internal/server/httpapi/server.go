// Package httpapi serves the mobile submission endpoint, the admin JSON API
// and the server-sent live feed.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/export"
	"github.com/dmitrijs2005/leadkeeper/internal/gateway"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/notifier"
	"github.com/dmitrijs2005/leadkeeper/internal/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the entry surface of the gateway.
type Store interface {
	Mode() gateway.Mode
	InsertEntry(ctx context.Context, in models.NewEntry) (gateway.InsertResult, error)
	QueryEntries(ctx context.Context, sessionID *int64) ([]models.Entry, error)
	Stats(ctx context.Context, sessionID *int64) (models.Stats, error)
	DeleteEntry(ctx context.Context, id int64) (models.DeleteResult, error)
	DeleteAllEntries(ctx context.Context) (models.DeleteResult, error)
}

// Uploader shares an export through object storage.
type Uploader interface {
	Upload(ctx context.Context, f export.Format, body []byte, t time.Time) (key, url string, err error)
}

// Options are the tunables of the API.
type Options struct {
	SuccessDisplay time.Duration
	ReturnWindow   time.Duration
	PublicBaseURL  string
	Location       *time.Location
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Uploader is optional; without it exports are only downloadable.
	Uploader Uploader
}

type Server struct {
	address  string
	store    Store
	sessions *registry.Registry
	notifier *notifier.Notifier
	opts     Options
	log      logging.Logger
	now      func() time.Time
}

func NewServer(address string, l logging.Logger, store Store, sessions *registry.Registry, n *notifier.Notifier, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		address:  address,
		store:    store,
		sessions: sessions,
		notifier: n,
		opts:     opts,
		log:      l.With("module", "http_server"),
		now:      time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "mode": string(s.store.Mode())})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/mode", s.handleMode)

		r.Post("/submit", s.handleSubmit)
		r.Get("/submit/returning", s.handleReturning)

		r.Get("/entries", s.handleListEntries)
		r.Delete("/entries", s.handleClearEntries)
		r.Delete("/entries/{id}", s.handleDeleteEntry)
		r.Get("/stats", s.handleStats)
		r.Get("/export", s.handleExport)
		r.Get("/events", s.handleEvents)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/pin/{pin}", s.handleResolvePin)
		r.Patch("/sessions/{id}", s.handlePatchSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
	})

	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.log.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error(context.Background(), "HTTP shutdown failed", "error", err)
		}
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(s.store.Mode())})
}
