// Package server initializes and runs the collection server.
// It wires the storage stack, serves the HTTP API and the gRPC live feed,
// keeps re-probing the remote store and shuts down on SIGINT/SIGTERM.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/leadkeeper/internal/config"
	"github.com/dmitrijs2005/leadkeeper/internal/core"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/server/httpapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	gs "github.com/dmitrijs2005/leadkeeper/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	core     *core.Core
	registry *prometheus.Registry
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.New(logging.Options{Level: c.LogLevel, File: c.LogFile})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cr, err := core.Build(context.Background(), c, logger, reg)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	return &App{config: c, logger: logger, core: cr, registry: reg}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) httpOptions() httpapi.Options {
	opts := httpapi.Options{
		SuccessDisplay: app.config.SuccessDisplay,
		ReturnWindow:   app.config.ReturnWindow,
		PublicBaseURL:  app.config.PublicBaseURL,
		Location:       app.config.Location(),
		Gatherer:       app.registry,
	}
	if app.core.Uploader != nil {
		opts.Uploader = app.core.Uploader
	}
	return opts
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, app.core.Gateway, app.core.Sessions, app.core.Notifier, app.httpOptions())
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.core.Notifier, app.core.Gateway)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or one of the servers fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "http", app.config.HTTPAddr, "grpc", app.config.GRPCAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.core.Gateway.Watch(ctx, app.config.ProbeInterval)
	}()

	wg.Wait()

	if err := app.core.Close(); err != nil {
		app.logger.Error(context.Background(), "failed to close storage", "error", err)
	}
	app.logger.Info(context.Background(), "Stopped")
}
