package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/admin"
	"github.com/dmitrijs2005/leadkeeper/internal/client/client"
	"github.com/dmitrijs2005/leadkeeper/internal/config"
	"github.com/dmitrijs2005/leadkeeper/internal/core"
	"github.com/dmitrijs2005/leadkeeper/internal/form"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/notifier"
)

type App struct {
	config *config.Config
	logger logging.Logger
	core   *core.Core
	view   *admin.View
	form   *form.Controller
	// feed is nil when the server address is unusable.
	feed     client.Client
	uploader uploader

	out     io.Writer
	scanner *bufio.Scanner

	feedOnline atomic.Bool
	mu         sync.Mutex
	watching   *notifier.Feed
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.New(logging.Options{Level: c.LogLevel, File: c.LogFile, Format: "text", Output: os.Stderr})

	cr, err := core.Build(context.Background(), c, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("error initializing storage: %w", err)
	}

	app := newApp(c, logger, cr, os.Stdout, bufio.NewScanner(os.Stdin))

	fc, err := client.NewFeedClient(c.ServerAddr)
	if err != nil {
		logger.Warn(context.Background(), "live feed disabled", "error", err)
	} else {
		app.feed = fc
	}
	return app, nil
}

func newApp(c *config.Config, l logging.Logger, cr *core.Core, out io.Writer, scanner *bufio.Scanner) *App {
	view := admin.New(cr.Gateway, cr.Sessions, cr.Notifier,
		admin.WithLogger(l),
		admin.WithLocation(c.Location()),
	)
	f := form.New(cr.Gateway, form.NewSlotMemory(cr.Store.Open()),
		form.WithLogger(l),
		form.WithSuccessDisplay(0),
		form.WithReturnWindow(c.ReturnWindow),
	)
	app := &App{
		config:  c,
		logger:  l,
		core:    cr,
		view:    view,
		form:    f,
		out:     &lockedWriter{w: out},
		scanner: scanner,
	}
	if cr.Uploader != nil {
		app.uploader = cr.Uploader
	}
	return app
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

// Close stops live updates and releases storage.
func (a *App) Close() {
	a.mu.Lock()
	w := a.watching
	a.watching = nil
	a.mu.Unlock()
	if w != nil {
		w.Close()
	}
	a.view.Close()
	if a.feed != nil {
		_ = a.feed.Close()
	}
	if err := a.core.Close(); err != nil {
		a.logger.Error(context.Background(), "failed to close storage", "error", err)
	}
}

func (a *App) setFeedOnline(online bool) {
	if a.feedOnline.Swap(online) != online {
		state := "offline"
		if online {
			state = "online"
		}
		a.logger.Info(context.Background(), fmt.Sprintf("Live feed server %s", state))
	}
}

// StartOnlineStatusWatcher pings the live feed server every interval until
// ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if a.feed == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.feed.Ping(ctx)
			cancel()
			a.setFeedOnline(err == nil)

		case <-ctx.Done():
			return
		}
	}
}

// lockedWriter serialises output from the REPL and live feed goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// fail reports err to the user and returns it.
func (a *App) fail(err error) error {
	fmt.Fprintln(a.out, "Error:", err)
	return err
}
