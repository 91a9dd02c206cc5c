// Package gateway is the single entry point for entry and session reads and
// writes. It decides whether the remote store is usable, fails over to the
// local store when a remote entry write or read fails, and re-probes the
// remote store in the background.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/metrics"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/repomanager"
)

type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)

const defaultProbeTimeout = 3 * time.Second

// Broadcaster announces stored entries to other processes.
type Broadcaster interface {
	Publish(ctx context.Context, e models.Entry) error
}

// LocalChannel delivers entries to observers in the same process.
type LocalChannel interface {
	Post(e models.Entry)
}

type Option func(*Gateway)

func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) { g.log = l.With("module", "gateway") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(g *Gateway) { g.broadcaster = b }
}

// WithLocation sets the zone in which "today" starts for statistics.
func WithLocation(loc *time.Location) Option {
	return func(g *Gateway) { g.loc = loc }
}

func WithProbeTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.probeTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

type Gateway struct {
	remote repomanager.RepositoryManager
	local  repomanager.RepositoryManager

	log          logging.Logger
	metrics      *metrics.Metrics
	broadcaster  Broadcaster
	now          func() time.Time
	loc          *time.Location
	probeTimeout time.Duration

	mu              sync.RWMutex
	remoteAvailable bool
	localCh         LocalChannel
	listeners       []func(Mode)
}

// New builds a gateway in local mode. remote may be nil when no remote store
// is configured; Configure decides the initial mode.
func New(remote, local repomanager.RepositoryManager, opts ...Option) *Gateway {
	g := &Gateway{
		remote:       remote,
		local:        local,
		log:          logging.Nop(),
		now:          time.Now,
		loc:          time.Local,
		probeTimeout: defaultProbeTimeout,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// SetLocalChannel registers the channel that receives entries written by a
// local fallback.
func (g *Gateway) SetLocalChannel(ch LocalChannel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.localCh = ch
}

// HasRemote reports whether a remote store is configured at all.
func (g *Gateway) HasRemote() bool { return g.remote != nil }

func (g *Gateway) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.remoteAvailable {
		return ModeRemote
	}
	return ModeLocal
}

// OnModeChange registers fn to run after every mode switch.
func (g *Gateway) OnModeChange(fn func(Mode)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *Gateway) setAvailable(ok bool) {
	g.mu.Lock()
	if g.remoteAvailable == ok {
		g.mu.Unlock()
		return
	}
	g.remoteAvailable = ok
	mode := ModeLocal
	if ok {
		mode = ModeRemote
	}
	listeners := append([]func(Mode){}, g.listeners...)
	g.mu.Unlock()

	g.metrics.SetRemoteAvailable(ok)
	g.log.Info(context.Background(), fmt.Sprintf("Switched to %s mode", mode))
	for _, fn := range listeners {
		fn(mode)
	}
}

// Configure probes the remote store and picks the initial mode. A missing
// or unreachable remote store is logged, never returned.
func (g *Gateway) Configure(ctx context.Context) {
	if g.remote == nil {
		g.log.Info(ctx, "remote store not configured, using local store")
		g.setAvailable(false)
		return
	}
	if err := g.probe(ctx); err != nil {
		g.log.Warn(ctx, "remote store unreachable, using local store", "error", err)
		g.setAvailable(false)
		return
	}
	g.setAvailable(true)
}

func (g *Gateway) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.probeTimeout)
	defer cancel()
	return g.remote.Ping(ctx)
}

// Watch re-probes the remote store every interval until ctx is done,
// switching mode in either direction.
func (g *Gateway) Watch(ctx context.Context, interval time.Duration) {
	if g.remote == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := g.probe(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if g.Mode() == ModeRemote {
					g.log.Warn(ctx, "remote probe failed", "error", err)
				}
				g.setAvailable(false)
			} else {
				g.setAvailable(true)
			}

		case <-ctx.Done():
			return
		}
	}
}

// active returns the store for the current mode.
func (g *Gateway) active() (repomanager.RepositoryManager, bool) {
	if g.Mode() == ModeRemote {
		return g.remote, true
	}
	return g.local, false
}

// isRemoteFailure separates connectivity and engine failures from the
// domain outcomes a repository reports.
func isRemoteFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrDuplicatePin),
		errors.Is(err, common.ErrValidation):
		return false
	default:
		return true
	}
}

// remoteFailed marks the remote store unavailable unless the caller gave
// up, and returns err wrapped in common.ErrRemoteUnavailable.
func (g *Gateway) remoteFailed(ctx context.Context, op string, err error) error {
	if ctx.Err() == nil {
		g.log.Warn(ctx, "remote operation failed", "op", op, "error", err)
		g.setAvailable(false)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteUnavailable, err)
}

// storageFailure ensures local failures surface as common.ErrStorageFailure.
func storageFailure(op string, err error) error {
	if errors.Is(err, common.ErrStorageFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorageFailure, err)
}

func (g *Gateway) localChannel() LocalChannel {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.localCh
}
