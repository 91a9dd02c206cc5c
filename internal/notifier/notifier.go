package notifier

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/leadkeeper/internal/gateway"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/metrics"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/google/uuid"
)

const feedQueueSize = 256

// ModeSource reports the gateway's mode and its changes.
type ModeSource interface {
	Mode() gateway.Mode
	OnModeChange(fn func(gateway.Mode))
}

// Notifier hands out feeds bound to the transport of the current mode and
// moves every open feed when the mode changes.
type Notifier struct {
	mode    ModeSource
	remote  Transport
	local   Transport
	log     logging.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	feeds map[string]*Feed
}

// New creates a notifier. remote may be nil, in which case the local
// transport serves remote mode as well.
func New(mode ModeSource, remote, local Transport, l logging.Logger, m *metrics.Metrics) *Notifier {
	n := &Notifier{
		mode:    mode,
		remote:  remote,
		local:   local,
		log:     l.With("module", "notifier"),
		metrics: m,
		feeds:   map[string]*Feed{},
	}
	mode.OnModeChange(n.switchTransport)
	return n
}

func (n *Notifier) transportFor(m gateway.Mode) Transport {
	if m == gateway.ModeRemote && n.remote != nil {
		return n.remote
	}
	return n.local
}

// Subscribe starts a feed calling fn once per distinct entry id. Transport
// failures are logged; the feed stays usable and picks up a transport on
// the next mode change.
func (n *Notifier) Subscribe(ctx context.Context, fn func(models.Entry)) *Feed {
	ctx, cancel := context.WithCancel(ctx)
	f := &Feed{
		ID:      uuid.NewString(),
		n:       n,
		fn:      fn,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan models.Entry, feedQueueSize),
		seen:    map[int64]struct{}{},
		done:    make(chan struct{}),
		current: noopSubscription{},
	}

	n.mu.Lock()
	n.feeds[f.ID] = f
	n.mu.Unlock()

	f.attach(n.transportFor(n.mode.Mode()))
	go f.consume()

	go func() {
		<-ctx.Done()
		f.Close()
	}()
	return f
}

func (n *Notifier) switchTransport(m gateway.Mode) {
	t := n.transportFor(m)

	n.mu.Lock()
	feeds := make([]*Feed, 0, len(n.feeds))
	for _, f := range n.feeds {
		feeds = append(feeds, f)
	}
	n.mu.Unlock()

	for _, f := range feeds {
		f.attach(t)
	}
}

func (n *Notifier) remove(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.feeds, id)
}

// Feed is one subscription. A single consumer goroutine drains its queue,
// so fn is never called concurrently.
type Feed struct {
	ID string

	n      *Notifier
	fn     func(models.Entry)
	ctx    context.Context
	cancel context.CancelFunc
	queue  chan models.Entry
	seen   map[int64]struct{}
	done   chan struct{}

	mu        sync.Mutex
	current   Subscription
	transport string
	closed    bool
	closeOnce sync.Once
}

// Transport names the transport the feed is attached to.
func (f *Feed) Transport() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transport
}

// attach replaces the feed's transport subscription with one on t.
func (f *Feed) attach(t Transport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if f.transport == t.Name() {
		return
	}

	if err := f.current.Close(); err != nil {
		f.n.log.Warn(f.ctx, "failed to release subscription", "feed", f.ID, "transport", f.transport, "error", err)
	}

	sub, err := t.Subscribe(f.ctx, f.enqueue)
	if err != nil {
		f.n.log.Error(f.ctx, "subscription failed", "feed", f.ID, "transport", t.Name(), "error", err)
		f.current = noopSubscription{}
		f.transport = ""
		return
	}
	f.current = sub
	f.transport = t.Name()
	f.n.log.Debug(f.ctx, "feed attached", "feed", f.ID, "transport", t.Name())
}

func (f *Feed) enqueue(e models.Entry) {
	select {
	case f.queue <- e:
	case <-f.done:
	}
}

func (f *Feed) consume() {
	for {
		select {
		case e := <-f.queue:
			if _, dup := f.seen[e.ID]; dup {
				f.n.metrics.DuplicateDropped()
				continue
			}
			f.seen[e.ID] = struct{}{}
			f.n.metrics.Delivered()
			f.fn(e)
		case <-f.done:
			return
		}
	}
}

// Close detaches the feed from its transport and stops delivery. It is safe
// to call more than once.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		sub := f.current
		f.current = noopSubscription{}
		f.mu.Unlock()

		f.cancel()
		close(f.done)
		if err := sub.Close(); err != nil {
			f.n.log.Warn(context.Background(), "failed to release subscription", "feed", f.ID, "error", err)
		}
		f.n.remove(f.ID)
	})
}
