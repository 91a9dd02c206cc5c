package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/localstore"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/entries"
)

// DefaultPollInterval is how often the local transport re-reads the
// entries slot.
const DefaultPollInterval = 500 * time.Millisecond

// LocalTransport notices entries written to the local store. It combines
// storage events from other handles, a poll that compares the slot length,
// and direct Post calls from submitters in the same process.
type LocalTransport struct {
	h             *localstore.Handle
	interval      time.Duration
	storageEvents bool
	log           logging.Logger

	mu     sync.Mutex
	posts  map[int]func(models.Entry)
	nextID int
}

type LocalOption func(*LocalTransport)

func WithPollInterval(d time.Duration) LocalOption {
	return func(t *LocalTransport) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithoutStorageEvents leaves only the poll and Post as producers.
func WithoutStorageEvents() LocalOption {
	return func(t *LocalTransport) { t.storageEvents = false }
}

func NewLocalTransport(h *localstore.Handle, l logging.Logger, opts ...LocalOption) *LocalTransport {
	t := &LocalTransport{
		h:             h,
		interval:      DefaultPollInterval,
		storageEvents: true,
		log:           l.With("module", "notifier", "transport", "local"),
		posts:         map[int]func(models.Entry){},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *LocalTransport) Name() string { return "local" }

// Post hands e to every current subscriber.
func (t *LocalTransport) Post(e models.Entry) {
	t.mu.Lock()
	targets := make([]func(models.Entry), 0, len(t.posts))
	for _, fn := range t.posts {
		targets = append(targets, fn)
	}
	t.mu.Unlock()

	for _, fn := range targets {
		fn(e)
	}
}

func (t *LocalTransport) Subscribe(ctx context.Context, deliver func(models.Entry)) (Subscription, error) {
	w := &slotWatch{t: t, deliver: deliver, known: map[int64]struct{}{}}
	if err := w.prime(ctx); err != nil {
		return nil, err
	}

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.posts[id] = deliver
	t.mu.Unlock()

	var (
		events <-chan localstore.Event
		stop   = func() {}
	)
	if t.storageEvents {
		events, stop = t.h.Watch(localstore.SlotEntries)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &localSubscription{done: make(chan struct{})}
	sub.close = func() {
		cancel()
		stop()
		<-sub.done
		t.mu.Lock()
		delete(t.posts, id)
		t.mu.Unlock()
	}

	go func() {
		defer close(sub.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				w.onEvent(ctx, ev)
			case <-ticker.C:
				w.pollOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// slotWatch tracks what one subscription has already seen of the slot.
type slotWatch struct {
	t       *LocalTransport
	deliver func(models.Entry)
	known   map[int64]struct{}
	length  int
}

func (w *slotWatch) prime(ctx context.Context) error {
	raw, err := w.t.h.Get(ctx, localstore.SlotEntries)
	if err != nil {
		return err
	}
	list, err := entries.DecodeSlot(raw)
	if err != nil {
		return err
	}
	for _, e := range list {
		w.known[e.ID] = struct{}{}
	}
	w.length = len(list)
	return nil
}

// pollOnce re-reads the slot and scans it only when its length changed.
func (w *slotWatch) pollOnce(ctx context.Context) {
	raw, err := w.t.h.Get(ctx, localstore.SlotEntries)
	if err != nil {
		if ctx.Err() == nil {
			w.t.log.Warn(ctx, "poll failed", "error", err)
		}
		return
	}
	list, ok := w.decode(ctx, raw)
	if !ok || len(list) == w.length {
		return
	}
	w.adopt(list)
}

// onEvent scans the value carried by a storage event.
func (w *slotWatch) onEvent(ctx context.Context, ev localstore.Event) {
	if list, ok := w.decode(ctx, ev.Value); ok {
		w.adopt(list)
	}
}

func (w *slotWatch) decode(ctx context.Context, raw []byte) ([]models.Entry, bool) {
	list, err := entries.DecodeSlot(raw)
	if err != nil {
		w.t.log.Warn(ctx, "unreadable entries slot", "error", err)
		return nil, false
	}
	return list, true
}

// adopt delivers the entries this subscription has not seen yet.
func (w *slotWatch) adopt(list []models.Entry) {
	w.length = len(list)
	for _, e := range list {
		if _, ok := w.known[e.ID]; ok {
			continue
		}
		w.known[e.ID] = struct{}{}
		w.deliver(e)
	}
}

type localSubscription struct {
	done  chan struct{}
	once  sync.Once
	close func()
}

func (s *localSubscription) Close() error {
	s.once.Do(s.close)
	return nil
}
