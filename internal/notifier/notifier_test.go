package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/gateway"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/metrics"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMode struct {
	mu        sync.Mutex
	mode      gateway.Mode
	listeners []func(gateway.Mode)
}

func (m *fakeMode) Mode() gateway.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *fakeMode) OnModeChange(fn func(gateway.Mode)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *fakeMode) set(mode gateway.Mode) {
	m.mu.Lock()
	m.mode = mode
	listeners := append([]func(gateway.Mode){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(mode)
	}
}

// fakeTransport records subscriptions and lets the test push entries.
type fakeTransport struct {
	name string
	err  error

	mu     sync.Mutex
	active map[int]func(models.Entry)
	nextID int
	opened int
	closed int
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{name: name, active: map[int]func(models.Entry){}}
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) Subscribe(_ context.Context, deliver func(models.Entry)) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	id := t.nextID
	t.nextID++
	t.active[id] = deliver
	t.opened++
	return &fakeSub{t: t, id: id}, nil
}

func (t *fakeTransport) push(e models.Entry) {
	t.mu.Lock()
	targets := make([]func(models.Entry), 0, len(t.active))
	for _, fn := range t.active {
		targets = append(targets, fn)
	}
	t.mu.Unlock()
	for _, fn := range targets {
		fn(e)
	}
}

func (t *fakeTransport) counts() (opened, closed, active int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opened, t.closed, len(t.active)
}

type fakeSub struct {
	t  *fakeTransport
	id int
}

func (s *fakeSub) Close() error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if _, ok := s.t.active[s.id]; ok {
		delete(s.t.active, s.id)
		s.t.closed++
	}
	return nil
}

func TestFeed_DeduplicatesByID(t *testing.T) {
	mode := &fakeMode{mode: gateway.ModeLocal}
	local := newFakeTransport("local")
	m := metrics.New(prometheus.NewRegistry())
	n := New(mode, nil, local, logging.Nop(), m)

	c := &collector{}
	f := n.Subscribe(context.Background(), c.deliver)
	defer f.Close()
	assert.Equal(t, "local", f.Transport())

	local.push(models.Entry{ID: 1})
	local.push(models.Entry{ID: 1})
	local.push(models.Entry{ID: 2})

	require.Eventually(t, func() bool { return c.len() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int64{1, 2}, c.ids())
}

func TestNotifier_FollowsModeChanges(t *testing.T) {
	mode := &fakeMode{mode: gateway.ModeRemote}
	remote := newFakeTransport("postgres")
	local := newFakeTransport("local")
	n := New(mode, remote, local, logging.Nop(), nil)

	c := &collector{}
	f := n.Subscribe(context.Background(), c.deliver)
	defer f.Close()
	assert.Equal(t, "postgres", f.Transport())

	mode.set(gateway.ModeLocal)
	assert.Equal(t, "local", f.Transport())
	_, closed, active := remote.counts()
	assert.Equal(t, 1, closed)
	assert.Zero(t, active, "transports are never mixed")

	local.push(models.Entry{ID: 9})
	require.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)

	mode.set(gateway.ModeRemote)
	assert.Equal(t, "postgres", f.Transport())
	opened, _, active := remote.counts()
	assert.Equal(t, 2, opened)
	assert.Equal(t, 1, active)
}

func TestNotifier_NoRemoteTransportUsesLocal(t *testing.T) {
	mode := &fakeMode{mode: gateway.ModeRemote}
	local := newFakeTransport("local")
	n := New(mode, nil, local, logging.Nop(), nil)

	f := n.Subscribe(context.Background(), func(models.Entry) {})
	defer f.Close()
	assert.Equal(t, "local", f.Transport())
}

func TestNotifier_SubscribeFailureIsNoop(t *testing.T) {
	mode := &fakeMode{mode: gateway.ModeLocal}
	local := newFakeTransport("local")
	local.err = errors.New("boom")
	n := New(mode, nil, local, logging.Nop(), nil)

	f := n.Subscribe(context.Background(), func(models.Entry) {})
	assert.Empty(t, f.Transport())
	f.Close()
	f.Close()
}

func TestFeed_CloseAndContextCancel(t *testing.T) {
	mode := &fakeMode{mode: gateway.ModeLocal}
	local := newFakeTransport("local")
	n := New(mode, nil, local, logging.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	f := n.Subscribe(ctx, func(models.Entry) {})
	cancel()

	require.Eventually(t, func() bool {
		_, closed, active := local.counts()
		return closed == 1 && active == 0
	}, time.Second, 5*time.Millisecond)

	// closed feeds ignore later mode changes
	mode.set(gateway.ModeRemote)
	opened, _, _ := local.counts()
	assert.Equal(t, 1, opened)
	f.Close()
}
