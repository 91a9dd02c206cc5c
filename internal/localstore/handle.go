package localstore

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
)

// Handle is one browsing context on a Store.
type Handle struct {
	s      *Store
	origin string
}

// Origin identifies the context in storage events.
func (h *Handle) Origin() string { return h.origin }

// Get returns the slot value, or nil when the slot is empty.
func (h *Handle) Get(ctx context.Context, slot string) ([]byte, error) {
	return h.s.get(ctx, h.s.db, slot)
}

// Set replaces the slot value and notifies other contexts.
func (h *Handle) Set(ctx context.Context, slot string, value []byte) error {
	if err := h.s.put(ctx, h.s.db, slot, h.origin, value); err != nil {
		return err
	}
	h.s.broadcast(Event{Slot: slot, Origin: h.origin, Value: value})
	return nil
}

// Remove clears the slot and notifies other contexts.
func (h *Handle) Remove(ctx context.Context, slot string) error {
	if _, err := h.s.db.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, slot); err != nil {
		return storageErr("remove slot "+slot, err)
	}
	h.s.broadcast(Event{Slot: slot, Origin: h.origin})
	return nil
}

// Update runs fn on the current value and writes the result back within one
// transaction. fn may return ErrUnchanged to skip the write.
func (h *Handle) Update(ctx context.Context, slot string, fn func(cur []byte) ([]byte, error)) error {
	var next []byte
	changed := true

	err := dbx.WithTx(ctx, h.s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cur, err := h.s.get(ctx, tx, slot)
		if err != nil {
			return err
		}
		next, err = fn(cur)
		if errors.Is(err, ErrUnchanged) {
			changed = false
			return nil
		}
		if err != nil {
			return err
		}
		return h.s.put(ctx, tx, slot, h.origin, next)
	})
	if err != nil {
		return err
	}
	if changed {
		h.s.broadcast(Event{Slot: slot, Origin: h.origin, Value: next})
	}
	return nil
}

// Watch subscribes to storage events for slot raised by other contexts.
// The returned function stops the subscription and closes the channel.
func (h *Handle) Watch(slot string) (<-chan Event, func()) {
	w := &watcher{slot: slot, origin: h.origin, ch: make(chan Event, 16)}

	h.s.mu.Lock()
	id := h.s.nextID
	h.s.nextID++
	h.s.watchers[id] = w
	h.s.mu.Unlock()

	stop := func() {
		h.s.mu.Lock()
		defer h.s.mu.Unlock()
		if _, ok := h.s.watchers[id]; ok {
			delete(h.s.watchers, id)
			close(w.ch)
		}
	}
	return w.ch, stop
}

// CheckVersion stores version in the app version slot and reports whether
// it differs from what was installed before. A first install counts as a
// change.
func (h *Handle) CheckVersion(ctx context.Context, version string) (bool, error) {
	changed := false
	err := h.Update(ctx, SlotAppVersion, func(cur []byte) ([]byte, error) {
		if string(cur) == version {
			return nil, ErrUnchanged
		}
		changed = true
		return []byte(version), nil
	})
	return changed, err
}
