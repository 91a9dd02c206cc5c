package form

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/localstore"
)

// Memory remembers when this client last submitted successfully.
type Memory interface {
	LastSubmission(ctx context.Context) (time.Time, bool, error)
	RecordSubmission(ctx context.Context, at time.Time) error
}

// SlotMemory keeps the timestamp in the local store's last_submission slot.
type SlotMemory struct {
	h *localstore.Handle
}

func NewSlotMemory(h *localstore.Handle) *SlotMemory {
	return &SlotMemory{h: h}
}

func (m *SlotMemory) LastSubmission(ctx context.Context) (time.Time, bool, error) {
	raw, err := m.h.Get(ctx, localstore.SlotLastSubmission)
	if err != nil || raw == nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse last submission: %w", err)
	}
	return t, true, nil
}

func (m *SlotMemory) RecordSubmission(ctx context.Context, at time.Time) error {
	return m.h.Set(ctx, localstore.SlotLastSubmission, []byte(at.UTC().Format(time.RFC3339Nano)))
}
