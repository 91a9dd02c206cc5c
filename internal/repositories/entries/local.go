package entries

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/localstore"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/validation"
)

// LocalRepository keeps entries as one JSON array in the entries slot.
// Entry IDs are derived from the creation time in milliseconds and kept
// strictly increasing within the slot.
type LocalRepository struct {
	h   *localstore.Handle
	now func() time.Time
}

func NewLocalRepository(h *localstore.Handle) *LocalRepository {
	return &LocalRepository{h: h, now: time.Now}
}

// DecodeSlot parses the entries slot. An empty slot is an empty list.
// Legacy records are canonicalised: created_at is always set and the phone
// is reduced to digits.
func DecodeSlot(raw []byte) ([]models.Entry, error) {
	if len(raw) == 0 {
		return []models.Entry{}, nil
	}
	var list []models.Entry
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode entries slot: %w: %w", common.ErrStorageFailure, err)
	}
	for i := range list {
		list[i].Phone = validation.NormalizePhone(list[i].Phone)
		if list[i].CreatedAt.IsZero() && list[i].ID > 0 {
			list[i].CreatedAt = time.UnixMilli(list[i].ID).UTC()
		}
	}
	return list, nil
}

func (r *LocalRepository) load(ctx context.Context) ([]models.Entry, error) {
	raw, err := r.h.Get(ctx, localstore.SlotEntries)
	if err != nil {
		return nil, err
	}
	return DecodeSlot(raw)
}

func (r *LocalRepository) Insert(ctx context.Context, e *models.Entry) error {
	return r.h.Update(ctx, localstore.SlotEntries, func(cur []byte) ([]byte, error) {
		list, err := DecodeSlot(cur)
		if err != nil {
			return nil, err
		}

		now := r.now().UTC()
		id := now.UnixMilli()
		for _, item := range list {
			if item.ID >= id {
				id = item.ID + 1
			}
		}
		e.ID = id
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.CreatedAt = e.CreatedAt.UTC()

		return json.Marshal(append(list, *e))
	})
}

// List returns matching entries in store (insertion) order. With a limit
// only the last inserted ones are kept.
func (r *LocalRepository) List(ctx context.Context, f Filter) ([]models.Entry, error) {
	list, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]models.Entry, 0, len(list))
	for _, e := range list {
		if f.match(e) {
			result = append(result, e)
		}
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[len(result)-f.Limit:]
	}
	return result, nil
}

func (r *LocalRepository) Count(ctx context.Context, f Filter) (int64, error) {
	list, err := r.List(ctx, f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (r *LocalRepository) IDs(ctx context.Context, f Filter) ([]int64, error) {
	list, err := r.List(ctx, f)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (r *LocalRepository) DeleteMatching(ctx context.Context, f Filter) (int64, error) {
	return r.remove(ctx, f.match)
}

func (r *LocalRepository) DeleteByID(ctx context.Context, id int64) (int64, error) {
	return r.remove(ctx, func(e models.Entry) bool { return e.ID == id })
}

func (r *LocalRepository) remove(ctx context.Context, drop func(models.Entry) bool) (int64, error) {
	var removed int64
	err := r.h.Update(ctx, localstore.SlotEntries, func(cur []byte) ([]byte, error) {
		list, err := DecodeSlot(cur)
		if err != nil {
			return nil, err
		}
		kept := list[:0]
		for _, e := range list {
			if drop(e) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if removed == 0 {
			return nil, localstore.ErrUnchanged
		}
		return json.Marshal(kept)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *LocalRepository) Stats(ctx context.Context, f Filter, dayStart, now time.Time) (models.Stats, error) {
	list, err := r.List(ctx, f)
	if err != nil {
		return models.Stats{}, err
	}
	var s models.Stats
	for _, e := range list {
		s.Add(e.CreatedAt, dayStart, now)
	}
	return s, nil
}

func (r *LocalRepository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	list, err := r.load(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range list {
		if e.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}
