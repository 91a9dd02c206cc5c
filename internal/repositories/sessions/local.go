package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/localstore"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/entries"
	"github.com/dmitrijs2005/leadkeeper/internal/timex"
)

// LocalRepository keeps sessions as a JSON array in the sessions slot.
// Counters are computed from the entries slot on every List.
//
// Local session ids are negative and derived from the creation time in
// milliseconds, strictly decreasing within the slot. Remote ids are
// positive, so an entry tagged with a remote session never matches a local
// one.
type LocalRepository struct {
	h   *localstore.Handle
	now func() time.Time
	loc *time.Location
}

func NewLocalRepository(h *localstore.Handle, loc *time.Location) *LocalRepository {
	if loc == nil {
		loc = time.Local
	}
	return &LocalRepository{h: h, now: time.Now, loc: loc}
}

func decode(raw []byte) ([]models.Session, error) {
	if len(raw) == 0 {
		return []models.Session{}, nil
	}
	var list []models.Session
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode sessions slot: %w: %w", common.ErrStorageFailure, err)
	}
	return list, nil
}

func encode(list []models.Session) ([]byte, error) {
	stored := make([]models.Session, len(list))
	for i, s := range list {
		s.TotalEntries, s.TodayEntries, s.LastEntryAt = 0, 0, nil
		stored[i] = s
	}
	return json.Marshal(stored)
}

func (r *LocalRepository) load(ctx context.Context) ([]models.Session, error) {
	raw, err := r.h.Get(ctx, localstore.SlotSessions)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (r *LocalRepository) Create(ctx context.Context, s *models.Session) error {
	return r.h.Update(ctx, localstore.SlotSessions, func(cur []byte) ([]byte, error) {
		list, err := decode(cur)
		if err != nil {
			return nil, err
		}
		now := r.now().UTC()
		id := -now.UnixMilli()
		for _, existing := range list {
			if existing.Pin == s.Pin {
				return nil, common.ErrDuplicatePin
			}
			if existing.ID <= id {
				id = existing.ID - 1
			}
		}
		s.ID = id
		s.CreatedAt = now
		return encode(append(list, *s))
	})
}

func (r *LocalRepository) find(ctx context.Context, match func(models.Session) bool) (*models.Session, error) {
	list, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range list {
		if match(s) {
			found := s
			return &found, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *LocalRepository) GetByPin(ctx context.Context, pin string) (*models.Session, error) {
	return r.find(ctx, func(s models.Session) bool { return s.Pin == pin })
}

func (r *LocalRepository) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	return r.find(ctx, func(s models.Session) bool { return s.ID == id })
}

func (r *LocalRepository) List(ctx context.Context) ([]models.Session, error) {
	list, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := r.h.Get(ctx, localstore.SlotEntries)
	if err != nil {
		return nil, err
	}
	all, err := entries.DecodeSlot(raw)
	if err != nil {
		return nil, err
	}

	now := r.now().In(r.loc)
	dayStart := timex.StartOfDay(now)
	index := make(map[int64]int, len(list))
	for i := range list {
		index[list[i].ID] = i
	}
	for _, e := range all {
		if e.SessionID == nil {
			continue
		}
		i, ok := index[*e.SessionID]
		if !ok {
			continue
		}
		s := &list[i]
		s.TotalEntries++
		if !e.CreatedAt.Before(dayStart) {
			s.TodayEntries++
		}
		if s.LastEntryAt == nil || e.CreatedAt.After(*s.LastEntryAt) {
			ts := e.CreatedAt
			s.LastEntryAt = &ts
		}
	}
	models.SortSessions(list)
	return list, nil
}

func (r *LocalRepository) mutate(ctx context.Context, id int64, fn func([]models.Session, int) []models.Session) error {
	found := false
	err := r.h.Update(ctx, localstore.SlotSessions, func(cur []byte) ([]byte, error) {
		list, err := decode(cur)
		if err != nil {
			return nil, err
		}
		for i := range list {
			if list[i].ID == id {
				found = true
				return encode(fn(list, i))
			}
		}
		return nil, localstore.ErrUnchanged
	})
	if err != nil {
		return err
	}
	if !found {
		return common.ErrNotFound
	}
	return nil
}

func (r *LocalRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.mutate(ctx, id, func(list []models.Session, i int) []models.Session {
		list[i].IsActive = active
		return list
	})
}

func (r *LocalRepository) Delete(ctx context.Context, id int64) error {
	return r.mutate(ctx, id, func(list []models.Session, i int) []models.Session {
		return append(list[:i], list[i+1:]...)
	})
}
