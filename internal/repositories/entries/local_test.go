package entries

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/localstore"
	"github.com/dmitrijs2005/leadkeeper/internal/localstore/localstoretest"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) (*LocalRepository, *localstore.Handle) {
	t.Helper()
	h := localstoretest.New(t).Open()
	return NewLocalRepository(h), h
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestLocalInsert_AssignsIncreasingIDs(t *testing.T) {
	repo, _ := newLocal(t)
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	repo.now = fixedClock(ts)
	ctx := context.Background()

	a := &models.Entry{Name: "Kim", Phone: "01012345678"}
	b := &models.Entry{Name: "Lee", Phone: "0101234567"}
	require.NoError(t, repo.Insert(ctx, a))
	require.NoError(t, repo.Insert(ctx, b))

	assert.Equal(t, ts.UnixMilli(), a.ID)
	assert.Equal(t, ts.UnixMilli()+1, b.ID, "same millisecond must not reuse an id")
	assert.Equal(t, ts, a.CreatedAt)

	list, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Kim", list[0].Name, "store order is insertion order")
}

func TestLocalList_Filters(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()
	one, two := int64(1), int64(2)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, sid := range []*int64{&one, &one, &two, nil} {
		e := &models.Entry{Name: "Kim", Phone: "01012345678", SessionID: sid, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, repo.Insert(ctx, e))
	}

	n, err := repo.Count(ctx, Filter{SessionID: &one})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	since := base.Add(2 * time.Hour)
	n, err = repo.Count(ctx, Filter{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ids, err := repo.IDs(ctx, Filter{SessionID: &two})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestLocalDelete_Idempotent(t *testing.T) {
	repo, h := newLocal(t)
	ctx := context.Background()
	one := int64(1)

	require.NoError(t, repo.Insert(ctx, &models.Entry{Name: "Kim", Phone: "01012345678", SessionID: &one}))
	require.NoError(t, repo.Insert(ctx, &models.Entry{Name: "Lee", Phone: "01012345679"}))

	n, err := repo.DeleteMatching(ctx, Filter{SessionID: &one})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteMatching(ctx, Filter{SessionID: &one})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = repo.DeleteMatching(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteMatching(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	raw, err := h.Get(ctx, localstore.SlotEntries)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestLocalDeleteByID(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()

	e := &models.Entry{Name: "Kim", Phone: "01012345678"}
	require.NoError(t, repo.Insert(ctx, e))

	n, err := repo.DeleteByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.DeleteByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestLocal_LegacyRecordsCanonicalised(t *testing.T) {
	repo, h := newLocal(t)
	ctx := context.Background()

	legacy := `[{"id":1714554000000,"name":"Kim","phone":"010-1234-5678","timestamp":"2024-05-01T09:00:00Z"},
	            {"id":1714554000001,"name":"Lee","phone":"0101234567"}]`
	require.NoError(t, h.Set(ctx, localstore.SlotEntries, []byte(legacy)))

	list, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "01012345678", list[0].Phone)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), list[0].CreatedAt)
	assert.Equal(t, time.UnixMilli(1714554000001).UTC(), list[1].CreatedAt, "missing time derived from id")

	ok, err := repo.PhoneExists(ctx, "01012345678")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocal_CorruptSlotIsStorageFailure(t *testing.T) {
	repo, h := newLocal(t)
	ctx := context.Background()

	require.NoError(t, h.Set(ctx, localstore.SlotEntries, []byte(`{not json`)))

	_, err := repo.List(ctx, Filter{})
	assert.ErrorIs(t, err, common.ErrStorageFailure)

	err = repo.Insert(ctx, &models.Entry{Name: "Kim", Phone: "01012345678"})
	assert.ErrorIs(t, err, common.ErrStorageFailure)
}

func TestLocal_QuotaIsStorageFailure(t *testing.T) {
	h := localstoretest.New(t, localstore.WithQuota(64)).Open()
	repo := NewLocalRepository(h)

	err := repo.Insert(context.Background(), &models.Entry{Name: "Kim", Phone: "01012345678"})
	assert.ErrorIs(t, err, common.ErrStorageFailure)
}

func TestLocalStats(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	day := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)

	for _, ts := range []time.Time{now.Add(-time.Hour), now.AddDate(0, 0, -2), now.AddDate(0, 0, -40)} {
		require.NoError(t, repo.Insert(ctx, &models.Entry{Name: "Kim", Phone: "01012345678", CreatedAt: ts}))
	}

	s, err := repo.Stats(ctx, Filter{}, day, now)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Total: 3, Today: 1, Week: 2, Month: 2}, s)
}

func TestLocalList_LimitKeepsLatest(t *testing.T) {
	repo, _ := newLocal(t)
	ctx := context.Background()

	for _, name := range []string{"Kim", "Lee", "Park"} {
		require.NoError(t, repo.Insert(ctx, &models.Entry{Name: name, Phone: "01012345678"}))
	}

	list, err := repo.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Lee", list[0].Name)
	assert.Equal(t, "Park", list[1].Name)

	n, err := repo.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
