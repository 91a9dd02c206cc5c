package gateway

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/entries"
)

// rowPasses is how many per-row passes follow a bulk delete that left rows.
const rowPasses = 2

// DeleteEntry removes one entry. Deleting a missing entry succeeds with a
// zero count.
func (g *Gateway) DeleteEntry(ctx context.Context, id int64) (models.DeleteResult, error) {
	store, remote := g.active()
	n, err := store.Entries().DeleteByID(ctx, id)
	if err != nil {
		if remote {
			return models.DeleteResult{}, g.remoteFailed(ctx, "delete entry", err)
		}
		return models.DeleteResult{}, storageFailure("delete entry", err)
	}
	return models.DeleteResult{Deleted: n}, nil
}

// DeleteAllEntries removes every entry. In remote mode the local store is
// cleared as well.
func (g *Gateway) DeleteAllEntries(ctx context.Context) (models.DeleteResult, error) {
	store, remote := g.active()
	if !remote {
		return g.deleteLocal(ctx, entries.Filter{})
	}

	res, err := g.deleteVerified(ctx, store.Entries(), entries.Filter{})
	if err != nil {
		return res, err
	}
	if _, err := g.local.Entries().DeleteMatching(ctx, entries.Filter{}); err != nil {
		g.log.Warn(ctx, "failed to clear local entries", "error", err)
	}
	return res, nil
}

// DeleteEntriesForSession removes the entries attributed to one session.
func (g *Gateway) DeleteEntriesForSession(ctx context.Context, sessionID int64) (models.DeleteResult, error) {
	f := entries.Filter{SessionID: &sessionID}
	store, remote := g.active()
	if !remote {
		return g.deleteLocal(ctx, f)
	}
	return g.deleteVerified(ctx, store.Entries(), f)
}

func (g *Gateway) deleteLocal(ctx context.Context, f entries.Filter) (models.DeleteResult, error) {
	n, err := g.local.Entries().DeleteMatching(ctx, f)
	if err != nil {
		return models.DeleteResult{}, storageFailure("delete entries", err)
	}
	return models.DeleteResult{Deleted: n}, nil
}

// deleteVerified bulk-deletes against the remote store and re-counts, since
// the engine may report success while access policies kept every row. Rows
// that survive are retried one at a time, up to rowPasses times. Whatever
// is still left is reported as a *common.PartialDeletionError.
func (g *Gateway) deleteVerified(ctx context.Context, repo entries.Repository, f entries.Filter) (models.DeleteResult, error) {
	before, err := repo.Count(ctx, f)
	if err != nil {
		return models.DeleteResult{}, g.remoteFailed(ctx, "count entries", err)
	}
	if before == 0 {
		return models.DeleteResult{}, nil
	}

	if _, err := repo.DeleteMatching(ctx, f); err != nil {
		g.log.Warn(ctx, "bulk delete failed", "error", err)
	}

	remaining, err := repo.Count(ctx, f)
	if err != nil {
		return models.DeleteResult{}, g.remoteFailed(ctx, "count entries", err)
	}

	for pass := 1; remaining > 0 && pass <= rowPasses && ctx.Err() == nil; pass++ {
		g.log.Warn(ctx, "delete left rows, retrying per row", "remaining", remaining, "pass", pass)
		g.deleteRows(ctx, repo, f)

		remaining, err = repo.Count(ctx, f)
		if err != nil {
			return models.DeleteResult{}, g.remoteFailed(ctx, "count entries", err)
		}
	}

	deleted := max(before-remaining, 0)
	res := models.DeleteResult{Deleted: deleted, Remaining: remaining}
	if remaining > 0 {
		g.metrics.PartialDeletion()
		g.log.Error(ctx, "entries remain after delete", "deleted", deleted, "remaining", remaining)
		return res, &common.PartialDeletionError{Deleted: deleted, Remaining: remaining}
	}
	return res, nil
}

// deleteRows deletes matching rows by id, stopping early when ctx is done.
func (g *Gateway) deleteRows(ctx context.Context, repo entries.Repository, f entries.Filter) {
	ids, err := repo.IDs(ctx, f)
	if err != nil {
		g.log.Warn(ctx, "failed to list rows for retry", "error", err)
		return
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if _, err := repo.DeleteByID(ctx, id); err != nil {
			g.log.Warn(ctx, "row delete failed", "id", id, "error", err)
		}
	}
}
