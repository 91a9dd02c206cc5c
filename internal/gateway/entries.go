package gateway

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/metrics"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/repositories/entries"
	"github.com/dmitrijs2005/leadkeeper/internal/timex"
	"github.com/dmitrijs2005/leadkeeper/internal/validation"
)

// InsertResult is a stored entry. Degraded is set when the remote write
// failed and the entry went to the local store instead.
type InsertResult struct {
	Entry    models.Entry
	Degraded bool
}

// InsertEntry validates and stores one submission.
func (g *Gateway) InsertEntry(ctx context.Context, in models.NewEntry) (InsertResult, error) {
	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateName(name); err != nil {
		g.metrics.Submission(metrics.OutcomeInvalid)
		return InsertResult{}, err
	}
	phone, err := validation.ValidatePhone(in.Phone)
	if err != nil {
		g.metrics.Submission(metrics.OutcomeInvalid)
		return InsertResult{}, err
	}

	e := models.Entry{Name: name, Phone: phone, IPAddress: in.IPAddress, UserAgent: in.UserAgent}

	if pin := strings.TrimSpace(in.SessionPin); pin != "" {
		if err := validation.ValidatePin(pin); err != nil {
			g.metrics.Submission(metrics.OutcomeInvalid)
			return InsertResult{}, &common.FieldError{Field: validation.FieldPin, Reason: "pin must be exactly 4 digits"}
		}
		s, err := g.ResolvePin(ctx, pin)
		if err != nil {
			g.metrics.Submission(metrics.OutcomeInvalid)
			return InsertResult{}, err
		}
		e.SessionID = &s.ID
	}

	degraded := false
	if store, remote := g.active(); remote {
		repo := store.Entries()
		g.checkDuplicate(ctx, repo, phone)

		err := repo.Insert(ctx, &e)
		if err == nil {
			g.metrics.Submission(metrics.OutcomeStored)
			g.announce(ctx, e)
			return InsertResult{Entry: e}, nil
		}
		_ = g.remoteFailed(ctx, "insert entry", err)
		if ctx.Err() != nil {
			g.metrics.Submission(metrics.OutcomeFailed)
			return InsertResult{}, ctx.Err()
		}
		e.ID = 0
		degraded = true
	}

	if err := g.local.Entries().Insert(ctx, &e); err != nil {
		g.metrics.Submission(metrics.OutcomeFailed)
		g.log.Error(ctx, "local insert failed", "error", err)
		return InsertResult{}, storageFailure("insert entry", err)
	}

	if degraded {
		g.metrics.FallbackWrite()
		g.metrics.Submission(metrics.OutcomeDegraded)
		if ch := g.localChannel(); ch != nil {
			ch.Post(e)
		}
	} else {
		g.metrics.Submission(metrics.OutcomeStored)
	}
	g.announce(ctx, e)
	return InsertResult{Entry: e, Degraded: degraded}, nil
}

// checkDuplicate only logs: a repeated phone is allowed.
func (g *Gateway) checkDuplicate(ctx context.Context, repo entries.Repository, phone string) {
	exists, err := repo.PhoneExists(ctx, phone)
	if err != nil {
		g.log.Debug(ctx, "duplicate phone check failed", "error", err)
		return
	}
	if exists {
		g.log.Warn(ctx, "phone already collected", "phone", validation.FormatPhone(phone))
	}
}

func (g *Gateway) announce(ctx context.Context, e models.Entry) {
	if g.broadcaster == nil {
		return
	}
	if err := g.broadcaster.Publish(ctx, e); err != nil {
		g.log.Warn(ctx, "failed to broadcast entry", "id", e.ID, "error", err)
	}
}

// QueryEntries returns entries, optionally for one session. Remote results
// are newest first; local results keep store order. A failing remote read
// falls back to the local store.
func (g *Gateway) QueryEntries(ctx context.Context, sessionID *int64) ([]models.Entry, error) {
	return g.listEntries(ctx, entries.Filter{SessionID: sessionID})
}

// RecentEntries is QueryEntries capped at the newest limit entries.
func (g *Gateway) RecentEntries(ctx context.Context, sessionID *int64, limit int) ([]models.Entry, error) {
	return g.listEntries(ctx, entries.Filter{SessionID: sessionID, Limit: limit})
}

func (g *Gateway) listEntries(ctx context.Context, f entries.Filter) ([]models.Entry, error) {

	if store, remote := g.active(); remote {
		list, err := store.Entries().List(ctx, f)
		if err == nil {
			return list, nil
		}
		_ = g.remoteFailed(ctx, "query entries", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	list, err := g.local.Entries().List(ctx, f)
	if err != nil {
		return nil, storageFailure("query entries", err)
	}
	return list, nil
}

// Stats aggregates total, today, last 7 days and last month.
func (g *Gateway) Stats(ctx context.Context, sessionID *int64) (models.Stats, error) {
	now := g.now().In(g.loc)
	dayStart := timex.StartOfDay(now)
	f := entries.Filter{SessionID: sessionID}

	if store, remote := g.active(); remote {
		s, err := store.Entries().Stats(ctx, f, dayStart, now)
		if err == nil {
			return s, nil
		}
		_ = g.remoteFailed(ctx, "entry stats", err)
		if ctx.Err() != nil {
			return models.Stats{}, ctx.Err()
		}
	}

	s, err := g.local.Entries().Stats(ctx, f, dayStart, now)
	if err != nil {
		return models.Stats{}, storageFailure("entry stats", err)
	}
	return s, nil
}
