package gateway

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
)

// Session operations go to the store of the current mode and never fail
// over: a PIN namespace split across two stores could not stay unique.

// sessionErr passes domain outcomes through and treats anything else from
// the remote store as a connectivity failure.
func (g *Gateway) sessionErr(ctx context.Context, remote bool, op string, err error) error {
	if !isRemoteFailure(err) {
		return err
	}
	if remote {
		return g.remoteFailed(ctx, op, err)
	}
	return storageFailure(op, err)
}

func (g *Gateway) CreateSession(ctx context.Context, s *models.Session) error {
	store, remote := g.active()
	if err := store.Sessions().Create(ctx, s); err != nil {
		return g.sessionErr(ctx, remote, "create session", err)
	}
	return nil
}

// ListSessions returns every session with derived counters, active first.
func (g *Gateway) ListSessions(ctx context.Context) ([]models.Session, error) {
	store, remote := g.active()
	list, err := store.Sessions().List(ctx)
	if err != nil {
		return nil, g.sessionErr(ctx, remote, "list sessions", err)
	}
	return list, nil
}

func (g *Gateway) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	store, remote := g.active()
	s, err := store.Sessions().GetByID(ctx, id)
	if err != nil {
		return nil, g.sessionErr(ctx, remote, "get session", err)
	}
	return s, nil
}

func (g *Gateway) SetSessionActive(ctx context.Context, id int64, active bool) error {
	store, remote := g.active()
	if err := store.Sessions().SetActive(ctx, id, active); err != nil {
		return g.sessionErr(ctx, remote, "update session", err)
	}
	return nil
}

// DeleteSession removes the session's entries first and only then the
// session record. A partial entry deletion leaves the session in place.
func (g *Gateway) DeleteSession(ctx context.Context, id int64) (models.DeleteResult, error) {
	res, err := g.DeleteEntriesForSession(ctx, id)
	if err != nil {
		return res, err
	}

	store, remote := g.active()
	if err := store.Sessions().Delete(ctx, id); err != nil {
		return res, g.sessionErr(ctx, remote, "delete session", err)
	}
	return res, nil
}

// ResolvePin returns the active, unexpired session for pin or
// common.ErrInvalidSession. When the remote store cannot answer, the local
// session namespace is consulted; a PIN missing there as well is reported
// as common.ErrRemoteUnavailable, since the session may exist remotely.
// Local failures are common.ErrStorageFailure.
func (g *Gateway) ResolvePin(ctx context.Context, pin string) (*models.Session, error) {
	store, remote := g.active()
	s, err := store.Sessions().GetByPin(ctx, pin)
	if remote && isRemoteFailure(err) {
		remoteErr := g.remoteFailed(ctx, "resolve pin", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s, err = g.local.Sessions().GetByPin(ctx, pin)
		if errors.Is(err, common.ErrNotFound) {
			return nil, remoteErr
		}
		remote = false
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		return nil, common.ErrInvalidSession
	case err != nil:
		return nil, g.sessionErr(ctx, remote, "resolve pin", err)
	case !s.Usable(g.now()):
		return nil, common.ErrInvalidSession
	}
	return s, nil
}
