// Package entries stores collected Entry records, either in the remote
// PostgreSQL database or in the local slot store.
//
// Repositories only translate filters and shapes for their engine. Routing,
// failover and verification live in the gateway.
package entries

import (
	"context"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/models"
)

// Filter narrows an entry query. The zero value matches every entry.
type Filter struct {
	SessionID *int64
	Since     *time.Time
	// Limit caps List at the newest Limit entries; 0 means no cap.
	Limit int
}

func (f Filter) match(e models.Entry) bool {
	if !e.InSession(f.SessionID) {
		return false
	}
	if f.Since != nil && e.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Repository is the storage surface used by the gateway.
type Repository interface {
	// Insert stores e and fills in its ID (and CreatedAt when zero).
	Insert(ctx context.Context, e *models.Entry) error
	// List returns matching entries. Remote: newest first. Local: store order.
	List(ctx context.Context, f Filter) ([]models.Entry, error)
	Count(ctx context.Context, f Filter) (int64, error)
	IDs(ctx context.Context, f Filter) ([]int64, error)
	// DeleteMatching bulk-deletes and returns the number of rows the engine
	// reports as affected.
	DeleteMatching(ctx context.Context, f Filter) (int64, error)
	DeleteByID(ctx context.Context, id int64) (int64, error)
	Stats(ctx context.Context, f Filter, dayStart, now time.Time) (models.Stats, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
}
