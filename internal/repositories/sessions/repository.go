// Package sessions stores collection sessions (PIN-keyed campaigns).
package sessions

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/models"
)

// Repository persists sessions. Implementations must enforce PIN uniqueness
// across all sessions, active or not, and report a collision as
// common.ErrDuplicatePin. Lookups of unknown sessions return
// common.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	GetByPin(ctx context.Context, pin string) (*models.Session, error)
	GetByID(ctx context.Context, id int64) (*models.Session, error)
	// List returns every session with its derived counters.
	List(ctx context.Context) ([]models.Session, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}
