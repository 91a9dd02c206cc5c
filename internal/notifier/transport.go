// Package notifier delivers newly stored entries to subscribers, over the
// transport that matches the gateway's current mode, with at-least-once
// semantics and per-subscription de-duplication by entry id.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/models"
)

// Transport produces entry notifications.
type Transport interface {
	Name() string
	// Subscribe starts delivering entries to deliver until the returned
	// subscription is closed or ctx is done. deliver may be called from
	// several goroutines.
	Subscribe(ctx context.Context, deliver func(models.Entry)) (Subscription, error)
}

type Subscription interface {
	Close() error
}

type noopSubscription struct{}

func (noopSubscription) Close() error { return nil }

// decodeEntry parses a notification payload into a canonical entry.
func decodeEntry(payload []byte) (models.Entry, error) {
	var e models.Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return models.Entry{}, fmt.Errorf("failed to decode entry payload: %w", err)
	}
	return e, nil
}
