// Package models defines the records shared by the stores, the registry and
// the admin surfaces.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one collected contact record.
//
// Phone holds digits only; formatting for display happens at the edges.
// SessionID is nil for entries collected outside any session.
type Entry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	SessionID *int64    `json:"session_id,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// entryWire accepts every shape an entry has been stored in: the canonical
// created_at key and the older local-only timestamp key.
type entryWire struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	Phone     string      `json:"phone"`
	CreatedAt *time.Time  `json:"created_at"`
	Timestamp *time.Time  `json:"timestamp"`
	SessionID *int64      `json:"session_id"`
	IPAddress string      `json:"ip_address"`
	UserAgent string      `json:"user_agent"`
}

// UnmarshalJSON canonicalises legacy records on read, so every consumer
// sees a single shape.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var w entryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	var id int64
	if w.ID != "" {
		n, err := w.ID.Int64()
		if err != nil {
			f, ferr := w.ID.Float64()
			if ferr != nil {
				return fmt.Errorf("invalid entry id %q: %w", w.ID, err)
			}
			n = int64(f)
		}
		id = n
	}

	*e = Entry{
		ID:        id,
		Name:      w.Name,
		Phone:     w.Phone,
		SessionID: w.SessionID,
		IPAddress: w.IPAddress,
		UserAgent: w.UserAgent,
	}
	switch {
	case w.CreatedAt != nil:
		e.CreatedAt = w.CreatedAt.UTC()
	case w.Timestamp != nil:
		e.CreatedAt = w.Timestamp.UTC()
	}
	return nil
}

// InSession reports whether the entry belongs to the given session. A nil
// filter matches every entry.
func (e Entry) InSession(sessionID *int64) bool {
	if sessionID == nil {
		return true
	}
	return e.SessionID != nil && *e.SessionID == *sessionID
}

// NewEntry is the input of a submission before it gets an identity.
type NewEntry struct {
	Name       string
	Phone      string
	SessionPin string
	IPAddress  string
	UserAgent  string
}

// DeleteResult summarises a deletion. Remaining is non-zero only for a
// partial deletion.
type DeleteResult struct {
	Deleted   int64 `json:"deleted"`
	Remaining int64 `json:"remaining"`
}
