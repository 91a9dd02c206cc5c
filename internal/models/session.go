package models

import (
	"sort"
	"time"
)

// Session is a named collection campaign identified by a 4-digit PIN.
// The counters are derived from entries and never written back.
type Session struct {
	ID           int64      `json:"id"`
	Pin          string     `json:"pin"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	TotalEntries int64      `json:"total_entries"`
	TodayEntries int64      `json:"today_entries"`
	LastEntryAt  *time.Time `json:"last_entry_at,omitempty"`
}

// Expired reports whether the session has an expiry at or before now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

// Usable reports whether submissions may be attributed to the session.
func (s Session) Usable(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}

// SortSessions orders active sessions first, then by PIN ascending.
func SortSessions(list []Session) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsActive != list[j].IsActive {
			return list[i].IsActive
		}
		return list[i].Pin < list[j].Pin
	})
}

// Stats are aggregate entry counts relative to "now".
type Stats struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
	Week  int64 `json:"week"`
	Month int64 `json:"month"`
}

// Add counts one entry created at ts into the buckets. dayStart is
// midnight of the current day.
func (s *Stats) Add(ts, dayStart, now time.Time) {
	s.Total++
	if !ts.Before(dayStart) {
		s.Today++
	}
	if !ts.Before(now.AddDate(0, 0, -7)) {
		s.Week++
	}
	if !ts.Before(now.AddDate(0, -1, 0)) {
		s.Month++
	}
}
