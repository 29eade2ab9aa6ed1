// Package parking describes parking session records.
package parking

import "time"

// Record is a single parking session. A record starts open (ExitTime nil)
// and is closed exactly once; a closed record is never reopened.
type Record struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	EntryTime time.Time  `json:"entry_time"`
	ExitTime  *time.Time `json:"exit_time"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Open reports whether the session is still active.
func (r Record) Open() bool {
	return r.ExitTime == nil
}

// DurationHours returns the session length in hours. Entry stamped after
// exit yields a negative value; clock skew between the two writes is
// reported as-is rather than corrected.
func (r Record) DurationHours() float64 {
	if r.ExitTime == nil {
		return 0
	}
	return r.ExitTime.Sub(r.EntryTime).Hours()
}

// ExitSummary is the result of closing a session.
type ExitSummary struct {
	DurationHours float64 `json:"parking_duration_hours"`
	UserName      string  `json:"user"`
}
