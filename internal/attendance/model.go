package attendance

import "time"

// Group is a Telegram chat whose voice sessions are tracked.
type Group struct {
	ID    int64  `json:"group_id"`
	Title string `json:"title"`
}

// Session is one tracked attendance period for a group, bounded by an
// explicit start and stop. A stopped session is never reactivated; starting
// again creates a new row.
type Session struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Active    bool      `json:"active"`
}

// Observation is a participant detected present during a single poll tick.
type Observation struct {
	UserID int64
	Name   string
}

// Record accumulates a participant's observed presence within one session.
// DurationSeconds only ever grows, in whole poll-interval steps; the name
// tracks the latest observed display name.
type Record struct {
	UserID          int64  `json:"user_id"`
	SessionID       int64  `json:"session_id"`
	UserName        string `json:"user_name"`
	DurationSeconds int64  `json:"duration_seconds"`
}
