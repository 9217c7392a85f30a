package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines journal (<path without ext>.journal.jsonl)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Retain caps the number of journal entries kept. 0 keeps everything.
	Retain int
}

// Entry kinds written by the app.
const (
	KindSessionStarted  = "session.started"
	KindSessionLive     = "session.live"
	KindSessionRestored = "session.restored"
	KindDelivered       = "message.delivered"
	KindDirect          = "message.direct"
	KindDropped         = "message.dropped"
)

// Entry is one journal record. Keep it compact and schema-stable.
type Entry struct {
	ID      int64     `json:"id"`
	At      time.Time `json:"at"`
	Session string    `json:"session,omitempty"`
	Kind    string    `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Query filters List. Zero fields match everything.
type Query struct {
	Session string
	Kind    string
	Since   time.Time
	// Limit keeps only the newest Limit matches. 0 means no limit.
	Limit int
}

func (q Query) match(e Entry) bool {
	if q.Session != "" && e.Session != q.Session {
		return false
	}
	if q.Kind != "" && e.Kind != q.Kind {
		return false
	}
	if !q.Since.IsZero() && e.At.Before(q.Since) {
		return false
	}
	return true
}
