// Package storage persists the session journal: one entry per session
// transition or delivered message, kept for the `history` command and for
// post-mortems.
//
// Drivers:
//   - "file": JSON Lines with a cross-process lock
//   - "sqlite": a single SQLite database file (pure Go driver)
//
// Open returns (nil, nil) when storage is disabled; callers treat a nil Store
// as "journal off".
package storage
