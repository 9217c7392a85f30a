package delivery

import (
	"time"

	"menunotice/internal/host"
)

const (
	// DefaultCaller is the attribution used when a message has no caller.
	DefaultCaller = "QModManager"
	DefaultSize   = 25
	DefaultColor  = "red"
	// DefaultExtraVisible keeps a message on screen for the whole menu phase.
	DefaultExtraVisible = 1_000_000 * time.Second
	defaultHistorySize  = 100
)

// DefaultWidenedOffset is used when Config.WidenedOffset is zero.
var DefaultWidenedOffset = host.Vector2{X: 140, Y: 300}

// Bus event types.
const (
	EventPending   = "queue.pending"
	EventDelivered = "queue.delivered"
	EventFlushed   = "queue.flushed"
	EventDirect    = "queue.direct"
	EventDropped   = "queue.dropped"
	EventReset     = "queue.reset"
)

// Message is a caller request. Zero Size/Color fall back to the defaults;
// Autoformat must be set explicitly (the public entry point defaults it to true).
type Message struct {
	Text         string
	CallerID     string
	Size         int
	Color        string
	Autoformat   bool
	ExtraVisible time.Duration
}

// Config controls the queue.
type Config struct {
	// BoundaryScene marks the end of the menu phase. Once it is the active
	// scene, messages bypass the queue entirely.
	BoundaryScene string
	// WidenedOffset is applied to the subsystem's layout when the queue flushes.
	WidenedOffset host.Vector2
	HistorySize   int
}

// HistoryItem records a message handed to the subsystem.
type HistoryItem struct {
	At     time.Time
	Text   string
	Direct bool
}

// QueueEvent is emitted on the event bus. Keep it small.
type QueueEvent struct {
	Text      string    `json:"text,omitempty"`
	Pending   int       `json:"pending"`
	Delivered int       `json:"delivered"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
}

// Snapshot is a point-in-time view for operators and tests.
type Snapshot struct {
	Live           bool
	Draining       bool
	Pending        []string
	Delivered      []string
	PreviousOffset host.Vector2
}
