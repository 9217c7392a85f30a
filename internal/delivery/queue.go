package delivery

import (
	"errors"
	"sort"
	"sync"
	"time"

	"menunotice/internal/eventbus"
	"menunotice/internal/host"
	logx "menunotice/pkg/logx"
)

// ErrPreconditionNotMet is returned when the visibility patch cannot be used.
// The message is dropped.
var ErrPreconditionNotMet = errors.New("delivery precondition not met: patch capability unavailable")

// Deps are the collaborators a Queue talks to.
type Deps struct {
	Host      host.Host
	Subsystem host.Subsystem
	// Available reports whether the visibility patch can be used.
	Available func() bool
	// Init prepares the session (subscriptions, patch). It is called on every
	// queued enqueue and must be idempotent.
	Init func() error
}

// Queue holds menu-phase messages until the subsystem is ready, then hands
// them over and remembers which handles belong to the session.
//
// Handles returned by the subsystem must be comparable.
// It is safe for concurrent use.
type Queue struct {
	mu sync.Mutex

	cfg  Config
	deps Deps
	log  logx.Logger
	bus  eventbus.Bus

	pending   map[string]time.Duration
	delivered []host.Handle
	tracked   map[host.Handle]struct{}

	previousOffset host.Vector2
	live           bool
	// draining is set when the session starts tearing down. Enqueue then keeps
	// messages pending instead of handing them over.
	draining bool

	history []HistoryItem
}

// New returns an empty queue. A nil bus disables events.
func New(cfg Config, deps Deps, log logx.Logger, bus eventbus.Bus) *Queue {
	if log.IsZero() {
		log = logx.Nop()
	}
	q := &Queue{
		deps:    deps,
		log:     log.With(logx.String("comp", "delivery")),
		bus:     bus,
		pending: map[string]time.Duration{},
		tracked: map[host.Handle]struct{}{},
	}
	q.applyLocked(cfg)
	return q
}

// Apply swaps the configuration. The widened offset of a live session is not
// touched; it applies from the next flush.
func (q *Queue) Apply(cfg Config) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.applyLocked(cfg)
}

func (q *Queue) applyLocked(cfg Config) {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.WidenedOffset == (host.Vector2{}) {
		cfg.WidenedOffset = DefaultWidenedOffset
	}
	q.cfg = cfg
}

// SetHooks sets Deps.Available and Deps.Init after construction, for owners
// that need the queue before they can provide them.
func (q *Queue) SetHooks(available func() bool, init func() error) {
	q.mu.Lock()
	q.deps.Available = available
	q.deps.Init = init
	q.mu.Unlock()
}

// Enqueue accepts a message.
//
// After the boundary scene is active the raw text goes straight to the
// subsystem. Before it, the formatted text is delivered right away when the
// session is live and not draining, and otherwise kept until Flush or Reset. Enqueueing the same
// formatted text twice while pending keeps a single entry with the latest
// extra visible time.
func (q *Queue) Enqueue(m Message) error {
	q.mu.Lock()
	deps := q.deps
	boundary := q.cfg.BoundaryScene
	q.mu.Unlock()

	if deps.Available == nil || !deps.Available() {
		q.log.Error("message dropped: visibility patch unavailable", logx.String("text", m.Text))
		q.publish(EventDropped, QueueEvent{Text: m.Text, Error: ErrPreconditionNotMet.Error()})
		return ErrPreconditionNotMet
	}

	if deps.Host != nil && boundary != "" && deps.Host.ActiveScene() == boundary {
		q.deliverDirect(m.Text)
		return nil
	}

	if deps.Init != nil {
		if err := deps.Init(); err != nil {
			q.publish(EventDropped, QueueEvent{Text: m.Text, Error: err.Error()})
			return err
		}
	}

	text := Format(m)
	q.mu.Lock()
	if q.live && !q.draining {
		if h := q.deliverLocked(text, m.ExtraVisible); h != nil {
			q.mu.Unlock()
			q.publish(EventDelivered, QueueEvent{Text: text})
			return nil
		}
		// Subsystem went away underneath us; keep it for the next session.
	}
	q.pending[text] = m.ExtraVisible
	n := len(q.pending)
	q.mu.Unlock()

	q.log.Debug("message queued", logx.String("text", text), logx.Int("pending", n))
	q.publish(EventPending, QueueEvent{Text: text})
	return nil
}

// Flush widens the layout, remembering the previous offset, and delivers
// every pending message. It runs once per session; later calls do nothing.
func (q *Queue) Flush() {
	q.mu.Lock()
	if q.live {
		q.mu.Unlock()
		return
	}
	sub := q.deps.Subsystem
	q.previousOffset = sub.LayoutOffset()
	sub.SetLayoutOffset(q.cfg.WidenedOffset)
	q.live = true
	q.draining = false

	texts := make([]string, 0, len(q.pending))
	for text := range q.pending {
		texts = append(texts, text)
	}
	sort.Strings(texts)
	sent := make([]string, 0, len(texts))
	for _, text := range texts {
		if q.deliverLocked(text, q.pending[text]) != nil {
			sent = append(sent, text)
		}
	}
	clear(q.pending)
	q.mu.Unlock()

	for _, text := range sent {
		q.publish(EventDelivered, QueueEvent{Text: text})
	}
	q.log.Info("pending messages flushed", logx.Int("count", len(sent)))
	q.publish(EventFlushed, QueueEvent{})
}

// deliverLocked hands text to the subsystem and extends its lifetime.
// The region is widened to the canvas minus the offset on both sides.
func (q *Queue) deliverLocked(text string, extra time.Duration) host.Handle {
	sub := q.deps.Subsystem
	h := sub.AddDebugMessage(text)
	if h == nil {
		return nil
	}
	q.delivered = append(q.delivered, h)
	q.tracked[h] = struct{}{}

	h.SetExpiry(h.Expiry().Add(extra))
	canvas := sub.CanvasSize()
	off := sub.LayoutOffset()
	h.SetRegionSize(host.Vector2{X: canvas.X - 2*off.X, Y: h.RegionSize().Y})

	q.appendHistoryLocked(sub.Now(), text, false)
	return h
}

func (q *Queue) deliverDirect(text string) {
	sub := q.deps.Subsystem
	if sub == nil || sub.AddDebugMessage(text) == nil {
		q.log.Warn("direct delivery failed: subsystem not live", logx.String("text", text))
		q.publish(EventDropped, QueueEvent{Text: text, Error: "subsystem not live"})
		return
	}
	q.mu.Lock()
	q.appendHistoryLocked(sub.Now(), text, true)
	q.mu.Unlock()
	q.publish(EventDirect, QueueEvent{Text: text})
}

// Tracks reports whether h is in the current session's delivered set.
func (q *Queue) Tracks(h host.Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.tracked[h]
	return ok
}

// Drain stops immediate delivery for the rest of the session. Messages
// enqueued from now on stay pending until Reset drops them.
func (q *Queue) Drain() {
	q.mu.Lock()
	q.draining = true
	q.mu.Unlock()
}

// Draining reports whether Drain was called in this session.
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// ExpireAll sets the expiry of every delivered message to at. The handles
// stay pinned; the subsystem dismisses them once at passes.
func (q *Queue) ExpireAll(at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, h := range q.delivered {
		h.SetExpiry(at)
	}
}

// ResetRegions puts every delivered message back to the default region size.
func (q *Queue) ResetRegions() {
	q.mu.Lock()
	defer q.mu.Unlock()
	def := q.deps.Subsystem.DefaultRegionSize()
	for _, h := range q.delivered {
		h.SetRegionSize(def)
	}
}

// ClearDelivered forgets the delivered handles. The patch no longer applies to them.
func (q *Queue) ClearDelivered() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delivered = nil
	clear(q.tracked)
}

// RestoreOffset puts back the layout offset captured at Flush.
func (q *Queue) RestoreOffset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.live {
		return
	}
	q.deps.Subsystem.SetLayoutOffset(q.previousOffset)
}

// Reset ends the session: pending and delivered are emptied and the next
// enqueue starts a fresh one.
func (q *Queue) Reset() {
	q.mu.Lock()
	clear(q.pending)
	q.delivered = nil
	clear(q.tracked)
	q.live = false
	q.draining = false
	q.mu.Unlock()
	q.publish(EventReset, QueueEvent{})
}

// Live reports whether the session has flushed.
func (q *Queue) Live() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.live
}

// PendingCount is the number of messages waiting for Flush.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// DeliveredCount is the number of handles the current session tracks.
func (q *Queue) DeliveredCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.delivered)
}

// Snapshot copies the queue state; pending texts are sorted.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Snapshot{Live: q.live, Draining: q.draining, PreviousOffset: q.previousOffset}
	for text := range q.pending {
		s.Pending = append(s.Pending, text)
	}
	sort.Strings(s.Pending)
	for _, h := range q.delivered {
		s.Delivered = append(s.Delivered, h.Text())
	}
	return s
}

// History returns the most recent hand-offs, oldest first.
func (q *Queue) History() []HistoryItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]HistoryItem(nil), q.history...)
}

func (q *Queue) appendHistoryLocked(at time.Time, text string, direct bool) {
	q.history = append(q.history, HistoryItem{At: at, Text: text, Direct: direct})
	if n := q.cfg.HistorySize; len(q.history) > n {
		q.history = q.history[len(q.history)-n:]
	}
}

func (q *Queue) publish(typ string, ev QueueEvent) {
	if q.bus == nil {
		return
	}
	q.mu.Lock()
	ev.Pending = len(q.pending)
	ev.Delivered = len(q.delivered)
	var now time.Time
	if q.deps.Subsystem != nil {
		now = q.deps.Subsystem.Now()
	}
	q.mu.Unlock()
	if now.IsZero() {
		now = time.Now()
	}
	ev.At = now
	q.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}
