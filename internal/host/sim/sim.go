// Package sim is a deterministic, in-process host: a manual clock, a scene
// dispatcher that publishes on the event bus, and a notification subsystem
// whose per-frame fade computation exposes the PointVisibility rewrite seam.
//
// It is used by package tests and by `menunotice run`.
package sim

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"menunotice/internal/eventbus"
	"menunotice/internal/host"
)

const (
	defaultFadeDuration = time.Second
	defaultLifetime     = 5 * time.Second
)

// Config controls the simulated subsystem.
type Config struct {
	Canvas        host.Vector2
	DefaultRegion host.Vector2
	// Offset is the subsystem's initial layout offset.
	Offset host.Vector2
	// Lifetime is how long a normal debug message lives before it starts fading.
	Lifetime time.Duration
	// Fade is the fade-out window at the end of a message's life.
	Fade time.Duration
	// DisablePatching makes Patcher.Available report false.
	DisablePatching bool
	// Points lists the rewrite points the subsystem exposes. Nil means the
	// standard set (PointVisibility only).
	Points []string
}

// Message is the subsystem's internal message record.
type Message struct {
	mu     sync.Mutex
	text   string
	expiry time.Time
	region host.Vector2
	alpha  float64
}

func (m *Message) Text() string { return m.text }

func (m *Message) Expiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiry
}

func (m *Message) SetExpiry(t time.Time) {
	m.mu.Lock()
	m.expiry = t
	m.mu.Unlock()
}

func (m *Message) RegionSize() host.Vector2 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.region
}

func (m *Message) SetRegionSize(v host.Vector2) {
	m.mu.Lock()
	m.region = v
	m.mu.Unlock()
}

// Alpha returns the visibility coefficient stored by the last Update.
func (m *Message) Alpha() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alpha
}

// Host is the simulated host process.
type Host struct {
	mu sync.Mutex

	bus eventbus.Bus
	cfg Config

	now      time.Time
	scene    string
	saveLoad bool

	live     bool
	offset   host.Vector2
	messages []*Message

	points  map[string]bool
	patches map[string]host.Substitution
	// rewrites counts successful Rewrite calls per point.
	rewrites map[string]int
}

// New returns a simulated host whose clock starts at start.
func New(cfg Config, bus eventbus.Bus, start time.Time) *Host {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.Fade <= 0 {
		cfg.Fade = defaultFadeDuration
	}
	if cfg.Canvas == (host.Vector2{}) {
		cfg.Canvas = host.Vector2{X: 1920, Y: 1080}
	}
	if cfg.DefaultRegion == (host.Vector2{}) {
		cfg.DefaultRegion = host.Vector2{X: 500, Y: 40}
	}
	points := cfg.Points
	if points == nil {
		points = []string{host.PointVisibility}
	}
	h := &Host{
		bus:      bus,
		cfg:      cfg,
		now:      start,
		offset:   cfg.Offset,
		points:   map[string]bool{},
		patches:  map[string]host.Substitution{},
		rewrites: map[string]int{},
	}
	for _, p := range points {
		h.points[p] = true
	}
	return h
}

// ---- host.Host ----

func (h *Host) ActiveScene() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scene
}

func (h *Host) IsSaveLoadInProgress() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saveLoad
}

// SetSaveLoad toggles the save/load flag polled during restore.
func (h *Host) SetSaveLoad(v bool) {
	h.mu.Lock()
	h.saveLoad = v
	h.mu.Unlock()
}

// LoadScene switches the active scene and publishes EventSceneLoaded.
func (h *Host) LoadScene(name string) {
	h.mu.Lock()
	h.scene = name
	now := h.now
	h.mu.Unlock()
	if h.bus != nil {
		h.bus.Publish(eventbus.Event{Type: host.EventSceneLoaded, Time: now, Data: host.SceneEvent{Name: name}})
	}
}

// Boot brings the notification subsystem to life and publishes EventTargetReady.
// Calling it again is a no-op.
func (h *Host) Boot() {
	h.mu.Lock()
	if h.live {
		h.mu.Unlock()
		return
	}
	h.live = true
	now := h.now
	h.mu.Unlock()
	if h.bus != nil {
		h.bus.Publish(eventbus.Event{Type: host.EventTargetReady, Time: now})
	}
}

// ---- clock ----

func (h *Host) Now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

// Advance moves the clock forward and runs one subsystem update.
func (h *Host) Advance(d time.Duration) time.Time {
	h.mu.Lock()
	h.now = h.now.Add(d)
	now := h.now
	h.mu.Unlock()
	h.Update()
	return now
}

// ---- host.Subsystem ----

func (h *Host) Live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

func (h *Host) AddDebugMessage(text string) host.Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.live {
		return nil
	}
	m := &Message{
		text:   text,
		expiry: h.now.Add(h.cfg.Lifetime),
		region: h.cfg.DefaultRegion,
		alpha:  host.FullyVisible,
	}
	h.messages = append(h.messages, m)
	return m
}

func (h *Host) LayoutOffset() host.Vector2 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.offset
}

func (h *Host) SetLayoutOffset(v host.Vector2) {
	h.mu.Lock()
	h.offset = v
	h.mu.Unlock()
}

func (h *Host) CanvasSize() host.Vector2        { return h.cfg.Canvas }
func (h *Host) DefaultRegionSize() host.Vector2 { return h.cfg.DefaultRegion }

// ---- host.Patcher ----

func (h *Host) Available() bool { return !h.cfg.DisablePatching }

func (h *Host) Rewrite(point string, fn host.Substitution) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.points[point] {
		return fmt.Errorf("%s: %w", point, host.ErrUnknownPoint)
	}
	h.patches[point] = fn
	h.rewrites[point]++
	return nil
}

func (h *Host) Revert(point string) {
	h.mu.Lock()
	delete(h.patches, point)
	h.mu.Unlock()
}

// Patched reports whether a substitution is currently installed at point.
func (h *Host) Patched(point string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.patches[point]
	return ok
}

// Rewrites returns how many times Rewrite succeeded for point.
func (h *Host) Rewrites(point string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rewrites[point]
}

// ---- per-frame update ----

// Update runs the subsystem's per-frame routine: drop messages whose expiry
// has passed, then compute the fade coefficient of the rest, pass it through
// the visibility rewrite point and store it. Dismissal depends on expiry
// alone; the coefficient only drives display.
func (h *Host) Update() {
	h.mu.Lock()
	now := h.now
	sub := h.patches[host.PointVisibility]
	msgs := append([]*Message(nil), h.messages...)
	fade := h.cfg.Fade
	h.mu.Unlock()

	keep := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		expiry := m.Expiry()
		if !now.Before(expiry) {
			continue
		}
		v := fadeCoefficient(now, expiry, fade)
		if sub != nil {
			v = sub(m, v)
		}
		m.mu.Lock()
		m.alpha = v
		m.mu.Unlock()
		keep = append(keep, m)
	}

	h.mu.Lock()
	// Keep messages added while the lock was released.
	if len(h.messages) > len(msgs) {
		keep = append(keep, h.messages[len(msgs):]...)
	}
	h.messages = keep
	h.mu.Unlock()
}

// fadeCoefficient is 1 until fade before expiry, then ramps linearly to 0.
func fadeCoefficient(now, expiry time.Time, fade time.Duration) float64 {
	left := expiry.Sub(now)
	if left <= 0 {
		return 0
	}
	if left >= fade {
		return host.FullyVisible
	}
	return float64(left) / float64(fade)
}

// Visible returns the texts currently on screen (alpha > 0), sorted.
func (h *Host) Visible() []string {
	h.mu.Lock()
	msgs := append([]*Message(nil), h.messages...)
	h.mu.Unlock()
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Alpha() > 0 {
			out = append(out, m.text)
		}
	}
	sort.Strings(out)
	return out
}

// Messages returns every message record the subsystem still holds.
func (h *Host) Messages() []*Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Message(nil), h.messages...)
}
