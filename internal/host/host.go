// Package host describes the collaborators menunotice needs from the process it
// runs in: the scene dispatcher, the notification subsystem that renders
// messages, and the rewrite capability used to alter that subsystem's
// per-frame visibility computation.
//
// None of these are implemented here. Production hosts provide their own
// bindings; internal/host/sim provides a deterministic in-process version for
// tests and the CLI.
package host

import (
	"errors"
	"time"
)

// Event types published on the event bus by the host.
const (
	// EventTargetReady fires once the notification subsystem instance exists.
	EventTargetReady = "target.ready"
	// EventSceneLoaded fires on every scene transition. Data is SceneEvent.
	EventSceneLoaded = "scene.loaded"
)

// PointVisibility names the spot in the subsystem's update routine where the
// per-message visibility coefficient is about to be stored.
const PointVisibility = "message.visibility"

// FullyVisible is the coefficient reported for messages that must not fade.
const FullyVisible = 1.0

// ErrUnknownPoint is returned by Patcher.Rewrite when the subsystem does not
// expose the requested rewrite point.
var ErrUnknownPoint = errors.New("rewrite point not found")

// SceneEvent is the payload of EventSceneLoaded.
type SceneEvent struct {
	Name string `json:"name"`
}

// Vector2 is a 2D size or offset in subsystem layout units.
type Vector2 struct {
	X float64 `json:"x" yaml:"x" toml:"x"`
	Y float64 `json:"y" yaml:"y" toml:"y"`
}

// Host exposes scene-level status polled by the lifecycle coordinator.
type Host interface {
	ActiveScene() string
	IsSaveLoadInProgress() bool
}

// Handle references a message already handed to the subsystem. The subsystem
// owns it; callers only hold a tracking reference.
type Handle interface {
	Text() string
	Expiry() time.Time
	SetExpiry(t time.Time)
	RegionSize() Vector2
	SetRegionSize(v Vector2)
}

// Subsystem is the notification manager being augmented.
type Subsystem interface {
	// Live reports whether the subsystem instance exists yet.
	Live() bool
	// AddDebugMessage is the subsystem's normal debug-notification entry point.
	// It returns nil when the subsystem is not live.
	AddDebugMessage(text string) Handle
	LayoutOffset() Vector2
	SetLayoutOffset(v Vector2)
	CanvasSize() Vector2
	DefaultRegionSize() Vector2
	// Now is the subsystem's clock; expiries are expressed against it.
	Now() time.Time
}

// Substitution receives the handle and the coefficient the subsystem computed
// and returns the value that is actually stored.
type Substitution func(h Handle, computed float64) float64

// Patcher is the behaviour-rewrite capability.
type Patcher interface {
	// Available reports whether rewrites can be applied right now.
	Available() bool
	// Rewrite installs fn at point. It returns an error wrapping
	// ErrUnknownPoint when the point does not exist.
	Rewrite(point string, fn Substitution) error
	// Revert removes whatever Rewrite installed at point. Unknown or
	// unpatched points are ignored.
	Revert(point string)
}
