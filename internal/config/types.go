package config

// Config is the on-disk configuration. Every format (JSON, YAML, TOML) is
// coerced to JSON and decoded strictly, so unknown keys are rejected.
//
// All durations are Go duration strings (e.g. "500ms", "1s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Queue     QueueConfig     `json:"queue"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Sim       SimConfig       `json:"sim"`
	Debug     DebugConfig     `json:"debug"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Menu    LoggingMenu `json:"menu"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingMenu mirrors log lines at or above MinLevel into the main menu.
type LoggingMenu struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// Vector is a 2D layout value in canvas units.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// QueueConfig holds the defaults for main-menu messages.
//
// Defaults (when fields are omitted/zero):
//   - caller: "" (rendered as QModManager)
//   - size: 25
//   - color: "red"
//   - extra_visible: "1000000s"
//   - widened_offset: {x: 140, y: 300}
//   - history_size: 100
type QueueConfig struct {
	Caller        string  `json:"caller,omitempty"`
	Size          int     `json:"size,omitempty"`
	Color         string  `json:"color,omitempty"`
	ExtraVisible  string  `json:"extra_visible,omitempty"`
	WidenedOffset *Vector `json:"widened_offset,omitempty"`
	HistorySize   int     `json:"history_size,omitempty"`
}

// LifecycleConfig controls session boundaries and the restore timings.
//
// Defaults: boundary_scene "Main", settle "1s", expire_after "1s",
// dismiss "1.1s", layout "500ms".
type LifecycleConfig struct {
	BoundaryScene string `json:"boundary_scene,omitempty"`
	SettleDelay   string `json:"settle_delay,omitempty"`
	ExpireAfter   string `json:"expire_after,omitempty"`
	DismissDelay  string `json:"dismiss_delay,omitempty"`
	LayoutDelay   string `json:"layout_delay,omitempty"`
}

// StorageConfig controls the optional session journal.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./menunotice_journal" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// Retain keeps only the newest N journal entries. 0 keeps everything.
	Retain int `json:"retain,omitempty"`
}

// SimConfig drives the simulated host used by `menunotice run`.
type SimConfig struct {
	Tick     string  `json:"tick,omitempty"`
	Canvas   *Vector `json:"canvas,omitempty"`
	Offset   *Vector `json:"offset,omitempty"`
	Region   *Vector `json:"region,omitempty"`
	Lifetime string  `json:"lifetime,omitempty"`
	Fade     string  `json:"fade,omitempty"`
	// MenuScene is active before the script starts.
	MenuScene string    `json:"menu_scene,omitempty"`
	Script    []SimStep `json:"script,omitempty"`
}

// SimStep is one scripted host action, run when the simulated clock reaches At.
//
// Actions:
//   - "message": AddMainMenuMessage(Text) attributed to Caller
//   - "boot": the notification subsystem becomes live
//   - "scene": load scene Scene
//   - "save_load": set the save/load flag to On
//   - "log": emit Text as an error log line
type SimStep struct {
	At     string `json:"at"`
	Action string `json:"action"`
	Text   string `json:"text,omitempty"`
	Caller string `json:"caller,omitempty"`
	Scene  string `json:"scene,omitempty"`
	On     bool   `json:"on,omitempty"`
}

// DebugConfig enables the operator HTTP endpoints (/healthz, /status, pprof).
// Empty Addr keeps the server off. A non-loopback Addr needs Token or
// AllowInsecure.
type DebugConfig struct {
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}
