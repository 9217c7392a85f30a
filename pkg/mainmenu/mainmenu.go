package mainmenu

import (
	"errors"
	"strings"
	"sync"
	"time"

	"menunotice/internal/delivery"
	logx "menunotice/pkg/logx"
)

// Enqueuer accepts a message for deferred delivery.
type Enqueuer interface {
	Enqueue(m delivery.Message) error
}

// Defaults are applied before options. Zero fields use the package defaults.
type Defaults struct {
	Caller       string        `json:"caller" yaml:"caller" toml:"caller"`
	Size         int           `json:"size" yaml:"size" toml:"size"`
	Color        string        `json:"color" yaml:"color" toml:"color"`
	ExtraVisible time.Duration `json:"-" yaml:"-" toml:"-"`
}

func (d Defaults) normalize() Defaults {
	d.Caller = strings.TrimSpace(d.Caller)
	if d.Size <= 0 {
		d.Size = delivery.DefaultSize
	}
	if strings.TrimSpace(d.Color) == "" {
		d.Color = delivery.DefaultColor
	}
	if d.ExtraVisible <= 0 {
		d.ExtraVisible = delivery.DefaultExtraVisible
	}
	return d
}

// Option tweaks a single message.
type Option func(m *delivery.Message)

// WithCaller attributes the message. Empty means QModManager.
func WithCaller(id string) Option {
	return func(m *delivery.Message) { m.CallerID = strings.TrimSpace(id) }
}

func WithSize(n int) Option {
	return func(m *delivery.Message) {
		if n > 0 {
			m.Size = n
		}
	}
}

func WithColor(c string) Option {
	return func(m *delivery.Message) {
		if c = strings.TrimSpace(c); c != "" {
			m.Color = c
		}
	}
}

// WithoutAutoformat sends the text exactly as given.
func WithoutAutoformat() Option {
	return func(m *delivery.Message) { m.Autoformat = false }
}

// WithExtraVisible sets how long the message stays on screen past its normal lifetime.
func WithExtraVisible(d time.Duration) Option {
	return func(m *delivery.Message) {
		if d >= 0 {
			m.ExtraVisible = d
		}
	}
}

// Messenger is safe for concurrent use.
type Messenger struct {
	q   Enqueuer
	log logx.Logger

	mu  sync.RWMutex
	def Defaults
}

func New(q Enqueuer, def Defaults, log logx.Logger) *Messenger {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Messenger{q: q, def: def.normalize(), log: log.With(logx.String("comp", "mainmenu"))}
}

// SetDefaults replaces the defaults used by later messages.
func (m *Messenger) SetDefaults(def Defaults) {
	m.mu.Lock()
	m.def = def.normalize()
	m.mu.Unlock()
}

// Build returns the message AddMainMenuMessage would enqueue.
func (m *Messenger) Build(text string, opts ...Option) delivery.Message {
	m.mu.RLock()
	def := m.def
	m.mu.RUnlock()
	msg := delivery.Message{
		Text:         text,
		CallerID:     def.Caller,
		Size:         def.Size,
		Color:        def.Color,
		Autoformat:   true,
		ExtraVisible: def.ExtraVisible,
	}
	for _, o := range opts {
		if o != nil {
			o(&msg)
		}
	}
	return msg
}

// AddMainMenuMessage queues text for the main menu. Fire and forget.
func (m *Messenger) AddMainMenuMessage(text string, opts ...Option) {
	if m == nil || m.q == nil {
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := m.q.Enqueue(m.Build(text, opts...)); err != nil {
		if errors.Is(err, delivery.ErrPreconditionNotMet) {
			// Already logged by the queue.
			return
		}
		m.log.Error("main menu message failed", logx.Err(err))
	}
}

// Post implements logx.Poster so log lines can be mirrored into the menu.
func (m *Messenger) Post(text string) {
	m.AddMainMenuMessage(text, WithColor("orange"))
}
