// Package patch installs the visibility override on the notification
// subsystem: while installed, messages tracked by the delivery queue report
// host.FullyVisible from the subsystem's per-frame fade computation instead
// of the time-decayed value. Every other message is left alone.
package patch

import (
	"errors"
	"fmt"
	"sync"

	"menunotice/internal/host"
	logx "menunotice/pkg/logx"
)

var (
	// ErrRewriteTargetNotFound means the subsystem does not expose the
	// rewrite point. It is a configuration error and must not be retried.
	ErrRewriteTargetNotFound = errors.New("rewrite target not found")
	// ErrUnavailable means the rewrite capability is missing or not ready.
	ErrUnavailable = errors.New("patch capability unavailable")
)

// Tracker reports whether a handle belongs to the current session.
type Tracker interface {
	Tracks(h host.Handle) bool
}

// Patch is safe for concurrent use; Install and Uninstall are idempotent.
type Patch struct {
	mu        sync.Mutex
	patcher   host.Patcher
	tracker   Tracker
	log       logx.Logger
	installed bool
}

func New(p host.Patcher, t Tracker, log logx.Logger) *Patch {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Patch{patcher: p, tracker: t, log: log}
}

// Available reports whether Install could be attempted right now.
func (p *Patch) Available() bool {
	return p.patcher != nil && p.patcher.Available()
}

// Install rewrites the visibility point. Calling it while installed does nothing.
func (p *Patch) Install() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.installed {
		return nil
	}
	if !p.Available() {
		return ErrUnavailable
	}
	if err := p.patcher.Rewrite(host.PointVisibility, p.substitute); err != nil {
		// Leave nothing half-applied behind.
		p.patcher.Revert(host.PointVisibility)
		if errors.Is(err, host.ErrUnknownPoint) {
			return fmt.Errorf("%w: %w", ErrRewriteTargetNotFound, err)
		}
		return fmt.Errorf("rewrite %s: %w", host.PointVisibility, err)
	}
	p.installed = true
	p.log.Debug("visibility patch installed", logx.String("point", host.PointVisibility))
	return nil
}

// Uninstall reverts the rewrite. It is a no-op when not installed.
func (p *Patch) Uninstall() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.installed {
		return
	}
	p.patcher.Revert(host.PointVisibility)
	p.installed = false
	p.log.Debug("visibility patch removed", logx.String("point", host.PointVisibility))
}

func (p *Patch) IsInstalled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.installed
}

func (p *Patch) substitute(h host.Handle, computed float64) float64 {
	if h != nil && p.tracker != nil && p.tracker.Tracks(h) {
		return host.FullyVisible
	}
	return computed
}
