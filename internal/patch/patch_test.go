package patch

import (
	"errors"
	"testing"
	"time"

	"menunotice/internal/host"
	"menunotice/internal/host/sim"
	logx "menunotice/pkg/logx"
)

type setTracker map[host.Handle]bool

func (s setTracker) Tracks(h host.Handle) bool { return s[h] }

func newSim(cfg sim.Config) *sim.Host {
	h := sim.New(cfg, nil, time.Unix(0, 0))
	h.Boot()
	return h
}

func TestInstallIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newSim(sim.Config{})
	p := New(h, setTracker{}, logx.Nop())

	for i := 0; i < 3; i++ {
		if err := p.Install(); err != nil {
			t.Fatalf("Install #%d: %v", i+1, err)
		}
	}
	if got := h.Rewrites(host.PointVisibility); got != 1 {
		t.Fatalf("rewrites = %d, want 1", got)
	}
	if !p.IsInstalled() || !h.Patched(host.PointVisibility) {
		t.Fatal("expected patch installed")
	}

	p.Uninstall()
	p.Uninstall()
	if p.IsInstalled() || h.Patched(host.PointVisibility) {
		t.Fatal("expected patch removed")
	}

	if err := p.Install(); err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	if got := h.Rewrites(host.PointVisibility); got != 2 {
		t.Fatalf("rewrites after reinstall = %d, want 2", got)
	}
}

func TestInstallMissingPointIsFatal(t *testing.T) {
	t.Parallel()
	h := newSim(sim.Config{Points: []string{"something.else"}})
	p := New(h, setTracker{}, logx.Nop())

	err := p.Install()
	if !errors.Is(err, ErrRewriteTargetNotFound) {
		t.Fatalf("Install err = %v, want ErrRewriteTargetNotFound", err)
	}
	if !errors.Is(err, host.ErrUnknownPoint) {
		t.Fatalf("Install err = %v, want it to wrap host.ErrUnknownPoint", err)
	}
	if p.IsInstalled() {
		t.Fatal("patch reported installed after failure")
	}
}

func TestInstallUnavailable(t *testing.T) {
	t.Parallel()
	h := newSim(sim.Config{DisablePatching: true})
	p := New(h, setTracker{}, logx.Nop())
	if p.Available() {
		t.Fatal("Available = true with patching disabled")
	}
	if err := p.Install(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Install err = %v, want ErrUnavailable", err)
	}

	bare := New(nil, nil, logx.Logger{})
	if err := bare.Install(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Install with nil patcher err = %v, want ErrUnavailable", err)
	}
}

func TestSubstitutionOnlyAffectsTrackedHandles(t *testing.T) {
	t.Parallel()
	h := newSim(sim.Config{Lifetime: time.Second, Fade: time.Second})
	tracked := h.AddDebugMessage("tracked")
	h.AddDebugMessage("other")
	p := New(h, setTracker{tracked: true}, logx.Nop())
	if err := p.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}

	h.Advance(500 * time.Millisecond)
	msgs := alphas(h)
	if msgs["tracked"] != host.FullyVisible {
		t.Fatalf("tracked alpha = %v, want %v", msgs["tracked"], host.FullyVisible)
	}
	if a := msgs["other"]; a <= 0 || a >= host.FullyVisible {
		t.Fatalf("other alpha = %v, want a partial fade", a)
	}

	p.Uninstall()
	h.Advance(time.Second)
	if _, ok := alphas(h)["tracked"]; ok {
		t.Fatal("tracked message should fade out and be dropped once the patch is removed")
	}
}

func alphas(h *sim.Host) map[string]float64 {
	out := map[string]float64{}
	for _, m := range h.Messages() {
		out[m.Text()] = m.Alpha()
	}
	return out
}
