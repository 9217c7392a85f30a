// Package sequence runs a fixed list of steps cooperatively: the owner calls
// Advance on every tick of its update loop and the sequence moves forward as
// far as it can without blocking. Waits are expressed against the tick time,
// so a host that drives a deterministic clock gets deterministic sequencing.
package sequence

import (
	"fmt"
	"time"
)

type stepKind int

const (
	kindWait stepKind = iota
	kindWaitWhile
	kindDo
)

// Step is one element of a Sequence. Build steps with Wait, WaitWhile and Do.
type Step struct {
	name string
	kind stepKind
	d    time.Duration
	pred func() bool
	fn   func(now time.Time) error
}

// Name returns the step label used in logs and snapshots.
func (s Step) Name() string { return s.name }

// Wait suspends for d measured from the tick at which the step becomes current.
func Wait(name string, d time.Duration) Step {
	return Step{name: name, kind: kindWait, d: d}
}

// WaitWhile suspends for as long as pred reports true. If pred is already
// false the sequence continues within the same tick.
func WaitWhile(name string, pred func() bool) Step {
	return Step{name: name, kind: kindWaitWhile, pred: pred}
}

// Do runs fn once. A non-nil error aborts the sequence.
func Do(name string, fn func(now time.Time) error) Step {
	return Step{name: name, kind: kindDo, fn: fn}
}

// Sequence is not safe for concurrent use; it belongs to one update loop.
type Sequence struct {
	steps []Step
	idx   int

	// waitFrom is when the current Wait step became current (zero if not yet).
	waitFrom time.Time
	err      error
}

func New(steps ...Step) *Sequence {
	return &Sequence{steps: steps}
}

// Advance runs as many steps as are ready at now. It returns true once every
// step has completed. A failing Do step stops the sequence and its error is
// returned (wrapped with the step name) on that and all later calls.
func (s *Sequence) Advance(now time.Time) (bool, error) {
	if s.err != nil {
		return true, s.err
	}
	for s.idx < len(s.steps) {
		st := s.steps[s.idx]
		switch st.kind {
		case kindWait:
			if s.waitFrom.IsZero() {
				s.waitFrom = now
			}
			if now.Sub(s.waitFrom) < st.d {
				return false, nil
			}
			s.waitFrom = time.Time{}
		case kindWaitWhile:
			if st.pred != nil && st.pred() {
				return false, nil
			}
		case kindDo:
			if st.fn != nil {
				if err := st.fn(now); err != nil {
					s.err = fmt.Errorf("%s: %w", st.name, err)
					s.idx = len(s.steps)
					return true, s.err
				}
			}
		}
		s.idx++
	}
	return true, nil
}

// Done reports whether the sequence has run to completion or failed.
func (s *Sequence) Done() bool { return s.idx >= len(s.steps) }

// Err returns the error that aborted the sequence, if any.
func (s *Sequence) Err() error { return s.err }

// Current returns the name of the step the sequence is waiting on, or "" when done.
func (s *Sequence) Current() string {
	if s.Done() {
		return ""
	}
	return s.steps[s.idx].name
}
