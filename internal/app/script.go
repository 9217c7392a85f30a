package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"menunotice/internal/config"
)

// Step is one scripted host action. At is measured from the simulated start.
type Step struct {
	At     time.Duration
	Action string
	Text   string
	Caller string
	Scene  string
	On     bool
}

// Script hands out steps as the simulated clock passes them.
// It is only used from the host loop.
type Script struct {
	steps []Step
	next  int
}

func parseScript(raw []config.SimStep) (*Script, error) {
	steps := make([]Step, 0, len(raw))
	for i, r := range raw {
		at, err := config.ParseDurationField(fmt.Sprintf("sim.script[%d].at", i), r.At)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{
			At:     at,
			Action: strings.ToLower(strings.TrimSpace(r.Action)),
			Text:   r.Text,
			Caller: r.Caller,
			Scene:  strings.TrimSpace(r.Scene),
			On:     r.On,
		})
	}
	// Steps at the same instant keep their file order.
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })
	return &Script{steps: steps}, nil
}

// Due returns the steps with At <= elapsed that were not returned before.
func (s *Script) Due(elapsed time.Duration) []Step {
	start := s.next
	for s.next < len(s.steps) && s.steps[s.next].At <= elapsed {
		s.next++
	}
	return s.steps[start:s.next]
}

// Done reports whether every step was handed out.
func (s *Script) Done() bool { return s.next >= len(s.steps) }

// End is the offset of the last step.
func (s *Script) End() time.Duration {
	if len(s.steps) == 0 {
		return 0
	}
	return s.steps[len(s.steps)-1].At
}

func (s *Script) Len() int { return len(s.steps) }
