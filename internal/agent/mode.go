package agent

import (
	"fmt"
	"strings"
)

type Mode uint8

const (
	Disabled Mode = iota
	Observe
	Control
)

func (m Mode) String() string {
	switch m {
	case Observe:
		return "observe"
	case Control:
		return "control"
	default:
		return "disabled"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "":
		return Disabled, nil
	case "observe":
		return Observe, nil
	case "control", "on":
		return Control, nil
	}
	return Disabled, fmt.Errorf("unknown mode %q", s)
}

// Cleanup lists the side effects of a mode change.
type Cleanup struct {
	ReleaseInputs  bool
	CancelPlan     bool
	ClearTarget    bool
	ForceDecision  bool
	DiscardPending bool
}

// Transition returns what must happen when switching from prev to next.
// Leaving Control always releases input; passive modes never keep a plan or
// an aim lock.
func Transition(prev, next Mode) Cleanup {
	if prev == next {
		return Cleanup{}
	}
	passive := next != Control
	return Cleanup{
		ReleaseInputs:  prev == Control,
		CancelPlan:     passive,
		ClearTarget:    passive,
		ForceDecision:  next == Observe,
		DiscardPending: next == Disabled,
	}
}
