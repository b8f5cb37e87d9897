package app

import "github.com/soocke/pixel-aim-go/config"

// LoopState is the coordinator state re-evaluated on every tick.
type LoopState int

const (
	// StateIdle means no feature needs capture or inference.
	StateIdle LoopState = iota
	// StateArmed captures, detects and updates the overlay but emits no aim.
	StateArmed
	// StateActive runs the full pipeline through pointer emission.
	StateActive
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// StateListener is called on each state change.
type StateListener func(prev, next LoopState)

// Evaluate derives the loop state from the configuration and whether an aim
// binding is held.
func Evaluate(c *config.Config, aimHeld bool) LoopState {
	if !c.AimAssist && !c.ShowDetected && !c.AutoTrigger {
		return StateIdle
	}
	if c.ConstantTracking || aimHeld {
		return StateActive
	}
	return StateArmed
}
