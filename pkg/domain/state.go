package domain

// EngineState is the lifecycle of an engine. Transitions only move forward:
// Uninitialized -> Initializing -> Frozen. Frozen is terminal.
type EngineState int

const (
	StateUninitialized EngineState = iota
	StateInitializing
	StateFrozen
	// StateFailed records an initialization that aborted. No operation accepts it.
	StateFailed
)

func (s EngineState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateFrozen:
		return "frozen"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
