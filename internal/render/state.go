package render

// State is a step in the task lifecycle.
type State int

const (
	StateIdle State = iota
	StateInitialized
	StateExecutableResolved
	StateArgumentsBuilt
	StateStaged
	StateRunning
	StateCleanedUp
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialized:
		return "initialized"
	case StateExecutableResolved:
		return "executable_resolved"
	case StateArgumentsBuilt:
		return "arguments_built"
	case StateStaged:
		return "staged"
	case StateRunning:
		return "running"
	case StateCleanedUp:
		return "cleaned_up"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further step can change the outcome.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}
