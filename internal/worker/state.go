package worker

// State represents the lifecycle state of a worker.
type State int

const (
	// StateInitializing indicates the worker is starting up.
	StateInitializing State = iota

	// StateReady indicates the worker is up and has never run a task.
	StateReady

	// StateRunning indicates the worker has active tasks below its limit.
	StateRunning

	// StateBusy indicates the worker is at its concurrent task limit.
	StateBusy

	// StateIdle indicates the worker has run tasks before and has none now.
	StateIdle

	// StatePaused indicates the worker holds new work; in-flight tasks
	// continue.
	StatePaused

	// StateStopping indicates the worker is shutting down.
	StateStopping

	// StateStopped indicates the worker has shut down.
	StateStopped

	// StateError indicates the worker failed and awaits a restart.
	StateError

	// StateCrashed indicates the worker exhausted its restart budget.
	// Crashed is terminal; the manager removes crashed workers.
	StateCrashed
)

// String returns a human-readable string for the state.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBusy:
		return "busy"
	case StateIdle:
		return "idle"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Eligible reports whether a worker in this state can accept new task
// submissions. Busy workers are eligible; submissions queue behind the
// active tasks.
func (s State) Eligible() bool {
	switch s {
	case StateReady, StateRunning, StateBusy, StateIdle:
		return true
	default:
		return false
	}
}

// Terminal reports whether the state ends the worker's life.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateCrashed
}

// transitions lists the legal next states for each state.
var transitions = map[State][]State{
	StateInitializing: {StateReady, StateError},
	StateReady:        {StateRunning, StateBusy, StateIdle, StatePaused, StateStopping, StateError},
	StateRunning:      {StateBusy, StateIdle, StateReady, StatePaused, StateStopping, StateError},
	StateBusy:         {StateRunning, StateIdle, StatePaused, StateStopping, StateError},
	StateIdle:         {StateRunning, StateBusy, StatePaused, StateStopping, StateError},
	StatePaused:       {StateReady, StateRunning, StateBusy, StateIdle, StateStopping, StateError},
	StateStopping:     {StateStopped, StateError},
	StateStopped:      nil,
	StateError:        {StateInitializing, StateCrashed, StateStopped},
	StateCrashed:      nil,
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
