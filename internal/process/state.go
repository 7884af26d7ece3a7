package process

import "time"

// State represents the current state of the managed server process.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not running
	StateStarting State = "starting" // Being started
	StateRunning  State = "running"  // Active, accepting console commands
	StateStopping State = "stopping" // Being stopped
	StateError    State = "error"    // Failed to start/crashed
)

// Info contains information about the managed process.
type Info struct {
	ID           string
	State        State
	PID          int
	StartedAt    time.Time
	RestartCount int
	LastError    error
}

// StateCallback is invoked on every state change. Callbacks run synchronously;
// the StateRunning callback completes before the first output line is delivered.
type StateCallback func(id string, oldState, newState State, err error)
