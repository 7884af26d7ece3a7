package events

// Event type constants for kelindar/event.
const (
	TypeEpochChanged uint32 = iota + 1
	TypeQueryResolved
	TypeServerStateChanged
	TypeCarpetStatus
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// EpochChangedEvent is published on every lifecycle transition of the query bridge.
type EpochChangedEvent struct {
	Epoch     uint64 `json:"epoch" example:"3" doc:"Epoch active after the transition"`
	Running   bool   `json:"running" example:"true" doc:"Whether the bridge accepts new waits"`
	Reason    string `json:"reason" example:"server started" doc:"What triggered the transition"`
	Cancelled int    `json:"cancelled" example:"2" doc:"Pending waits resolved as cancelled"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for EpochChangedEvent.
func (e EpochChangedEvent) Type() uint32 { return TypeEpochChanged }

// QueryResolvedEvent is published once per resolved wait.
type QueryResolvedEvent struct {
	QueryID    string  `json:"query_id" example:"q_1a2b3c4d" doc:"Query identifier"`
	Command    string  `json:"command,omitempty" example:"list" doc:"Command sent before waiting, empty for listen"`
	Pattern    string  `json:"pattern" doc:"Pattern the query waited for"`
	Outcome    string  `json:"outcome" example:"matched" doc:"matched, timeout or cancelled"`
	Epoch      uint64  `json:"epoch" example:"3" doc:"Epoch the query belonged to"`
	WaitedSecs float64 `json:"waited_seconds" example:"0.42" doc:"Time between registration and resolution"`
	Timestamp  string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Resolution timestamp"`
}

// Type returns the event type identifier for QueryResolvedEvent.
func (e QueryResolvedEvent) Type() uint32 { return TypeQueryResolved }

// ServerStateChangedEvent reports managed server process state transitions.
type ServerStateChangedEvent struct {
	OldState  string `json:"old_state" example:"starting"`
	NewState  string `json:"new_state" example:"running"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z"`
}

// Type returns the event type identifier for ServerStateChangedEvent.
func (e ServerStateChangedEvent) Type() uint32 { return TypeServerStateChanged }

// CarpetStatusEvent is published whenever the carpet capability becomes known.
type CarpetStatusEvent struct {
	Present   bool   `json:"present" example:"true" doc:"Whether the carpet mod answered"`
	Source    string `json:"source" example:"probe" doc:"probe or startup"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z"`
}

// Type returns the event type identifier for CarpetStatusEvent.
func (e CarpetStatusEvent) Type() uint32 { return TypeCarpetStatus }
