package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Wait models

// MatchData is a matched server line with its capture groups.
type MatchData struct {
	Line   string            `json:"line" example:"There are 2 of a max of 20 players online: Steve, Alex" doc:"Full matched line"`
	Text   string            `json:"text" example:"There are 2 of a max of 20 players online: Steve, Alex" doc:"Text matched by the whole pattern"`
	Groups []string          `json:"groups" doc:"Positional capture groups, group 1 first; empty string for groups that did not participate"`
	Named  map[string]string `json:"named,omitempty" doc:"Named capture groups that participated"`
}

type WaitResultData struct {
	Matched bool       `json:"matched" example:"true" doc:"Whether a matching line arrived before the deadline"`
	Outcome string     `json:"outcome" example:"matched" enum:"matched,timeout,cancelled" doc:"How the wait ended"`
	Match   *MatchData `json:"match,omitempty" doc:"Match details when matched"`
}

type WaitResponse struct {
	Body WaitResultData
}

type ExecuteRequestData struct {
	Command string  `json:"command" minLength:"1" example:"list" doc:"Console command sent to the server before waiting"`
	Pattern string  `json:"pattern" minLength:"1" example:"^There are (\\d+) of a max of (\\d+) players online:(.*)$" doc:"Regular expression a server line must match"`
	Timeout float64 `json:"timeout,omitempty" minimum:"0" example:"5" doc:"Seconds to wait; 0 uses the configured default"`
}

type ExecuteRequest struct {
	Body ExecuteRequestData
}

type ListenRequestData struct {
	Pattern string  `json:"pattern" minLength:"1" example:"^(?<player>\\w+) joined the game$" doc:"Regular expression a server line must match"`
	Timeout float64 `json:"timeout,omitempty" minimum:"0" example:"30" doc:"Seconds to wait; 0 uses the configured default"`
}

type ListenRequest struct {
	Body ListenRequestData
}

// Carpet models
type CarpetRequest struct {
	Reprobe bool `query:"reprobe" doc:"Discard the cached answer and probe again"`
}

type CarpetData struct {
	Present bool `json:"present" example:"true" doc:"Whether the carpet mod answered"`
	Cached  bool `json:"cached" example:"false" doc:"Whether the answer came from the capability cache"`
}

type CarpetResponse struct {
	Body CarpetData
}

// Region models

// BoxData is an inclusive axis-aligned box in block coordinates.
type BoxData struct {
	X1 float64 `json:"x1" example:"-100"`
	Y1 float64 `json:"y1" example:"0"`
	Z1 float64 `json:"z1" example:"-100"`
	X2 float64 `json:"x2" example:"100"`
	Y2 float64 `json:"y2" example:"320"`
	Z2 float64 `json:"z2" example:"100"`
}

type RegionRequestData struct {
	Preset    string               `json:"preset,omitempty" example:"spawn" doc:"Named query from the presets file; other fields override it"`
	Attribute string               `json:"attribute,omitempty" example:"health" doc:"Player attribute to read"`
	Regions   map[string][]BoxData `json:"regions,omitempty" doc:"Boxes keyed by dimension id, e.g. minecraft:overworld"`
	Timeout   float64              `json:"timeout,omitempty" minimum:"0" example:"10" doc:"Overall seconds budget; 0 uses the preset or configured default"`
}

type RegionRequest struct {
	Body RegionRequestData
}

type RegionData struct {
	Complete bool              `json:"complete" example:"true" doc:"False when any sub-query failed or carpet is absent"`
	Players  map[string]string `json:"players" doc:"Attribute value per player inside the regions"`
	Count    int               `json:"count" example:"2" doc:"Number of players reported"`
}

type RegionResponse struct {
	Body RegionData
}

type PresetListData struct {
	Presets []string `json:"presets" doc:"Names of the configured region presets"`
}

type PresetListResponse struct {
	Body PresetListData
}

// Lifecycle models
type ReloadRequest struct {
	Body struct {
		Reason string `json:"reason,omitempty" example:"plugin reload" doc:"Recorded with the epoch transition"`
	} `required:"false"`
}

type TransitionData struct {
	Epoch     uint64 `json:"epoch" example:"4" doc:"Epoch active after the transition"`
	Running   bool   `json:"running" example:"true" doc:"Whether the bridge accepts new waits"`
	Cancelled int    `json:"cancelled" example:"1" doc:"Pending waits resolved as cancelled"`
}

type ReloadResponse struct {
	Body TransitionData
}

// ServerData mirrors process.Info.
type ServerData struct {
	ID           string `json:"id" example:"minecraft"`
	State        string `json:"state" example:"running" enum:"idle,starting,running,stopping,error"`
	PID          int    `json:"pid,omitempty" example:"4242"`
	StartedAt    string `json:"started_at,omitempty" example:"2025-01-27T10:30:00Z"`
	RestartCount int    `json:"restart_count" example:"0"`
	LastError    string `json:"last_error,omitempty"`
}

type CarpetStatusData struct {
	Known   bool `json:"known" example:"true" doc:"Whether the capability cache holds an answer"`
	Present bool `json:"present" example:"true" doc:"Cached answer; meaningful only when known"`
}

type StatusData struct {
	Epoch   uint64           `json:"epoch" example:"3" doc:"Current lifecycle epoch"`
	Running bool             `json:"running" example:"true" doc:"Whether the bridge accepts new waits"`
	Pending int              `json:"pending" example:"0" doc:"Waiters currently registered"`
	Server  *ServerData      `json:"server,omitempty" doc:"Managed server process"`
	Carpet  CarpetStatusData `json:"carpet"`
}

type StatusResponse struct {
	Body StatusData
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" minimum:"0" maximum:"10000" default:"100" doc:"Maximum entries, newest last"`
	Module string `query:"module" example:"minecraft" doc:"Only entries from this logger module"`
}

type LogEntryData struct {
	Timestamp  string            `json:"timestamp" example:"2025-01-27T10:30:00.123Z"`
	Level      string            `json:"level" example:"info"`
	Module     string            `json:"module,omitempty" example:"query"`
	Message    string            `json:"message"`
	Attributes map[string]any    `json:"attributes,omitempty"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries"`
	Count   int            `json:"count"`
}

type LogsResponse struct {
	Body LogsData
}
