package protocol

import "encoding/json"

// HELLO (agent -> decider)
type HelloMsg struct {
	Type              string     `json:"type"`
	ProtocolVersion   string     `json:"protocol_version"`
	SupportedVersions []string   `json:"supported_versions,omitempty"`
	AgentName         string     `json:"agent_name"`
	Auth              *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (decider -> agent)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SelectedVersion string `json:"selected_version,omitempty"`
	SessionID       string `json:"session_id"`
	Provider        string `json:"provider"`
	Model           string `json:"model,omitempty"`
}

type WorldInfo struct {
	Dimension string     `json:"dimension"`
	Biome     string     `json:"biome"`
	Pos       [3]float64 `json:"pos"`
	Yaw       float32    `json:"yaw"`
	Pitch     float32    `json:"pitch"`
}

// DECIDE (agent -> decider): one observation, one expected DECISION.
type DecideMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	RequestID       string    `json:"request_id"`
	Tick            int64     `json:"tick"`
	World           WorldInfo `json:"world"`
	ImagePNG        string    `json:"image_png,omitempty"` // base64
	Conversation    string    `json:"conversation,omitempty"`
}

// DECISION (decider -> agent). Actions is the decision document as produced
// by the model; the agent parses it tolerantly. Both Actions and Error may be
// absent, which means "no decision".
type DecisionMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	RequestID       string          `json:"request_id"`
	Actions         json.RawMessage `json:"actions,omitempty"`
	LatencyMS       int64           `json:"latency_ms,omitempty"`
	Error           *ErrorInfo      `json:"error,omitempty"`
}

// ERROR (either direction) for failures not tied to a request.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
