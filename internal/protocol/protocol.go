package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello    = "HELLO"
	TypeWelcome  = "WELCOME"
	TypeDecide   = "DECIDE"
	TypeDecision = "DECISION"
	TypeError    = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// SupportedVersions lists versions this build speaks, newest first.
var SupportedVersions = []string{Version}

func IsSupportedVersion(v string) bool {
	for _, s := range SupportedVersions {
		if s == v {
			return true
		}
	}
	return false
}

// Negotiate picks the newest version both sides support. An empty result
// means there is no common version.
func Negotiate(requested string, offered []string) string {
	if IsSupportedVersion(requested) {
		return requested
	}
	for _, s := range SupportedVersions {
		for _, o := range offered {
			if o == s {
				return s
			}
		}
	}
	return ""
}
