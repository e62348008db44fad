package domain

import "encoding/json"

const (
	IdentityEventSessionRevoked = "session_revoked"
	IdentityEventProfileUpdated = "profile_updated"
)

type IdentityEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
