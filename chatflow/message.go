package chatflow

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

// QuickAction is a suggested reply offered alongside a bot message.
type QuickAction struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Message is one entry of the ordered conversation history. The history is
// append-only; messages are never rewritten or removed.
type Message struct {
	Role      Role          `json:"role"`
	Text      string        `json:"text"`
	Actions   []QuickAction `json:"actions,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
