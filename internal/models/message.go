package models

import "time"

// Role identifies which side of the conversation produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Sender describes who produced a message.
type Sender struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

var (
	// UserSender is attached to every message typed by the local user.
	UserSender = Sender{ID: "user", Name: "You"}
	// AssistantSender is the synthetic identity of the assistant.
	AssistantSender = Sender{ID: "ai", Name: "AI Assistant", Avatar: "🤖"}
)

// Message is a single turn in a conversation. It is immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Sender    Sender    `json:"user"`
}

// IsUser reports whether the message was authored by the user.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}
