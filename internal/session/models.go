package session

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRoles is the closed set of message roles.
var ValidRoles = map[Role]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleSystem:    true,
}

// Origin identifies which trigger source produced an async result.
type Origin string

const (
	OriginScheduler Origin = "scheduler"
	OriginWebhook   Origin = "webhook"
)

// Session is one conversation. Preview carries a short derivation of the
// last message for list views.
type Session struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	Preview       string     `json:"preview" db:"preview"`
}

// ChatMessage is one persisted message. Ordering within a session is total
// on (timestamp, id).
type ChatMessage struct {
	ID        string         `json:"id" db:"id"`
	SessionID string         `json:"session_id" db:"session_id"`
	Role      Role           `json:"role" db:"role"`
	AgentName string         `json:"agent_name,omitempty" db:"agent_name"`
	Content   string         `json:"content" db:"content"`
	Timestamp time.Time      `json:"timestamp" db:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PendingResult tracks an asynchronously produced agent response until at
// least one WebSocket client has consumed it.
type PendingResult struct {
	ID        string    `json:"id" db:"id"`
	Origin    Origin    `json:"origin" db:"origin"`
	SessionID string    `json:"session_id" db:"session_id"`
	Prompt    string    `json:"prompt" db:"prompt"`
	Response  *string   `json:"response,omitempty" db:"response"`
	Delivered bool      `json:"delivered" db:"delivered"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreateSessionRequest is the request body for creating a session.
type CreateSessionRequest struct {
	Name string `json:"name"`
}

// RenameSessionRequest is the request body for renaming a session.
type RenameSessionRequest struct {
	Name string `json:"name"`
}
