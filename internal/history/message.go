package history

import "time"

// Role tags who authored a message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Message represents a single conversational turn. Values are never mutated
// after creation; History hands out copies.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser returns a user-authored message stamped with the current time.
func NewUser(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now()}
}

// NewAI returns a model-authored message stamped with the current time.
func NewAI(content string) Message {
	return Message{Role: RoleAI, Content: content, CreatedAt: time.Now()}
}
