package chat

import "fmt"

// Role tags the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message in a session's conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// String renders the turn as "role: content", the line form used for
// word counting and summarization.
func (t Turn) String() string {
	return fmt.Sprintf("%s: %s", t.Role, t.Content)
}
