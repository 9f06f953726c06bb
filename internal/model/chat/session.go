package chat

import "time"

// Session describes the dataset a conversation is scoped to.
type Session struct {
	ID        string    `json:"session_id"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}
