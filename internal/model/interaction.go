package model

import "time"

// Interaction is one conversation thread inside a session. The same struct
// is the cached snapshot stored under interaction:{id}.
type Interaction struct {
	ID            string       `db:"interaction_id" json:"interaction_id"`
	SessionID     string       `db:"session_id" json:"session_id"`
	UserID        string       `db:"user_id" json:"user_id"`
	Messages      MessagePairs `db:"messages" json:"messages"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
	LastMessageAt time.Time    `db:"last_message_at" json:"last_message_at"`
}

type CreateInteractionParams struct {
	ID        string
	SessionID string
	UserID    string
}
