package model

import (
	"time"

	"github.com/lib/pq"
)

// Session groups the interactions a user opens. The same struct is the
// cached snapshot stored under session:{id}.
type Session struct {
	ID             string         `db:"session_id" json:"session_id"`
	UserID         string         `db:"user_id" json:"user_id"`
	InteractionIDs pq.StringArray `db:"interaction_ids" json:"interaction_ids"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	LastActiveAt   time.Time      `db:"last_active_at" json:"last_active_at"`
}

type CreateSessionParams struct {
	ID     string
	UserID string
}
