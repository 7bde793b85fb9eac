package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MessagePair is one user turn and the generated reply. Pairs are
// immutable once stored.
type MessagePair struct {
	ID          string         `json:"message_id"`
	UserMessage string         `json:"user_message"`
	AIResponse  string         `json:"ai_response"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata"`
}

// MessagePairs maps a JSONB array column.
type MessagePairs []MessagePair

func (m MessagePairs) Value() (driver.Value, error) {
	if m == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m)
}

func (m *MessagePairs) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = MessagePairs{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("model: unsupported type for MessagePairs")
	}
	pairs := MessagePairs{}
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	*m = pairs
	return nil
}

// Tail returns the last n pairs in chronological order.
func (m MessagePairs) Tail(n int) MessagePairs {
	if n <= 0 {
		return MessagePairs{}
	}
	if n >= len(m) {
		return m
	}
	return m[len(m)-n:]
}

// ToSSEEventData returns JSON data for SSE message events
func (p *MessagePair) ToSSEEventData(sessionID, interactionID string) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"session_id":     sessionID,
		"interaction_id": interactionID,
		"message_id":     p.ID,
		"user_message":   p.UserMessage,
		"ai_response":    p.AIResponse,
		"timestamp":      p.Timestamp,
	})
	return data
}
