package transcript

import (
	"context"
	"time"
)

// Line is one shown chat line: the user's utterance or one reply segment.
type Line struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	SessionID string    `json:"session_id"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves the conversation transcript.
type Store interface {
	SaveLine(ctx context.Context, line Line) error
	RecentLines(ctx context.Context, userID string, limit int) ([]Line, error)
	Close() error
}
