package storage

import (
	"context"
	"time"
)

// Message is one persisted chat message of a thread.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Reasoning string    `json:"reasoning,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Sequence  int64     `json:"sequence"`
}

// MessageInput is the payload for MessageStore.AddMessage.
type MessageInput struct {
	ThreadID  string
	Role      string
	Content   string
	Reasoning string
}

// MessageStore keeps the message log of each thread so a later run can
// continue it.
type MessageStore interface {
	AddMessage(ctx context.Context, in MessageInput) (Message, error)
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}

func nowMillis(now func() time.Time) time.Time {
	return now().Truncate(time.Millisecond)
}
