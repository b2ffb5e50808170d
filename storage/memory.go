package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/martinemde/kodit/diff"
)

// Memory keeps diffs and messages in process memory. It backs tests and
// runs started with an empty database path.
type Memory struct {
	mu       sync.Mutex
	diffs    map[string][]diff.Record
	messages map[string][]Message
	now      func() time.Time
}

var (
	_ diff.Storage = (*Memory)(nil)
	_ MessageStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		diffs:    make(map[string][]diff.Record),
		messages: make(map[string][]Message),
		now:      time.Now,
	}
}

func (m *Memory) Save(_ context.Context, in diff.SaveInput) (diff.Record, error) {
	rec := diff.Record{
		ID:        uuid.NewString(),
		ThreadID:  in.ThreadID,
		MessageID: in.MessageID,
		Summary:   in.Summary,
		CreatedAt: nowMillis(m.now),
		Files:     make([]diff.SnapshotChange, len(in.Files)),
	}
	for i, f := range in.Files {
		f.ChangeType = diff.ClassifyChange(f.OldContent, f.NewContent)
		rec.Files[i] = f
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.diffs[in.ThreadID] = append(m.diffs[in.ThreadID], rec)
	return rec, nil
}

func (m *Memory) List(_ context.Context, threadID string) ([]diff.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.diffs[threadID]
	if len(stored) == 0 {
		return nil, nil
	}
	out := make([]diff.Record, len(stored))
	for i, rec := range stored {
		rec.Files = append([]diff.SnapshotChange(nil), rec.Files...)
		out[i] = rec
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Clear(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.diffs, threadID)
	return nil
}

func (m *Memory) AddMessage(_ context.Context, in MessageInput) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	thread := m.messages[in.ThreadID]
	var last int64
	for _, msg := range thread {
		last = max(last, msg.Sequence)
	}
	msg := Message{
		ID:        uuid.NewString(),
		ThreadID:  in.ThreadID,
		Role:      in.Role,
		Content:   in.Content,
		Reasoning: in.Reasoning,
		CreatedAt: nowMillis(m.now),
		Sequence:  last + 1,
	}
	m.messages[in.ThreadID] = append(thread, msg)
	return msg, nil
}

func (m *Memory) ListMessages(_ context.Context, threadID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]Message(nil), m.messages[threadID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}
