// Package todo holds the task list an agent maintains during a session.
package todo

import (
	"fmt"
	"sync"
)

// Status is the lifecycle state of a todo item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Priority is an optional urgency hint.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Item is one entry in the todo list.
type Item struct {
	ID       string   `json:"id" jsonschema:"minLength=1"`
	Content  string   `json:"content" jsonschema:"minLength=1"`
	Status   Status   `json:"status" jsonschema:"enum=pending,enum=in_progress,enum=completed,enum=cancelled"`
	Priority Priority `json:"priority,omitempty" jsonschema:"enum=high,enum=medium,enum=low"`
}

// Validate checks required fields and enum membership.
func (it Item) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("todo id is required")
	}
	if it.Content == "" {
		return fmt.Errorf("todo %s: content is required", it.ID)
	}
	switch it.Status {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
	default:
		return fmt.Errorf("todo %s: invalid status %q", it.ID, it.Status)
	}
	switch it.Priority {
	case "", PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return fmt.Errorf("todo %s: invalid priority %q", it.ID, it.Priority)
	}
	return nil
}

// Store is the in-memory todo list for one agent session. Writes replace
// the whole list; items are never merged.
type Store struct {
	items []Item
	mu    sync.RWMutex
}

// NewStore creates a store seeded with initial items.
func NewStore(initial []Item) *Store {
	s := &Store{}
	s.Set(initial)
	return s
}

// Get returns a copy of the current list.
func (s *Store) Get() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Set replaces the list.
func (s *Store) Set(next []Item) {
	cp := make([]Item, len(next))
	copy(cp, next)
	s.mu.Lock()
	s.items = cp
	s.mu.Unlock()
}

// Replace validates every item and then replaces the list. On a validation
// failure the store is left untouched.
func (s *Store) Replace(next []Item) error {
	for i, it := range next {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("todos[%d]: %w", i, err)
		}
	}
	s.Set(next)
	return nil
}

// Summary renders "completed/total completed, inProgress in progress".
func (s *Store) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summarize(s.items)
}

// Summarize renders the summary line for an arbitrary list.
func Summarize(items []Item) string {
	completed, inProgress := 0, 0
	for _, it := range items {
		switch it.Status {
		case StatusCompleted:
			completed++
		case StatusInProgress:
			inProgress++
		}
	}
	return fmt.Sprintf("%d/%d completed, %d in progress", completed, len(items), inProgress)
}
