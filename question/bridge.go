// Package question connects a blocked tool call to whoever answers it.
//
// A Bridge holds at most one pending question set. The question tool
// calls Ask and blocks; an external answerer observes the slot through
// Subscribe/Pending and resolves it with Answer. Clear resolves the slot
// with an empty answer list so an aborted turn can never hang on it.
package question

import (
	"context"
	"errors"
	"sync"
)

// ErrQuestionPending is returned by Ask in strict mode when another
// question set is already outstanding.
var ErrQuestionPending = errors.New("a question is already pending")

// ErrNoQuestions is returned by Ask for an empty question set.
var ErrNoQuestions = errors.New("no questions to ask")

// Option describes one selectable choice.
type Option struct {
	Label       string `json:"label" jsonschema_description:"Display text (1-5 words, concise)"`
	Description string `json:"description" jsonschema_description:"Explanation of choice"`
}

// Input is a single question presented to the user.
type Input struct {
	Question string   `json:"question" jsonschema_description:"Complete question"`
	Header   string   `json:"header" jsonschema_description:"Very short label (max 30 chars)"`
	Options  []Option `json:"options" jsonschema_description:"Available choices"`
	Multiple *bool    `json:"multiple,omitempty" jsonschema_description:"Allow selecting multiple choices"`
	Custom   *bool    `json:"custom,omitempty" jsonschema_description:"Allow typing a custom answer (default: true)"`
}

// AllowsCustom reports whether free-form answers are accepted.
func (in Input) AllowsCustom() bool {
	return in.Custom == nil || *in.Custom
}

// AllowsMultiple reports whether more than one option may be chosen.
func (in Input) AllowsMultiple() bool {
	return in.Multiple != nil && *in.Multiple
}

// Answer is the user's response to one question.
type Answer struct {
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
}

type pendingState struct {
	id        uint64
	questions []Input
	result    chan []Answer
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithStrict makes Ask fail with ErrQuestionPending instead of replacing
// an outstanding question set.
func WithStrict() BridgeOption {
	return func(b *Bridge) {
		b.strict = true
	}
}

// Bridge is a single-slot rendezvous between one asking tool call and one
// external answerer. It is scoped to a session.
//
// Without WithStrict a second Ask overwrites the slot and the first caller
// stays blocked until its context ends. This is a known limitation.
type Bridge struct {
	pending   *pendingState
	listeners map[uint64]func()
	nextID    uint64
	nextSet   uint64
	strict    bool
	mu        sync.Mutex
}

// NewBridge creates an empty Bridge.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{listeners: make(map[uint64]func())}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Ask publishes questions and blocks until they are answered, cleared, or
// ctx is done.
func (b *Bridge) Ask(ctx context.Context, questions []Input) ([]Answer, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	state := &pendingState{
		questions: questions,
		result:    make(chan []Answer, 1),
	}

	b.mu.Lock()
	if b.strict && b.pending != nil {
		b.mu.Unlock()
		return nil, ErrQuestionPending
	}
	b.nextSet++
	state.id = b.nextSet
	b.pending = state
	b.mu.Unlock()
	b.notify()

	select {
	case answers := <-state.result:
		return answers, nil
	case <-ctx.Done():
		b.mu.Lock()
		owned := b.pending == state
		if owned {
			b.pending = nil
		}
		b.mu.Unlock()
		if owned {
			b.notify()
		}
		return nil, ctx.Err()
	}
}

// Answer resolves the pending question set. It reports false when nothing
// was pending.
func (b *Bridge) Answer(answers []Answer) bool {
	state := b.take()
	if state == nil {
		return false
	}
	b.notify()
	state.result <- answers
	return true
}

// PendingSet returns the outstanding questions with an id that changes
// whenever the slot is replaced. The id is 0 when nothing is pending.
func (b *Bridge) PendingSet() (uint64, []Input) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return 0, nil
	}
	return b.pending.id, b.pending.questions
}

// AnswerSet resolves the pending question set only if it is still the one
// identified by id. It reports false when the slot is empty or was
// replaced.
func (b *Bridge) AnswerSet(id uint64, answers []Answer) bool {
	b.mu.Lock()
	state := b.pending
	if state == nil || state.id != id {
		b.mu.Unlock()
		return false
	}
	b.pending = nil
	b.mu.Unlock()

	b.notify()
	state.result <- answers
	return true
}

// Clear resolves any pending question set with no answers.
func (b *Bridge) Clear() {
	state := b.take()
	if state == nil {
		return
	}
	state.result <- []Answer{}
	b.notify()
}

// Pending returns the outstanding questions, or nil.
func (b *Bridge) Pending() []Input {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return nil
	}
	return b.pending.questions
}

// Subscribe registers fn to be called whenever the slot changes. The
// returned function removes the subscription.
func (b *Bridge) Subscribe(fn func()) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

func (b *Bridge) take() *pendingState {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := b.pending
	b.pending = nil
	return state
}

func (b *Bridge) notify() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
