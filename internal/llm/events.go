// Package llm wraps the language-model endpoint behind two call shapes: a
// synchronous generate for scoring and non-streaming models, and a typed
// event stream for reasoning-capable models.
package llm

import (
	"github.com/clio-labs/chronotex/internal/domain"
)

// EventKind tags one streamed model event.
type EventKind int

const (
	// EventReasoningDelta appends a fragment to the reasoning trace.
	EventReasoningDelta EventKind = iota
	// EventReasoningDone carries the finalized reasoning trace.
	EventReasoningDone
	// EventOutputDelta appends a fragment to the answer.
	EventOutputDelta
	// EventOutputDone carries the finalized answer.
	EventOutputDone
	// EventCompleted terminates the stream successfully, with usage.
	EventCompleted
	// EventError terminates the stream with a failure.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReasoningDelta:
		return "reasoning-delta"
	case EventReasoningDone:
		return "reasoning-done"
	case EventOutputDelta:
		return "output-delta"
	case EventOutputDone:
		return "output-done"
	case EventCompleted:
		return "completed"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is one element of the model's output stream. Text is set on delta
// and done events, Usage on completed, Err on error.
type Event struct {
	Kind  EventKind
	Text  string
	Usage *domain.TokenUsage
	Err   error
}
