package llm

import (
	"fmt"
	"strings"

	"github.com/clio-labs/chronotex/internal/domain"
)

// State is the accumulator's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Accumulator consumes an ordered event stream and builds the reasoning
// trace and the answer in two independent buffers. It is owned by a single
// consumer per request and needs no locking. Once a terminal event is
// observed the buffers are frozen; further events are rejected.
type Accumulator struct {
	state     State
	reasoning strings.Builder
	answer    strings.Builder
	usage     *domain.TokenUsage
	failure   error
}

func NewAccumulator() *Accumulator {
	return &Accumulator{state: StateIdle}
}

// Apply routes one event. Delta events append to their buffer, done events
// verify the buffer against the final payload, completed and error events
// terminate the stream. Applying an event after a terminal state, or a
// done payload that disagrees with the accumulated deltas, is a protocol
// violation that marks the stream failed.
func (a *Accumulator) Apply(ev Event) error {
	if a.state == StateCompleted || a.state == StateFailed {
		return fmt.Errorf("%w: %s event after terminal state %s",
			domain.ErrStreamProtocol, ev.Kind, a.state)
	}

	switch ev.Kind {
	case EventReasoningDelta:
		a.reasoning.WriteString(ev.Text)
		a.state = StateStreaming
	case EventOutputDelta:
		a.answer.WriteString(ev.Text)
		a.state = StateStreaming
	case EventReasoningDone:
		if ev.Text != "" && ev.Text != a.reasoning.String() {
			return a.fail(fmt.Errorf("%w: reasoning-done payload disagrees with accumulated deltas",
				domain.ErrStreamProtocol))
		}
		a.state = StateStreaming
	case EventOutputDone:
		if ev.Text != "" && ev.Text != a.answer.String() {
			return a.fail(fmt.Errorf("%w: output-done payload disagrees with accumulated deltas",
				domain.ErrStreamProtocol))
		}
		a.state = StateStreaming
	case EventCompleted:
		a.usage = ev.Usage
		a.state = StateCompleted
	case EventError:
		a.failure = ev.Err
		a.state = StateFailed
	default:
		return a.fail(fmt.Errorf("%w: unknown event kind %d", domain.ErrStreamProtocol, ev.Kind))
	}
	return nil
}

func (a *Accumulator) fail(err error) error {
	a.failure = err
	a.state = StateFailed
	return err
}

func (a *Accumulator) State() State { return a.state }

// Reasoning returns the accumulated reasoning trace. Empty when the model
// emits no reasoning events, which is a valid terminal state.
func (a *Accumulator) Reasoning() string { return a.reasoning.String() }

// Answer returns the accumulated answer text. After a failure this is a
// partial buffer kept for diagnostics, not a canonical answer.
func (a *Accumulator) Answer() string { return a.answer.String() }

// Usage returns the usage metadata from the completed event, nil before
// completion or on failure.
func (a *Accumulator) Usage() *domain.TokenUsage { return a.usage }

// Err returns the failure that terminated the stream, if any.
func (a *Accumulator) Err() error { return a.failure }
