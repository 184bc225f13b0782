package generation

import (
	"time"

	"ai-assistant-be/pkg/events"
)

type EventType string

const (
	EventTransition EventType = "session.transition"
	EventStep       EventType = "session.step"
	EventCompleted  EventType = "session.completed"
)

// Event is what subscribers receive: every transition in order, then one
// completion event carrying the result. Every transition changes state.
// Multi-step actions such as a podcast report progress inside Awaiting as
// EventStep events naming the step.
type Event struct {
	Type       EventType   `json:"type"`
	ContextID  string      `json:"context_id"`
	SessionID  string      `json:"session_id"`
	Transition *Transition `json:"transition,omitempty"`
	Step       string      `json:"step,omitempty"`
	Result     *Result     `json:"result,omitempty"`
	At         time.Time   `json:"at"`
}

var _ events.Event = Event{}

func (e Event) EventType() string {
	return string(e.Type)
}

func (e Event) Payload() map[string]interface{} {
	return events.ToPayload(e)
}

func (e Event) Timestamp() time.Time {
	return e.At
}
