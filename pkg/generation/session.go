package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-assistant-be/pkg/actions"
	"ai-assistant-be/pkg/continuity"
	"ai-assistant-be/pkg/enrich"
	"ai-assistant-be/pkg/intent"
)

type State string

const (
	StateIdle        State = "idle"
	StateClassifying State = "classifying"
	StateDispatching State = "dispatching"
	StateAwaiting    State = "awaiting"
	StateCompleted   State = "completed"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

var (
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrEmptyInput         = fmt.Errorf("%w: input is empty", ErrPreconditionFailed)
	ErrUnauthenticated    = fmt.Errorf("%w: sign in to generate media", ErrPreconditionFailed)

	ErrSessionNotFound = errors.New("session not found")
	ErrSuperseded      = errors.New("superseded by a newer submission")
	ErrStopped         = errors.New("stopped by user")
	ErrClosed          = errors.New("controller closed")
)

// Podcast steps reported through EventStep.
const (
	StepScript = "script"
	StepAudio  = "audio"
)

// Transition is one entry of a session's state log.
type Transition struct {
	SessionID string    `json:"session_id"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Media is a non-chat result, passed through as the provider returned it.
type Media struct {
	Kind     intent.Kind       `json:"kind"`
	Image    *actions.Image    `json:"image,omitempty"`
	Document *actions.Document `json:"document,omitempty"`
	Audio    *actions.Audio    `json:"audio,omitempty"`
	Script   string            `json:"script,omitempty"`
}

// Result is the terminal outcome of a session.
type Result struct {
	SessionID    string                   `json:"session_id"`
	State        State                    `json:"state"`
	Kind         intent.Kind              `json:"kind,omitempty"`
	Payload      string                   `json:"payload,omitempty"`
	Response     *enrich.EnrichedResponse `json:"response,omitempty"`
	Metadata     map[string]any           `json:"metadata,omitempty"`
	Media        *Media                   `json:"media,omitempty"`
	Fallback     bool                     `json:"fallback,omitempty"`
	Conversation continuity.Ref           `json:"conversation"`
	Error        string                   `json:"error,omitempty"`
	FinishedAt   time.Time                `json:"finished_at"`

	Err error `json:"-"`
}

// Session is the handle returned by Submit. Its state and log can be read at
// any time; the result is available once Done is closed.
type Session struct {
	ID        string
	ContextID string
	Input     string
	StartedAt time.Time

	cancel context.CancelCauseFunc
	done   chan struct{}

	mu          sync.RWMutex
	state       State
	transitions []Transition
	result      Result
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transitions returns a copy of the ordered state log.
func (s *Session) Transitions() []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the outcome and true once the session is terminal.
func (s *Session) Result() (Result, bool) {
	select {
	case <-s.done:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the session is terminal or ctx is done.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		res, _ := s.Result()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (s *Session) record(to State, reason string, at time.Time) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Transition{SessionID: s.ID, From: s.state, To: to, Reason: reason, At: at}
	s.state = to
	s.transitions = append(s.transitions, t)
	return t
}
