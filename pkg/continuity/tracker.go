package continuity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Ref describes the conversation a context is attached to. ID is empty until
// a durable conversation has been created; once set it never changes.
type Ref struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title,omitempty"`
	Ephemeral bool   `json:"is_ephemeral"`
}

// HasID reports whether a durable conversation backs this ref.
func (r Ref) HasID() bool {
	return r.ID != ""
}

// Message is one entry of the local history buffer.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthChecker reports whether the caller may own durable conversations.
type AuthChecker interface {
	IsAuthenticated(ctx context.Context) bool
}

// ConversationCreator persists a new conversation and returns its id.
type ConversationCreator interface {
	CreateConversation(ctx context.Context, title string) (string, error)
}

// Tracker owns the ConversationRef and local history of one conversation
// context.
type Tracker struct {
	mu      sync.RWMutex
	ref     Ref
	history []Message

	auth    AuthChecker
	creator ConversationCreator
	logger  *zap.Logger
	now     func() time.Time
}

type TrackerOption func(*Tracker)

func WithTrackerLogger(logger *zap.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithExistingConversation resumes a durable conversation created earlier.
func WithExistingConversation(id, title string) TrackerOption {
	return func(t *Tracker) {
		if id != "" {
			t.ref = Ref{ID: id, Title: title}
		}
	}
}

// NewTracker creates a tracker. A nil auth checker means every caller is
// anonymous; a nil creator means conversations are always ephemeral.
func NewTracker(auth AuthChecker, creator ConversationCreator, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		ref:     Ref{Ephemeral: true},
		auth:    auth,
		creator: creator,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// EnsureConversation returns the current ref, creating a durable conversation
// titled after seedText when the caller is authenticated and none exists yet.
// When creation fails the ephemeral ref is returned together with the error;
// the next call tries again.
func (t *Tracker) EnsureConversation(ctx context.Context, seedText string) (Ref, error) {
	t.mu.RLock()
	current := t.ref
	t.mu.RUnlock()

	if current.HasID() {
		return current, nil
	}

	title := current.Title
	if title == "" {
		title = DeriveTitle(seedText)
	}

	if t.auth == nil || t.creator == nil || !t.auth.IsAuthenticated(ctx) {
		t.mu.Lock()
		if !t.ref.HasID() {
			t.ref = Ref{Title: title, Ephemeral: true}
		}
		ref := t.ref
		t.mu.Unlock()
		return ref, nil
	}

	id, err := t.creator.CreateConversation(ctx, title)
	if err != nil {
		t.logger.Warn("conversation creation failed, staying ephemeral",
			zap.String("title", title),
			zap.Error(err))
		return Ref{Title: title, Ephemeral: true}, fmt.Errorf("create conversation: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ref.HasID() {
		// Assigned at most once
		return t.ref, nil
	}
	t.ref = Ref{ID: id, Title: title}
	t.logger.Info("conversation created", zap.String("conversation_id", id), zap.String("title", title))
	return t.ref, nil
}

// Ref returns a copy of the current conversation ref.
func (t *Tracker) Ref() Ref {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ref
}

// AppendLocalHistory records a message in the in-memory buffer. The buffer
// lives only as long as the tracker.
func (t *Tracker) AppendLocalHistory(role, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, Message{Role: role, Content: text, CreatedAt: t.now()})
}

// LocalHistory returns a copy of the buffer, oldest first.
func (t *Tracker) LocalHistory() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.history))
	copy(out, t.history)
	return out
}

// RecentHistory returns at most the last n messages, oldest first.
func (t *Tracker) RecentHistory(n int) []Message {
	all := t.LocalHistory()
	if n <= 0 || len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}
