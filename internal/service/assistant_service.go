package service

import (
	"context"
	"errors"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/repository/memory"
	"ai-assistant-be/pkg/continuity"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/generation"
)

var (
	ErrContextNotFound = errors.New("conversation context not found")
	ErrForbidden       = errors.New("conversation context belongs to another user")
	ErrInvalidContext  = errors.New("invalid conversation context id")
	ErrSessionPending  = errors.New("session has not finished")
)

const maxContextIDLength = 64

// ContextAuth treats a request as authenticated when the JWT middleware put a
// user id on its context.
type ContextAuth struct{}

func (ContextAuth) IsAuthenticated(ctx context.Context) bool {
	_, ok := serverutils.UserIDFromContext(ctx)
	return ok
}

// EventPublisher receives session events, e.g. the in-process bus or NATS.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IAssistantService interface {
	Submit(ctx context.Context, contextID, text string) (*generation.Session, error)
	Cancel(ctx context.Context, contextID, sessionID string) error
	Snapshot(ctx context.Context, contextID string) (*dto.ContextSnapshot, error)
	SessionResult(ctx context.Context, contextID, sessionID string) (*generation.Result, error)
	Authorize(ctx context.Context, contextID string) error
	ContextCount() int
	Shutdown()
}

type AssistantDeps struct {
	Base    generation.Config
	TTL     time.Duration
	Actions generation.Actions
	// Creator is nil when no database is configured.
	Creator continuity.ConversationCreator
	// Bus receives every event; Terminal only completion events.
	Bus      EventPublisher
	Terminal EventPublisher
	Logger   logger.ILogger
	// ControllerOptions are applied to every controller and must hold only
	// components that are safe to share.
	ControllerOptions []generation.Option
}

type assistantService struct {
	deps     AssistantDeps
	contexts *memory.ContextRepository
	logger   logger.ILogger
}

func NewAssistantService(deps AssistantDeps) IAssistantService {
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	s := &assistantService{deps: deps, logger: deps.Logger}
	s.contexts = memory.NewContextRepository(deps.TTL, func(id string, _ *memory.ContextEntry) {
		s.logger.Info("Assistant", "Context expired", map[string]interface{}{"context_id": id})
	})
	return s
}

func validContextID(id string) bool {
	return id != "" && len(id) <= maxContextIDLength
}

func (s *assistantService) newController(contextID string) *generation.Controller {
	cfg := s.deps.Base
	cfg.ContextID = contextID

	c := generation.NewController(cfg, s.deps.Actions, ContextAuth{}, s.deps.Creator, s.deps.ControllerOptions...)
	c.Subscribe(s.forward)
	s.logger.Info("Assistant", "Context created", map[string]interface{}{"context_id": contextID})
	return c
}

// forward runs on the session goroutine, in event order.
func (s *assistantService) forward(e generation.Event) {
	ctx := context.Background()
	if s.deps.Bus != nil {
		if err := s.deps.Bus.Publish(ctx, e); err != nil {
			s.logger.Error("Assistant", "Failed to publish event", map[string]interface{}{"error": err, "session_id": e.SessionID})
		}
	}
	if s.deps.Terminal != nil && e.Type == generation.EventCompleted {
		if err := s.deps.Terminal.Publish(ctx, e); err != nil {
			s.logger.Warn("Assistant", "Failed to publish terminal event", map[string]interface{}{"error": err, "session_id": e.SessionID})
		}
	}
}

func (s *assistantService) claim(ctx context.Context, entry *memory.ContextEntry) error {
	userID, _ := serverutils.UserIDFromContext(ctx)
	if !entry.Claim(userID) {
		return ErrForbidden
	}
	return nil
}

func (s *assistantService) Submit(ctx context.Context, contextID, text string) (*generation.Session, error) {
	if !validContextID(contextID) {
		return nil, ErrInvalidContext
	}

	entry, _ := s.contexts.GetOrCreate(contextID, func() *generation.Controller {
		return s.newController(contextID)
	})
	if err := s.claim(ctx, entry); err != nil {
		return nil, err
	}
	return entry.Controller.Submit(ctx, text)
}

func (s *assistantService) Cancel(ctx context.Context, contextID, sessionID string) error {
	entry, ok := s.contexts.Get(contextID)
	if !ok {
		return ErrContextNotFound
	}
	if err := s.claim(ctx, entry); err != nil {
		return err
	}
	return entry.Controller.Cancel(sessionID)
}

func (s *assistantService) Snapshot(ctx context.Context, contextID string) (*dto.ContextSnapshot, error) {
	entry, ok := s.contexts.Get(contextID)
	if !ok {
		return nil, ErrContextNotFound
	}
	if err := s.claim(ctx, entry); err != nil {
		return nil, err
	}

	c := entry.Controller
	snap := &dto.ContextSnapshot{
		ContextID:    contextID,
		State:        c.State(),
		Conversation: c.Conversation(),
		History:      c.LocalHistory(),
	}
	if sess := c.Active(); sess != nil {
		ss := &dto.SessionSnapshot{
			ID:          sess.ID,
			Input:       sess.Input,
			State:       sess.State(),
			Transitions: sess.Transitions(),
		}
		if res, done := sess.Result(); done {
			ss.Result = &res
		}
		snap.Session = ss
	}
	return snap, nil
}

// SessionResult returns the outcome of the latest session of contextID.
// Earlier sessions are gone once a newer one starts.
func (s *assistantService) SessionResult(ctx context.Context, contextID, sessionID string) (*generation.Result, error) {
	entry, ok := s.contexts.Get(contextID)
	if !ok {
		return nil, ErrContextNotFound
	}
	if err := s.claim(ctx, entry); err != nil {
		return nil, err
	}

	sess := entry.Controller.Active()
	if sess == nil || sess.ID != sessionID {
		return nil, generation.ErrSessionNotFound
	}
	res, done := sess.Result()
	if !done {
		return nil, ErrSessionPending
	}
	return &res, nil
}

// Authorize checks that the caller may watch contextID. Unknown contexts are
// allowed so a client can subscribe before its first submission.
func (s *assistantService) Authorize(ctx context.Context, contextID string) error {
	if !validContextID(contextID) {
		return ErrInvalidContext
	}
	entry, ok := s.contexts.Get(contextID)
	if !ok {
		return nil
	}
	userID, _ := serverutils.UserIDFromContext(ctx)
	if owner := entry.Owner(); owner != "" && owner != userID {
		return ErrForbidden
	}
	return nil
}

func (s *assistantService) ContextCount() int {
	return s.contexts.Count()
}

func (s *assistantService) Shutdown() {
	s.contexts.CloseAll()
}
