package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/repository/specification"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/continuity"
	"ai-assistant-be/pkg/llm"

	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotOwner             = errors.New("conversation belongs to another user")
)

// Exchange is one completed chat turn on a durable conversation.
type Exchange struct {
	ConversationID string
	SessionID      string
	UserText       string
	UserAt         time.Time
	AssistantText  string
	AssistantAt    time.Time
	Metadata       map[string]any
}

type IConversationService interface {
	CreateConversation(ctx context.Context, title string) (string, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error)
	SaveExchange(ctx context.Context, ex Exchange) error
	Messages(ctx context.Context, userID, conversationID string) ([]dto.StoredMessage, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]dto.ConversationSummary, error)
}

const maxConversationPage = 100

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewConversationService(uowFactory unitofwork.RepositoryFactory) IConversationService {
	return &conversationService{uowFactory: uowFactory}
}

// CreateConversation stores a conversation owned by the user on ctx.
func (s *conversationService) CreateConversation(ctx context.Context, title string) (string, error) {
	userID, ok := serverutils.UserIDFromContext(ctx)
	if !ok {
		return "", errors.New("create conversation: no authenticated user")
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("create conversation: user id: %w", err)
	}

	conv := &entity.Conversation{UserId: uid, Title: title}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ConversationRepository().Create(ctx, conv); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return conv.Id.String(), nil
}

// RecentMessages returns the last limit messages, oldest first.
func (s *conversationService) RecentMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error) {
	cid, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation id: %w", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	msgs, err := uow.ConversationMessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: cid},
		specification.Newest{},
		specification.Limit{N: limit},
	)
	if err != nil {
		return nil, err
	}

	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	slices.Reverse(out)
	return out, nil
}

// SaveExchange writes both sides of a turn in one transaction.
func (s *conversationService) SaveExchange(ctx context.Context, ex Exchange) error {
	cid, err := uuid.Parse(ex.ConversationID)
	if err != nil {
		return fmt.Errorf("conversation id: %w", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	conv, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: cid})
	if err != nil {
		return err
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	repo := uow.ConversationMessageRepository()
	if err := repo.Create(ctx, &entity.ConversationMessage{
		ConversationId: cid,
		SessionId:      ex.SessionID,
		Role:           continuity.RoleUser,
		Content:        ex.UserText,
		CreatedAt:      ex.UserAt,
	}); err != nil {
		return err
	}
	if err := repo.Create(ctx, &entity.ConversationMessage{
		ConversationId: cid,
		SessionId:      ex.SessionID,
		Role:           continuity.RoleAssistant,
		Content:        ex.AssistantText,
		Metadata:       ex.Metadata,
		CreatedAt:      ex.AssistantAt,
	}); err != nil {
		return err
	}

	return uow.Commit()
}

func (s *conversationService) Messages(ctx context.Context, userID, conversationID string) ([]dto.StoredMessage, error) {
	cid, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conv, err := uow.ConversationRepository().FindOne(ctx, specification.ByID{ID: cid})
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if conv.UserId.String() != userID {
		return nil, ErrNotOwner
	}

	msgs, err := uow.ConversationMessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: cid},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	out := make([]dto.StoredMessage, len(msgs))
	for i, m := range msgs {
		out[i] = dto.StoredMessage{
			ID:        m.Id.String(),
			SessionID: m.SessionId,
			Role:      m.Role,
			Content:   m.Content,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt,
		}
	}
	return out, nil
}

// ListConversations returns the user's conversations, newest first. A limit
// outside 1..100 means 100.
func (s *conversationService) ListConversations(ctx context.Context, userID string, limit int) ([]dto.ConversationSummary, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return []dto.ConversationSummary{}, nil
	}
	if limit <= 0 || limit > maxConversationPage {
		limit = maxConversationPage
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	convs, err := uow.ConversationRepository().FindAll(ctx,
		specification.ByUserID{UserID: uid},
		specification.Newest{},
		specification.Limit{N: limit},
	)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ConversationSummary, len(convs))
	for i, c := range convs {
		out[i] = dto.ConversationSummary{ID: c.Id.String(), Title: c.Title, CreatedAt: c.CreatedAt}
	}
	return out, nil
}
