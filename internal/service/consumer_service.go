package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/generation"
	"ai-assistant-be/pkg/intent"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService stores completed chat turns of durable conversations.
type consumerService struct {
	bus           *events.Bus
	conversations IConversationService
	logger        logger.ILogger

	mu      sync.Mutex
	started map[string]time.Time
}

func NewConsumerService(bus *events.Bus, conversations IConversationService, log logger.ILogger) IConsumerService {
	return &consumerService{
		bus:           bus,
		conversations: conversations,
		logger:        log,
		started:       make(map[string]time.Time),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	return cs.bus.Subscribe(ctx, cs.processEvent)
}

// decodeEvent turns a bus envelope back into a session event.
func decodeEvent(e events.BaseEvent) (generation.Event, error) {
	var out generation.Event
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", e.Type, err)
	}
	return out, nil
}

func (cs *consumerService) processEvent(ctx context.Context, e events.BaseEvent) error {
	event, err := decodeEvent(e)
	if err != nil {
		cs.logger.Error("Consumer", "Failed to decode session event", map[string]interface{}{"error": err})
		return nil
	}

	switch event.Type {
	case generation.EventTransition:
		if event.Transition != nil && event.Transition.From == generation.StateIdle {
			cs.mu.Lock()
			cs.started[event.SessionID] = event.Transition.At
			cs.mu.Unlock()
		}
		return nil
	case generation.EventCompleted:
		cs.mu.Lock()
		startedAt, ok := cs.started[event.SessionID]
		delete(cs.started, event.SessionID)
		cs.mu.Unlock()
		if !ok {
			startedAt = event.At
		}
		return cs.persist(ctx, event, startedAt)
	default:
		return nil
	}
}

func (cs *consumerService) persist(ctx context.Context, event generation.Event, startedAt time.Time) error {
	res := event.Result
	if res == nil || res.State != generation.StateCompleted || res.Kind != intent.KindChat {
		return nil
	}
	if !res.Conversation.HasID() || res.Response == nil {
		return nil
	}

	err := cs.conversations.SaveExchange(ctx, Exchange{
		ConversationID: res.Conversation.ID,
		SessionID:      res.SessionID,
		UserText:       res.Payload,
		UserAt:         startedAt,
		AssistantText:  res.Response.RawText,
		AssistantAt:    res.FinishedAt,
		Metadata:       exchangeMetadata(res),
	})
	if err != nil {
		cs.logger.Error("Consumer", "Failed to save exchange", map[string]interface{}{
			"error":           err,
			"conversation_id": res.Conversation.ID,
			"session_id":      res.SessionID,
		})
		return err
	}

	cs.logger.Info("Consumer", "Exchange saved", map[string]interface{}{
		"conversation_id": res.Conversation.ID,
		"session_id":      res.SessionID,
	})
	return nil
}

func exchangeMetadata(res *generation.Result) map[string]any {
	meta := map[string]any{
		"fallback":    res.Fallback,
		"emoji_level": string(res.Response.EmojiLevel),
		"emoji_count": res.Response.EmojiCount,
	}
	for k, v := range res.Metadata {
		if _, taken := meta[k]; !taken {
			meta[k] = v
		}
	}
	return meta
}
