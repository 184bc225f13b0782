package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// SessionTopic carries every session event inside one process.
const SessionTopic = "assistant.sessions"

// Handler processes one decoded event. A non-nil error is logged and the
// message is still acked: publishers wait for every ack.
type Handler func(ctx context.Context, event BaseEvent) error

// Bus is an in-process publish/subscribe channel backed by watermill.
type Bus struct {
	pubSub *gochannel.GoChannel
	topic  string
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		pubSub: gochannel.NewGoChannel(
			// Blocking keeps per-publisher order across subscribers
			gochannel.Config{OutputChannelBuffer: 256, BlockPublishUntilSubscriberAck: true},
			watermill.NewStdLogger(false, false),
		),
		topic:  SessionTopic,
		logger: logger,
	}
}

func (b *Bus) Publish(_ context.Context, event Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.EventType())
	if err := b.pubSub.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}
	return nil
}

// Subscribe starts delivering events to handler until ctx is done or the bus
// is closed.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := b.pubSub.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, err)
	}

	go func() {
		for msg := range messages {
			b.process(ctx, msg, handler)
		}
	}()
	return nil
}

func (b *Bus) process(ctx context.Context, msg *message.Message, handler Handler) {
	event, err := Decode(msg.Payload)
	if err != nil {
		b.logger.Error("dropping malformed event", zap.String("message_id", msg.UUID), zap.Error(err))
		// Ack invalid messages to prevent infinite redelivery
		msg.Ack()
		return
	}

	if err := handler(ctx, event); err != nil {
		b.logger.Warn("event handler failed",
			zap.String("event_type", event.Type),
			zap.Error(err))
	}
	msg.Ack()
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
