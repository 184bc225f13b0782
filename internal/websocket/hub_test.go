package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(h *Hub, contextID string, buffer int) *Client {
	c := &Client{Hub: h, ContextID: contextID, Send: make(chan []byte, buffer)}
	h.Register(c)
	return c
}

func TestHubDeliversToContextWatchersOnly(t *testing.T) {
	h := NewHub(nil, logger.NewNopLogger())
	a1 := newClient(h, "ctx-a", 4)
	a2 := newClient(h, "ctx-a", 4)
	b := newClient(h, "ctx-b", 4)

	h.Send(context.Background(), "ctx-a", []byte("hello"))

	assert.Equal(t, "hello", string(<-a1.Send))
	assert.Equal(t, "hello", string(<-a2.Send))
	assert.Empty(t, b.Send)
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub(nil, logger.NewNopLogger())
	c := newClient(h, "ctx", 1)

	h.Send(context.Background(), "ctx", []byte("1"))
	h.Send(context.Background(), "ctx", []byte("2"))

	assert.Zero(t, h.ClientCount("ctx"))
	assert.Equal(t, "1", string(<-c.Send))
	_, open := <-c.Send
	assert.False(t, open)

	// Unregistering again is harmless
	h.Unregister(c)
}

func TestHubConsumeForwardsBusEvents(t *testing.T) {
	h := NewHub(nil, logger.NewNopLogger())
	c := newClient(h, "ctx-1", 4)

	bus := events.NewBus(nil)
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.Consume(ctx, bus))

	require.NoError(t, bus.Publish(ctx, events.BaseEvent{
		Type:       "session.transition",
		Data:       map[string]interface{}{"context_id": "ctx-1", "session_id": "s1"},
		OccurredAt: time.Now(),
	}))

	select {
	case raw := <-c.Send:
		var msg struct {
			Type string                 `json:"type"`
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "session.transition", msg.Type)
		assert.Equal(t, "s1", msg.Data["session_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not forwarded")
	}
}

func TestHubRunClosesClientsOnShutdown(t *testing.T) {
	h := NewHub(nil, logger.NewNopLogger())
	c := newClient(h, "ctx", 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, open := <-c.Send
	assert.False(t, open)
	assert.Zero(t, h.ClientCount("ctx"))
}
