package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/events"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ClusterChannel carries session events between instances.
const ClusterChannel = "assistant_cluster_events"

type clusterMessage struct {
	Origin    string          `json:"origin"`
	ContextID string          `json:"context_id"`
	Message   json.RawMessage `json:"message"`
}

type Hub struct {
	// Registered clients: ContextID -> set of clients (multi-tab)
	clients map[string]map[*Client]struct{}

	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb *redis.Client

	// instanceID lets an instance skip its own cluster messages
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run relays redis cluster messages until ctx is done, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}
	<-ctx.Done()

	h.mu.Lock()
	for id, set := range h.clients {
		for c := range set {
			close(c.Send)
		}
		delete(h.clients, id)
	}
	h.mu.Unlock()
	return nil
}

// Consume forwards every bus event to the clients watching its context.
func (h *Hub) Consume(ctx context.Context, bus *events.Bus) error {
	return bus.Subscribe(ctx, func(ctx context.Context, e events.BaseEvent) error {
		contextID, _ := e.Data["context_id"].(string)
		if contextID == "" {
			return nil
		}
		data, err := json.Marshal(map[string]interface{}{
			"type": e.Type,
			"data": e.Data,
		})
		if err != nil {
			return err
		}
		h.Send(ctx, contextID, data)
		return nil
	})
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	set, ok := h.clients[client.ContextID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.ContextID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("Hub", "Client registered", map[string]interface{}{"context_id": client.ContextID})
}

// Unregister is idempotent; the client's Send channel is closed once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.ContextID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.ContextID)
		h.logger.Info("Hub", "Context has no more watchers", map[string]interface{}{"context_id": client.ContextID})
	}
}

// ClientCount returns the number of local clients watching contextID.
func (h *Hub) ClientCount(contextID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[contextID])
}

// Send delivers data to local watchers of contextID and to other instances.
func (h *Hub) Send(ctx context.Context, contextID string, data []byte) {
	h.deliver(contextID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Origin: h.instanceID, ContextID: contextID, Message: data})
		if err := h.rdb.Publish(ctx, ClusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"error": err})
		}
	}
}

func (h *Hub) deliver(contextID string, data []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients[contextID] {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"context_id": contextID})
		h.Unregister(client)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, ClusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var payload clusterMessage
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err})
				continue
			}
			if payload.Origin == h.instanceID {
				continue
			}
			h.deliver(payload.ContextID, payload.Message)
		}
	}
}
