package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/openclaw/chat-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 100
)

// Event types published for chat activity.
const (
	EventConnected          = "connected"
	EventSessionCreated     = "session_created"
	EventSessionDeleted     = "session_deleted"
	EventInteractionCreated = "interaction_created"
	EventInteractionDeleted = "interaction_deleted"
	EventMessageCreated     = "message_created"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEvent marshals data into an Event. Marshal failures yield an empty
// object payload.
func NewEvent(eventType string, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = json.RawMessage(`{}`)
	}
	return Event{Type: eventType, Data: raw}
}

type Client struct {
	UserID string
	Events chan Event
	Done   chan struct{}
}

// Broker fans out events published on Redis to the SSE clients connected
// to this instance.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // userID -> set of clients
	subs    map[string]*subscription
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc

	// listen runs one Redis subscription per user and closes ready once
	// SUBSCRIBE is confirmed.
	listen func(ctx context.Context, userID string, ready chan<- struct{})
}

type subscription struct {
	cancel context.CancelFunc
	ready  chan struct{}
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		subs:    make(map[string]*subscription),
		ctx:     ctx,
		cancel:  cancel,
	}
	b.listen = b.subscribeToRedis
	return b
}

func (b *Broker) Subscribe(userID string) *Client {
	client := &Client{
		UserID: userID,
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	sub, ok := b.subs[userID]
	if !ok {
		b.clients[userID] = make(map[*Client]bool)
		subCtx, cancel := context.WithCancel(b.ctx)
		sub = &subscription{cancel: cancel, ready: make(chan struct{})}
		b.subs[userID] = sub
		go b.listen(subCtx, userID, sub.ready)
	}
	b.clients[userID][client] = true
	clientCount := len(b.clients[userID])
	b.mu.Unlock()

	// Events published before SUBSCRIBE is confirmed would be lost.
	<-sub.ready

	log.Info().
		Str("userId", userID).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.UserID]; ok {
		if _, exists := clients[client]; !exists {
			return
		}
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.UserID)
			if sub, ok := b.subs[client.UserID]; ok {
				sub.cancel()
				delete(b.subs, client.UserID)
			}
		}

		log.Info().
			Str("userId", client.UserID).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

// Publish sends event to every instance subscribed for userID.
func (b *Broker) Publish(ctx context.Context, userID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.EventChannel(userID)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, userID string, ready chan<- struct{}) {
	channel := redisclient.EventChannel(userID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("redis pubsub subscribe failed")
	}
	close(ready)

	log.Debug().
		Str("userId", userID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(userID, event)
		}
	}
}

func (b *Broker) broadcast(userID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients[userID] {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("userId", userID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.subs = make(map[string]*subscription)
}

// TotalClients counts the streams connected to this instance.
func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
