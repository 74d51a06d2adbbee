package server

import (
	"context"
	"sync"
	"sync/atomic"

	"courier/internal/events"
	"courier/internal/redis"
	"courier/pkg/logger"

	"github.com/google/uuid"
)

// Hub maintains the set of connected clients and delivers fan-out events
// to the recipient's open connections. Events arrive over redis pub/sub,
// so every API instance sees every fan-out regardless of which instance
// performed the write.
type Hub struct {
	clients    map[uuid.UUID]map[string]*Client
	register   chan *Client
	unregister chan *Client
	deliver    chan *Delivery
	subscriber *redis.Subscriber
	log        *logger.Logger
	mu         sync.RWMutex
	stopChan   chan struct{}
	cancelSub  context.CancelFunc
	isRunning  int32
}

// Delivery is one event payload addressed to a user.
type Delivery struct {
	UserID  uuid.UUID
	Payload []byte
}

func NewHub(subscriber *redis.Subscriber, log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[string]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		deliver:    make(chan *Delivery, 256),
		subscriber: subscriber,
		log:        log,
		stopChan:   make(chan struct{}),
	}
}

// Run starts the Hub
func (h *Hub) Run() {
	atomic.StoreInt32(&h.isRunning, 1)
	defer atomic.StoreInt32(&h.isRunning, 0)

	if h.subscriber != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelSub = cancel
		go h.subscribeLoop(ctx)
	}

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case d := <-h.deliver:
			h.handleDeliver(d)

		case <-h.stopChan:
			return
		}
	}
}

func (h *Hub) subscribeLoop(ctx context.Context) {
	err := h.subscriber.Subscribe(ctx, []string{events.UserChannelPattern}, func(channel string, payload []byte) {
		userID, ok := events.UserFromChannel(channel)
		if !ok {
			return
		}
		h.deliver <- &Delivery{UserID: userID, Payload: payload}
	})
	if err != nil && ctx.Err() == nil && h.log != nil {
		h.log.Errorf("event subscription ended: %s", err)
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[string]*Client)
	}

	const maxConnectionsPerUser = 10
	if len(h.clients[client.userID]) >= maxConnectionsPerUser {
		for id, c := range h.clients[client.userID] {
			h.removeClient(c)
			delete(h.clients[client.userID], id)
			break
		}
	}

	h.clients[client.userID][client.clientID] = client

	if h.log != nil {
		h.log.Infof("client connected user=%s conn=%s", client.userID, client.clientID)
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userClients, ok := h.clients[client.userID]; ok {
		if _, ok := userClients[client.clientID]; ok {
			delete(userClients, client.clientID)
			h.removeClient(client)

			if len(userClients) == 0 {
				delete(h.clients, client.userID)
			}

			if h.log != nil {
				h.log.Infof("client disconnected user=%s conn=%s", client.userID, client.clientID)
			}
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	close(client.send)
	client.conn.Close()
}

func (h *Hub) handleDeliver(d *Delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if userClients, ok := h.clients[d.UserID]; ok {
		for _, client := range userClients {
			select {
			case client.send <- d.Payload:
			default:
				if h.log != nil {
					h.log.Warnf("client send buffer full user=%s conn=%s", client.userID, client.clientID)
				}
			}
		}
	}
}

// Stop gracefully shuts down the Hub
func (h *Hub) Stop() {
	if h.cancelSub != nil {
		h.cancelSub()
	}
	close(h.stopChan)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userClients := range h.clients {
		for _, client := range userClients {
			h.removeClient(client)
		}
	}
	h.clients = make(map[uuid.UUID]map[string]*Client)
}
