package sse

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/execution-hub/execution-tracker/internal/domain/execution"
)

const DefaultClientBuffer = 64

var ErrHubStopped = errors.New("sse hub stopped")

// Client is one live stream. An empty ExecutionID receives every event.
type Client struct {
	ID          string
	ExecutionID string
	Events      chan execution.Event

	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.Events) })
}

func (c *Client) wants(event execution.Event) bool {
	return c.ExecutionID == "" || c.ExecutionID == event.ExecutionID
}

// Hub manages SSE clients and is itself an event sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
	stopped bool
}

func NewHub(clientBuffer int) *Hub {
	if clientBuffer <= 0 {
		clientBuffer = DefaultClientBuffer
	}
	return &Hub{
		clients: make(map[string]*Client),
		buffer:  clientBuffer,
	}
}

// Subscribe registers a client for executionID, or for all executions when
// executionID is empty. It fails with ErrHubStopped once Stop has run.
func (h *Hub) Subscribe(executionID string) (*Client, error) {
	c := &Client{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		Events:      make(chan execution.Event, h.buffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, ErrHubStopped
	}
	h.clients[c.ID] = c
	return c, nil
}

func (h *Hub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		c.close()
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Name() string {
	return "sse"
}

// Send fans the event out to interested clients. Slow clients miss events
// instead of stalling the others.
func (h *Hub) Send(_ context.Context, event execution.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.wants(event) {
			trySend(c, event)
		}
	}
	return nil
}

// Stop closes every client stream and refuses new subscriptions.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

func trySend(c *Client, event execution.Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
