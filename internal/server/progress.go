// file: internal/server/progress.go
// version: 1.0.0
// guid: 9e8d7f6a-5c4b-3a21-0f9e-8d7c6b5a4392

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// EventType identifies the kind of sync event broadcast over SSE.
type EventType string

const (
	EventSyncProgress EventType = "sync.progress"
	EventSyncStatus   EventType = "sync.status"
	EventSyncLog      EventType = "sync.log"
)

// Event is a single real-time event pushed to connected /progress clients.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Client is a single connected SSE client, optionally filtered to one run.
type Client struct {
	ID      string
	Channel chan *Event
	runID   string
	mu      sync.RWMutex
}

// NewClient creates a new SSE client.
func NewClient(id string) *Client {
	return &Client{ID: id, Channel: make(chan *Event, 100)}
}

// Follow restricts the client to events for the given run ID. An empty
// runID (the default) receives every run's events.
func (c *Client) Follow(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runID = runID
}

func (c *Client) wants(runID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runID == "" || runID == "" || c.runID == runID
}

// EventHub fans out executor progress callbacks to connected SSE clients,
// grounded in the teacher's internal/realtime event hub.
type EventHub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[string]*Client)}
}

// RegisterClient adds a client to the hub.
func (h *EventHub) RegisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// UnregisterClient removes a client and closes its channel.
func (h *EventHub) UnregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Channel)
		delete(h.clients, clientID)
	}
}

// Broadcast delivers an event to every client following its run (or
// following no particular run).
func (h *EventHub) Broadcast(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.wants(event.RunID) {
			continue
		}
		select {
		case client.Channel <- event:
		default:
			log.Printf("server: client %s channel full, dropping event", client.ID)
		}
	}
}

// SendProgress publishes a stage progress update, matching the signature
// expected by executor.Options.Progress.
func (h *EventHub) SendProgress(runID, stage string, current, total int, message string) {
	h.Broadcast(&Event{
		Type:      EventSyncProgress,
		RunID:     runID,
		Timestamp: time.Now(),
		Data: map[string]any{
			"stage":      stage,
			"current":    current,
			"total":      total,
			"message":    message,
			"percentage": calculatePercentage(current, total),
		},
	})
}

// SendStatus publishes a run-level status transition (started, committed, failed).
func (h *EventHub) SendStatus(runID, status string, details map[string]any) {
	h.Broadcast(&Event{
		Type:      EventSyncStatus,
		RunID:     runID,
		Timestamp: time.Now(),
		Data: map[string]any{
			"status":  status,
			"details": details,
		},
	})
}

// GetClientCount returns the number of connected clients.
func (h *EventHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleSSE serves GET /progress, optionally filtered by ?run=<id>.
func (h *EventHub) HandleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := fmt.Sprintf("client-%d", time.Now().UnixNano())
	client := NewClient(clientID)
	client.Follow(c.Query("run"))

	h.RegisterClient(client)
	defer h.UnregisterClient(clientID)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-client.Channel:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := c.Writer.Write([]byte(fmt.Sprintf("data: %s\n\n", data))); err != nil {
				return
			}
			c.Writer.Flush()
		case <-ticker.C:
			_, _ = c.Writer.Write([]byte(": heartbeat\n\n"))
			c.Writer.Flush()
		}
	}
}

func calculatePercentage(current, total int) int {
	if total <= 0 {
		return 0
	}
	percentage := (current * 100) / total
	if percentage > 100 {
		return 100
	}
	return percentage
}
