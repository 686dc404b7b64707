// Package daemon implements the advisor daemon core.
package daemon

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// EventType represents the type of event being published on the daemon's
// SSE stream.
type EventType string

// Event types the daemon publishes.
const (
	EventTurnCompleted         EventType = "turn_completed"
	EventIndexRebuildStarted   EventType = "index_rebuild_started"
	EventIndexRebuildCompleted EventType = "index_rebuild_completed"
	EventSessionEvicted        EventType = "session_evicted"
	EventDaemonStatus          EventType = "daemon_status"
)

// Event represents a single event published by the daemon.
type Event struct {
	ID        uint64          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventBus manages event subscriptions and publishing.
// It is thread-safe and designed for SSE broadcasting.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]chan *Event
	nextID      uint64
	eventID     atomic.Uint64
	bufferSize  int
	closed      bool
}

// NewEventBus creates a new EventBus with the given channel buffer size.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 100 // Default buffer
	}
	return &EventBus{
		subscribers: make(map[uint64]chan *Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a new subscription and returns a channel for receiving events.
// The returned ID should be used to Unsubscribe when done.
func (eb *EventBus) Subscribe() (uint64, <-chan *Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return 0, nil
	}

	id := eb.nextID
	eb.nextID++

	ch := make(chan *Event, eb.bufferSize)
	eb.subscribers[id] = ch

	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (eb *EventBus) Unsubscribe(id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if ch, ok := eb.subscribers[id]; ok {
		close(ch)
		delete(eb.subscribers, id)
	}
}

// Publish broadcasts an event to all subscribers.
// If a subscriber's channel is full, the event is dropped for that subscriber.
func (eb *EventBus) Publish(eventType EventType, data interface{}) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return err
	}

	event := &Event{
		ID:        eb.eventID.Add(1),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      dataBytes,
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return nil
	}

	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
			// Sent successfully
		default:
			// Channel full, drop event for this subscriber
		}
	}

	return nil
}

// SubscriberCount returns the current number of active subscribers.
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Close closes the EventBus and all subscriber channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true
	for id, ch := range eb.subscribers {
		close(ch)
		delete(eb.subscribers, id)
	}
}

// Event data structures for typed events

// TurnEventData describes a single orchestrator turn, published so a
// dashboard client can watch live traffic without polling /session.
type TurnEventData struct {
	SessionID    string `json:"session_id"`
	Category     string `json:"category,omitempty"`
	ProcessingMs int64  `json:"processing_time_ms,omitempty"`
	Error        bool   `json:"error,omitempty"`
}

// IndexRebuildEventData describes one category's DocumentIndexer.Build
// progress.
type IndexRebuildEventData struct {
	Category   string `json:"category"`
	Loaded     int    `json:"loaded,omitempty"`
	Indexed    int    `json:"indexed,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SessionEvictedEventData reports one idle-session sweep eviction.
type SessionEvictedEventData struct {
	SessionID string `json:"session_id"`
}

// DaemonStatusData contains data for daemon heartbeat events.
type DaemonStatusData struct {
	Status      string    `json:"status"` // "running", "shutting_down"
	Uptime      string    `json:"uptime"`
	StartTime   time.Time `json:"start_time"`
	Subscribers int       `json:"subscribers"`
}
