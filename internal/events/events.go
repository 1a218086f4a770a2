package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventItemQueued  = "sync_item_queued"
	EventItemSynced  = "sync_item_synced"
	EventItemRetry   = "sync_item_retry"
	EventItemDropped = "sync_item_dropped"
	EventQueueDrain  = "sync_queue_drain"
)

// ItemEventPayload is the minimal item snapshot for event consumers.
// Dropped events are the only signal application code gets that a
// mutation hit its retry budget and was abandoned.
type ItemEventPayload struct {
	ItemID     string `json:"item_id"`
	Kind       string `json:"kind"`
	Collection string `json:"collection"`
	Priority   string `json:"priority"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error,omitempty"`
}

// Event represents a lightweight in-process event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
