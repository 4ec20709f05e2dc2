// Package events carries pipeline outcome events to in-process subscribers
// and, optionally, to a Redis stream for external consumers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies a pipeline event.
type Type string

const (
	// ContentStored fires after an item is persisted (insert or update).
	ContentStored Type = "content_stored"
	// ContentRejected fires when an item terminates at a pipeline gate.
	ContentRejected Type = "content_rejected"
	// StorageError fires when persistence fails for an item.
	StorageError Type = "storage_error"
	// StorageSkipped fires when an unchanged item is left as-is.
	StorageSkipped Type = "storage_skipped"
)

// Event is the structured payload delivered to subscribers.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	Type      Type      `json:"type"`
	SourceID  string    `json:"source_id,omitempty"`
	ContentID string    `json:"content_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	// Reason carries the rejection reason code or error text.
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber receives events. Subscribers must not block; no return value
// is expected from them.
type Subscriber func(Event)

// Bus is a typed in-process publish/subscribe dispatcher.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a subscriber for all pipeline events.
func (b *Bus) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Publish delivers the event to every subscriber in registration order.
// Missing ID and timestamp are filled in.
func (b *Bus) Publish(event Event) {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
}
