package app

import (
	"sync"
	"sync/atomic"
	"time"
)

// BusMessageType represents the type of event bus message.
type BusMessageType string

const (
	BusMessageRender BusMessageType = "render"
	BusMessageChange BusMessageType = "change"
	BusMessageClosed BusMessageType = "closed"
)

// BusMessage carries a widget update to stream clients.
type BusMessage struct {
	ID        uint64         `json:"id"`
	Type      BusMessageType `json:"type"`
	WidgetID  string         `json:"widget_id"`
	Timestamp time.Time      `json:"timestamp"`
	Snapshot  *Snapshot      `json:"snapshot,omitempty"`
	Value     string         `json:"value,omitempty"`
}

const subscriberBufferSize = 64

// EventBus is an in-memory pub/sub bus for broadcasting widget updates to SSE clients.
type EventBus struct {
	nextID      atomic.Uint64
	mu          sync.RWMutex
	subscribers map[chan BusMessage]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[chan BusMessage]struct{}),
	}
}

// Subscribe returns a buffered channel that receives bus messages and an
// unsubscribe function. The caller must call unsubscribe when done.
func (b *EventBus) Subscribe() (<-chan BusMessage, func()) {
	ch := make(chan BusMessage, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

// Publish sends a message to all subscribers with a non-blocking send.
// Slow consumers that have full buffers will miss messages.
func (b *EventBus) Publish(msg BusMessage) {
	msg.ID = b.nextID.Add(1)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// BusView is a View that publishes each snapshot of one widget.
type BusView struct {
	Bus      *EventBus
	WidgetID string
}

func (v BusView) Render(s Snapshot) {
	v.Bus.Publish(BusMessage{Type: BusMessageRender, WidgetID: v.WidgetID, Snapshot: &s})
}
