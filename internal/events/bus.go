package events

import (
	"log"
	"sync"
)

// Core event topics consumed by view adapters.
const (
	TopicDatabaseReady      = "databaseReady"
	TopicQueueStatusChanged = "queueStatusChanged"
	TopicKeyStateChanged    = "keyStateChanged"
	TopicMigrationProgress  = "migrationProgress"
)

// Event is one published notification. Payload shape depends on the topic.
type Event struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload,omitempty"`
}

// Bus is an in-memory pub/sub decoupling the core subsystems from whatever
// is watching them (the WebSocket status stream, tests). Publish is
// non-blocking; a subscriber whose channel is full misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Event // topic → subID → chan
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]map[string]chan Event),
	}
}

// Subscribe creates a buffered channel receiving events for one topic.
func (b *Bus) Subscribe(topic, subID string, bufSize int) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, bufSize)
	if _, ok := b.subscribers[topic]; !ok {
		b.subscribers[topic] = make(map[string]chan Event)
	}
	b.subscribers[topic][subID] = ch
	return ch
}

// Unsubscribe removes a subscription. The channel is NOT closed, the
// subscriber's goroutine should exit via its own done signal.
func (b *Bus) Unsubscribe(topic, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[topic]; ok {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(b.subscribers, topic)
		}
	}
}

// Publish sends an event to every subscriber of its topic.
func (b *Bus) Publish(topic string, payload interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Topic: topic, Payload: payload}
	for subID, ch := range b.subscribers[topic] {
		select {
		case ch <- event:
		default:
			log.Printf("⚠️  [EVENT-BUS] Subscriber %s is full, dropping %s event", subID, topic)
		}
	}
}

// SubscriberCount reports how many subscribers a topic currently has.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}
