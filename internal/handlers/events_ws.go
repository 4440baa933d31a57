package handlers

import (
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"solace/internal/events"
)

// watchedTopics are the core notifications pushed to connected clients.
var watchedTopics = []string{
	events.TopicDatabaseReady,
	events.TopicQueueStatusChanged,
	events.TopicKeyStateChanged,
	events.TopicMigrationProgress,
}

// EventsHandler streams core events over a WebSocket connection
type EventsHandler struct {
	bus     *events.Bus
	metrics metricsRecorder
}

type metricsRecorder interface {
	RecordWebSocketConnect()
	RecordWebSocketDisconnect()
}

// NewEventsHandler creates a new events stream handler
func NewEventsHandler(bus *events.Bus, metrics metricsRecorder) *EventsHandler {
	return &EventsHandler{bus: bus, metrics: metrics}
}

// Handle is the WebSocket handler for /ws/events. It fans every watched topic
// into one socket; a slow client misses events rather than blocking anyone.
func (h *EventsHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()
	log.Printf("🔌 [EVENTS-WS] Connection opened: %s", connID)
	if h.metrics != nil {
		h.metrics.RecordWebSocketConnect()
	}

	merged := make(chan events.Event, 256)
	done := make(chan struct{})

	for _, topic := range watchedTopics {
		ch := h.bus.Subscribe(topic, connID, 64)
		go func(ch <-chan events.Event) {
			for {
				select {
				case ev := <-ch:
					select {
					case merged <- ev:
					default:
					}
				case <-done:
					return
				}
			}
		}(ch)
	}

	// Writer: sole owner of the connection.
	go func() {
		for {
			select {
			case ev := <-merged:
				if err := c.WriteJSON(ev); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Read loop keeps the connection alive and detects the close.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	for _, topic := range watchedTopics {
		h.bus.Unsubscribe(topic, connID)
	}
	if h.metrics != nil {
		h.metrics.RecordWebSocketDisconnect()
	}
	log.Printf("🔌 [EVENTS-WS] Connection closed: %s", connID)
}
