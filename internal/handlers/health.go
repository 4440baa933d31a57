package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"solace/internal/database"
	"solace/internal/queue"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	db    *database.DB
	queue *queue.Queue
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, q *queue.Queue) *HealthHandler {
	return &HealthHandler{db: db, queue: q}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	status := "healthy"
	if err := h.db.PingContext(c.Context()); err != nil {
		status = "degraded"
	}
	return c.JSON(fiber.Map{
		"status":         status,
		"schema_version": database.SchemaVersion,
		"queue_pending":  h.queue.Status().Pending,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
