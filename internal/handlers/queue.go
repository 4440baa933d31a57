package handlers

import (
	"github.com/gofiber/fiber/v2"

	"solace/internal/queue"
)

// QueueHandler exposes the request queue's status and cancellation
type QueueHandler struct {
	queue *queue.Queue
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(q *queue.Queue) *QueueHandler {
	return &QueueHandler{queue: q}
}

// Status returns a snapshot of the queue in execution order
func (h *QueueHandler) Status(c *fiber.Ctx) error {
	return c.JSON(h.queue.Status())
}

// Cancel removes a pending request
func (h *QueueHandler) Cancel(c *fiber.Ctx) error {
	if err := h.queue.Cancel(c.Params("id")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"cancelled": true})
}
