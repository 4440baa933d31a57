package handlers

import (
	"github.com/gofiber/fiber/v2"

	"solace/internal/services"
)

// MemoryHandler handles bullet-list memory and conversation counter requests
type MemoryHandler struct {
	memory *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memory *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memory: memory}
}

type memoryBody struct {
	Text string `json:"text"`
}

// GetGlobal returns the global memory lines
func (h *MemoryHandler) GetGlobal(c *fiber.Ctx) error {
	lines, err := h.memory.GetGlobal(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"lines": lines})
}

// PutGlobal replaces the global memory
func (h *MemoryHandler) PutGlobal(c *fiber.Ctx) error {
	var body memoryBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid memory payload"})
	}
	if err := h.memory.PutGlobal(c.Context(), body.Text); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// GetContact returns one contact's memory lines
func (h *MemoryHandler) GetContact(c *fiber.Ctx) error {
	lines, err := h.memory.GetContact(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"lines": lines})
}

// PutContact replaces one contact's memory
func (h *MemoryHandler) PutContact(c *fiber.Ctx) error {
	var body memoryBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid memory payload"})
	}
	if err := h.memory.PutContact(c.Context(), c.Params("id"), body.Text); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// AppendContact appends lines to one contact's memory
func (h *MemoryHandler) AppendContact(c *fiber.Ctx) error {
	var body memoryBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid memory payload"})
	}
	if err := h.memory.AppendContact(c.Context(), c.Params("id"), body.Text); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// ClearContact drops one contact's memory and counter
func (h *MemoryHandler) ClearContact(c *fiber.Ctx) error {
	if err := h.memory.ClearContact(c.Context(), c.Params("id")); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"cleared": true})
}

// BumpCounter increments a contact's conversation counter and reports whether
// a summarization pass is due
func (h *MemoryHandler) BumpCounter(c *fiber.Ctx) error {
	by := c.QueryInt("by", 1)
	count, err := h.memory.BumpConversationCounter(c.Context(), c.Params("id"), by)
	if err != nil {
		return respondErr(c, err)
	}
	due, err := h.memory.ShouldSummarize(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"counter": count, "summarize_due": due})
}

// ResetCounter zeroes a contact's conversation counter
func (h *MemoryHandler) ResetCounter(c *fiber.Ctx) error {
	if err := h.memory.ResetCounter(c.Context(), c.Params("id")); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"counter": 0})
}
