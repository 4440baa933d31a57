package handlers

import (
	"encoding/base64"

	"github.com/gofiber/fiber/v2"

	"solace/internal/models"
	"solace/internal/services"
)

// ContactHandler handles contact and chat history requests
type ContactHandler struct {
	contacts *services.ContactService
}

// NewContactHandler creates a new contact handler
func NewContactHandler(contacts *services.ContactService) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// List returns all contacts
func (h *ContactHandler) List(c *fiber.Ctx) error {
	contacts, err := h.contacts.List(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"contacts": contacts, "count": len(contacts)})
}

// Get returns one contact
func (h *ContactHandler) Get(c *fiber.Ctx) error {
	contact, err := h.contacts.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(contact)
}

// Upsert creates or replaces a contact
func (h *ContactHandler) Upsert(c *fiber.Ctx) error {
	var contact models.Contact
	if err := c.BodyParser(&contact); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contact payload"})
	}
	if err := h.contacts.Upsert(c.Context(), &contact); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(contact)
}

// Delete removes a contact and its chat history
func (h *ContactHandler) Delete(c *fiber.Ctx) error {
	if err := h.contacts.Delete(c.Context(), c.Params("id")); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// Messages returns the tail of a contact's chat history
func (h *ContactHandler) Messages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	messages, err := h.contacts.Messages(c.Context(), c.Params("id"), limit)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages, "count": len(messages)})
}

// AppendMessage appends one message to a contact's chat history
func (h *ContactHandler) AppendMessage(c *fiber.Ctx) error {
	var msg models.Message
	if err := c.BodyParser(&msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message payload"})
	}
	stored, err := h.contacts.AppendMessage(c.Context(), c.Params("id"), &msg)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(stored)
}

// EditMessage rewrites a message's content in place
func (h *ContactHandler) EditMessage(c *fiber.Ctx) error {
	messageID, err := c.ParamsInt("messageId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message ID"})
	}
	var body struct {
		Content         string `json:"content"`
		EditTimestampMs int64  `json:"edit_timestamp_ms"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid edit payload"})
	}
	if err := h.contacts.EditMessage(c.Context(), c.Params("id"), int64(messageID), body.Content, body.EditTimestampMs); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"edited": true})
}

// imagePayload is the shared JSON shape for uploaded binary assets.
type imagePayload struct {
	Data     string `json:"data"` // base64, no data-URL wrapper
	MimeType string `json:"mime_type"`
}

func (p *imagePayload) decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

// SetAvatar uploads a contact's avatar into the file store
func (h *ContactHandler) SetAvatar(c *fiber.Ctx) error {
	var payload imagePayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid avatar payload"})
	}
	data, err := payload.decode()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid base64 image data"})
	}
	fileID, err := h.contacts.SetAvatar(c.Context(), c.Params("id"), data, payload.MimeType)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"file_id": fileID})
}
