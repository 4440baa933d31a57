package handlers

import (
	"github.com/gofiber/fiber/v2"

	"solace/internal/models"
	"solace/internal/services"
)

// EmojiHandler handles sticker library requests
type EmojiHandler struct {
	emojis *services.EmojiService
}

// NewEmojiHandler creates a new emoji handler
func NewEmojiHandler(emojis *services.EmojiService) *EmojiHandler {
	return &EmojiHandler{emojis: emojis}
}

// List returns the whole sticker library
func (h *EmojiHandler) List(c *fiber.Ctx) error {
	emojis, err := h.emojis.List(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"emojis": emojis, "count": len(emojis)})
}

// Get returns one sticker by id
func (h *EmojiHandler) Get(c *fiber.Ctx) error {
	emoji, err := h.emojis.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(emoji)
}

// GetByTag returns one sticker by its chat-history tag
func (h *EmojiHandler) GetByTag(c *fiber.Ctx) error {
	emoji, err := h.emojis.GetByTag(c.Context(), c.Params("tag"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(emoji)
}

// Upsert creates or replaces a sticker record
func (h *EmojiHandler) Upsert(c *fiber.Ctx) error {
	var emoji models.EmojiMeta
	if err := c.BodyParser(&emoji); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid emoji payload"})
	}
	if err := h.emojis.Upsert(c.Context(), &emoji); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(emoji)
}

// Delete removes a sticker record
func (h *EmojiHandler) Delete(c *fiber.Ctx) error {
	if err := h.emojis.Delete(c.Context(), c.Params("id")); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// SetImage uploads a sticker's image into the file store
func (h *EmojiHandler) SetImage(c *fiber.Ctx) error {
	var payload imagePayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid image payload"})
	}
	data, err := payload.decode()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid base64 image data"})
	}
	fileID, err := h.emojis.SetImage(c.Context(), c.Params("id"), data, payload.MimeType)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"file_id": fileID})
}
