package handlers

import (
	"github.com/gofiber/fiber/v2"

	"solace/internal/filestore"
	"solace/internal/imagesearch"
	"solace/internal/tts"
)

// MediaHandler handles speech synthesis and image search requests
type MediaHandler struct {
	tts    *tts.Client
	images *imagesearch.Client
	files  *filestore.Service
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(ttsClient *tts.Client, images *imagesearch.Client, files *filestore.Service) *MediaHandler {
	return &MediaHandler{tts: ttsClient, images: images, files: files}
}

// Speak synthesizes (or fetches from cache) a voice clip and returns a
// transient URL for it
func (h *MediaHandler) Speak(c *fiber.Ctx) error {
	var body struct {
		Text    string `json:"text"`
		VoiceID string `json:"voice_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.Text == "" || body.VoiceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text and voice_id are required"})
	}

	fileID, err := h.tts.Speak(c.Context(), body.Text, body.VoiceID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{
		"file_id": fileID,
		"url":     h.files.GetURL(fileID),
	})
}

// SearchImages proxies a keyword image search
func (h *MediaHandler) SearchImages(c *fiber.Ctx) error {
	keyword := c.Query("q")
	if keyword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "q is required"})
	}
	images, err := h.images.Search(c.Context(), keyword, c.QueryInt("limit", 5))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"images": images, "count": len(images)})
}
