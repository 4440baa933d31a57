package handlers

import (
	"github.com/gofiber/fiber/v2"

	"solace/internal/filestore"
	"solace/internal/models"
)

// FileHandler serves stored blobs through transient tokens and keyed lookups
type FileHandler struct {
	files *filestore.Service
}

// NewFileHandler creates a new file handler
func NewFileHandler(files *filestore.Service) *FileHandler {
	return &FileHandler{files: files}
}

// ServeByToken streams a blob addressed by a transient URL token
func (h *FileHandler) ServeByToken(c *fiber.Ctx) error {
	fileID, ok := h.files.ResolveURL(c.Params("token"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown or expired file token"})
	}
	blob, err := h.files.GetByID(c.Context(), fileID)
	if err != nil {
		return respondErr(c, err)
	}
	c.Set("Content-Type", blob.MimeType)
	c.Set("Cache-Control", "private, max-age=86400")
	return c.Send(blob.Bytes)
}

// Lookup resolves a (domain,key) mapping to a file id plus a fresh transient URL
func (h *FileHandler) Lookup(c *fiber.Ctx) error {
	keyed, err := h.files.GetByKey(c.Context(), models.FileDomain(c.Params("domain")), c.Params("key"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(keyed)
}

// URLFor issues a transient URL for a known file id
func (h *FileHandler) URLFor(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	if _, err := h.files.GetByID(c.Context(), fileID); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"url": h.files.GetURL(fileID)})
}

// Release invalidates a transient URL
func (h *FileHandler) Release(c *fiber.Ctx) error {
	var body struct {
		URL string `json:"url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid release payload"})
	}
	h.files.ReleaseURL(body.URL)
	return c.JSON(fiber.Map{"released": true})
}
