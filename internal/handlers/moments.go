package handlers

import (
	"encoding/base64"

	"github.com/gofiber/fiber/v2"

	"solace/internal/models"
	"solace/internal/services"
)

// MomentHandler handles moment feed and forum post requests
type MomentHandler struct {
	moments *services.MomentService
}

// NewMomentHandler creates a new moment handler
func NewMomentHandler(moments *services.MomentService) *MomentHandler {
	return &MomentHandler{moments: moments}
}

// ListMoments returns the feed newest-first. visible=true filters out moments
// whose author no longer exists
func (h *MomentHandler) ListMoments(c *fiber.Ctx) error {
	visibleOnly := c.QueryBool("visible", false)
	moments, err := h.moments.ListMoments(c.Context(), visibleOnly)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"moments": moments, "count": len(moments)})
}

// GetMoment returns one moment
func (h *MomentHandler) GetMoment(c *fiber.Ctx) error {
	moment, err := h.moments.GetMoment(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(moment)
}

// UpsertMoment creates or replaces a moment
func (h *MomentHandler) UpsertMoment(c *fiber.Ctx) error {
	var moment models.Moment
	if err := c.BodyParser(&moment); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid moment payload"})
	}
	if err := h.moments.UpsertMoment(c.Context(), &moment); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(moment)
}

// AttachImages uploads a moment's image set into the file store
func (h *MomentHandler) AttachImages(c *fiber.Ctx) error {
	var body struct {
		Images   []string `json:"images"` // base64, no data-URL wrapper
		MimeType string   `json:"mime_type"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid images payload"})
	}
	images := make([][]byte, 0, len(body.Images))
	for _, raw := range body.Images {
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid base64 image data"})
		}
		images = append(images, data)
	}
	fileIDs, err := h.moments.AttachMomentImages(c.Context(), c.Params("id"), images, body.MimeType)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"file_ids": fileIDs})
}

// AddMomentComment appends a comment to a moment
func (h *MomentHandler) AddMomentComment(c *fiber.Ctx) error {
	var comment models.Comment
	if err := c.BodyParser(&comment); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid comment payload"})
	}
	if err := h.moments.AddMomentComment(c.Context(), c.Params("id"), comment); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// DeleteMoment removes a moment
func (h *MomentHandler) DeleteMoment(c *fiber.Ctx) error {
	if err := h.moments.DeleteMoment(c.Context(), c.Params("id")); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// ListPosts returns the forum feed
func (h *MomentHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.moments.ListPosts(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts, "count": len(posts)})
}

// GetPost returns one forum post
func (h *MomentHandler) GetPost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post ID"})
	}
	post, err := h.moments.GetPost(c.Context(), int64(id))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(post)
}

// CreatePost inserts a forum post and returns its assigned id
func (h *MomentHandler) CreatePost(c *fiber.Ctx) error {
	var post models.ForumPost
	if err := c.BodyParser(&post); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post payload"})
	}
	id, err := h.moments.CreatePost(c.Context(), &post)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"id": id})
}

// AddPostComment appends a comment to a forum post
func (h *MomentHandler) AddPostComment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post ID"})
	}
	var comment models.Comment
	if err := c.BodyParser(&comment); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid comment payload"})
	}
	if err := h.moments.AddPostComment(c.Context(), int64(id), comment); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// DeletePost removes a forum post
func (h *MomentHandler) DeletePost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post ID"})
	}
	if err := h.moments.DeletePost(c.Context(), int64(id)); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}
