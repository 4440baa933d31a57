package handlers

import (
	"encoding/base64"

	"github.com/gofiber/fiber/v2"

	"solace/internal/models"
	"solace/internal/services"
)

// ProfileHandler handles user profile, background, theme, and song requests
type ProfileHandler struct {
	profile *services.ProfileService
	themes  *services.ThemeService
	songs   *services.SongService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profile *services.ProfileService, themes *services.ThemeService, songs *services.SongService) *ProfileHandler {
	return &ProfileHandler{profile: profile, themes: themes, songs: songs}
}

// GetProfile returns the user profile
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	profile, err := h.profile.GetProfile(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(profile)
}

// PutProfile replaces the user profile
func (h *ProfileHandler) PutProfile(c *fiber.Ctx) error {
	var profile models.UserProfile
	if err := c.BodyParser(&profile); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid profile payload"})
	}
	if err := h.profile.PutProfile(c.Context(), &profile); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(profile)
}

// SetAvatar uploads the user's avatar into the file store
func (h *ProfileHandler) SetAvatar(c *fiber.Ctx) error {
	var payload imagePayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid avatar payload"})
	}
	data, err := payload.decode()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid base64 image data"})
	}
	fileID, err := h.profile.SetProfileAvatar(c.Context(), data, payload.MimeType)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"file_id": fileID})
}

// GetBackgrounds returns the chat background map
func (h *ProfileHandler) GetBackgrounds(c *fiber.Ctx) error {
	backgrounds, err := h.profile.GetBackgrounds(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(backgrounds)
}

// SetBackground uploads one contact's chat background
func (h *ProfileHandler) SetBackground(c *fiber.Ctx) error {
	var payload imagePayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid background payload"})
	}
	data, err := payload.decode()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid base64 image data"})
	}
	fileID, err := h.profile.SetBackground(c.Context(), c.Params("contactId"), data, payload.MimeType)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"file_id": fileID})
}

// ListThemes returns every stored theme record
func (h *ProfileHandler) ListThemes(c *fiber.Ctx) error {
	themes, err := h.themes.List(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"themes": themes})
}

// PutTheme writes a theme record under its type tag
func (h *ProfileHandler) PutTheme(c *fiber.Ctx) error {
	var theme models.ThemeConfig
	if err := c.BodyParser(&theme); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid theme payload"})
	}
	if err := h.themes.Put(c.Context(), &theme); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(theme)
}

// ListSongs returns the music library
func (h *ProfileHandler) ListSongs(c *fiber.Ctx) error {
	songs, err := h.songs.List(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"songs": songs, "count": len(songs)})
}

// AddSong uploads a track with its audio payload
func (h *ProfileHandler) AddSong(c *fiber.Ctx) error {
	var body struct {
		Name     string `json:"name"`
		Lyrics   string `json:"lyrics"`
		Audio    string `json:"audio"` // base64
		MimeType string `json:"mime_type"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid song payload"})
	}
	audio, err := base64.StdEncoding.DecodeString(body.Audio)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid base64 audio data"})
	}
	song := models.Song{Name: body.Name, Lyrics: body.Lyrics}
	if err := h.songs.Add(c.Context(), &song, audio, body.MimeType); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(song)
}

// DeleteSong removes a track from the library
func (h *ProfileHandler) DeleteSong(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid song ID"})
	}
	if err := h.songs.Delete(c.Context(), int64(id)); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}
