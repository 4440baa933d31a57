package handlers

import (
	"github.com/gofiber/fiber/v2"

	"solace/internal/llm"
	"solace/internal/models"
	"solace/internal/services"
)

// APIConfigHandler handles provider config and key pool requests
type APIConfigHandler struct {
	pool *services.APIConfigService
	llm  *llm.Client
}

// NewAPIConfigHandler creates a new API config handler
func NewAPIConfigHandler(pool *services.APIConfigService, llmClient *llm.Client) *APIConfigHandler {
	return &APIConfigHandler{pool: pool, llm: llmClient}
}

// publicConfig strips key material before a config leaves the process.
type publicConfig struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	BaseURL             string `json:"base_url"`
	TimeoutMs           int    `json:"timeout_ms"`
	PrimaryModel        string `json:"primary_model"`
	SecondaryModel      string `json:"secondary_model"`
	ContextMessageCount int    `json:"context_message_count"`
	IsActive            bool   `json:"is_active"`
	KeyCount            int    `json:"key_count"`
	EnabledKeyIndex     int    `json:"enabled_key_index"`
}

func toPublic(cfg *models.APIConfig) publicConfig {
	return publicConfig{
		ID:                  cfg.ID,
		Name:                cfg.Name,
		BaseURL:             cfg.BaseURL,
		TimeoutMs:           cfg.TimeoutMs,
		PrimaryModel:        cfg.PrimaryModel,
		SecondaryModel:      cfg.SecondaryModel,
		ContextMessageCount: cfg.ContextMessageCount,
		IsActive:            cfg.IsActive,
		KeyCount:            len(cfg.APIKeys),
		EnabledKeyIndex:     cfg.EnabledIndex(),
	}
}

// List returns all configs without key material
func (h *APIConfigHandler) List(c *fiber.Ctx) error {
	configs, err := h.pool.List(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	public := make([]publicConfig, len(configs))
	for i := range configs {
		public[i] = toPublic(&configs[i])
	}
	return c.JSON(fiber.Map{"configs": public, "count": len(public)})
}

// Get returns one config without key material
func (h *APIConfigHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.pool.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(toPublic(cfg))
}

// Upsert creates or replaces a config, keys included
func (h *APIConfigHandler) Upsert(c *fiber.Ctx) error {
	var cfg models.APIConfig
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid config payload"})
	}
	if err := h.pool.Upsert(c.Context(), &cfg); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(toPublic(&cfg))
}

// Delete removes a config
func (h *APIConfigHandler) Delete(c *fiber.Ctx) error {
	if err := h.pool.Delete(c.Context(), c.Params("id")); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// SetActive switches the active config
func (h *APIConfigHandler) SetActive(c *fiber.Ctx) error {
	if err := h.pool.SetActiveConfig(c.Context(), c.Params("id")); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"active": c.Params("id")})
}

// EnableKey enables one key, disabling every other key across all configs
func (h *APIConfigHandler) EnableKey(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid key index"})
	}
	if err := h.pool.Enable(c.Context(), c.Params("id"), index); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"enabled": true})
}

// MarkKeyFailed flags a key as failed, promoting a sibling if it was enabled
func (h *APIConfigHandler) MarkKeyFailed(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid key index"})
	}
	if err := h.pool.MarkFailed(c.Context(), c.Params("id"), index); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"failed": true})
}

// KeyStats returns a key's rolling call counters
func (h *APIConfigHandler) KeyStats(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid key index"})
	}
	stats, err := h.pool.Stats(c.Context(), c.Params("id"), index)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(stats)
}

// TestConnection probes the active provider with the enabled key
func (h *APIConfigHandler) TestConnection(c *fiber.Ctx) error {
	if err := h.llm.TestConnection(c.Context()); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}
