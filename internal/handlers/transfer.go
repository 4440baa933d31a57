package handlers

import (
	"github.com/gofiber/fiber/v2"

	"solace/internal/migrate"
	"solace/internal/services"
)

// TransferHandler handles whole-store export/import and legacy migration
type TransferHandler struct {
	transfer *services.TransferService
	migrator *migrate.Migrator
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(transfer *services.TransferService, migrator *migrate.Migrator) *TransferHandler {
	return &TransferHandler{transfer: transfer, migrator: migrator}
}

// Export downloads the whole store as a versioned JSON snapshot
func (h *TransferHandler) Export(c *fiber.Ctx) error {
	snap, err := h.transfer.Export(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	c.Set("Content-Disposition", `attachment; filename="solace-export.json"`)
	return c.JSON(snap)
}

// Import replaces the whole store with an uploaded snapshot
func (h *TransferHandler) Import(c *fiber.Ctx) error {
	var snap services.Snapshot
	if err := c.BodyParser(&snap); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid snapshot payload"})
	}
	if err := h.transfer.Import(c.Context(), &snap); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"imported": true, "version": snap.Version})
}

// MigrationEstimate counts legacy inline payloads per domain
func (h *TransferHandler) MigrationEstimate(c *fiber.Ctx) error {
	counts, err := h.migrator.Estimate(c.Context())
	if err != nil {
		return respondErr(c, err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return c.JSON(fiber.Map{"domains": counts, "total": total})
}

// RunMigration converts every legacy inline payload into file-store blobs.
// Progress is published on the event stream; the reply carries the summary.
func (h *TransferHandler) RunMigration(c *fiber.Ctx) error {
	summary, err := h.migrator.MigrateAll(c.Context(), nil)
	if err != nil {
		return respondErr(c, err)
	}
	status := fiber.StatusOK
	if summary.Partial() {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(summary)
}
