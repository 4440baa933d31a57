package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"solace/internal/database"
	"solace/internal/events"
	"solace/internal/models"
)

// APIConfigService is the repository for upstream endpoint configurations
// and the key pool over them. It owns the single-active-key invariant: at
// most one key entry across every configuration is enabled at any moment,
// enforced by read-modify-write transactions over the api_configs store,
// never by the UI.
type APIConfigService struct {
	db  *database.DB
	bus *events.Bus
}

// NewAPIConfigService creates a new config/key-pool service.
func NewAPIConfigService(db *database.DB, bus *events.Bus) *APIConfigService {
	return &APIConfigService{db: db, bus: bus}
}

func loadConfigTx(tx *sql.Tx, id string) (*models.APIConfig, error) {
	var doc string
	var isActive int
	err := tx.QueryRow(`SELECT doc, is_active FROM api_configs WHERE id = ?`, id).Scan(&doc, &isActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: config %s", database.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var cfg models.APIConfig
	if err := json.Unmarshal([]byte(doc), &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", id, err)
	}
	cfg.IsActive = isActive == 1
	return &cfg, nil
}

func saveConfigTx(tx *sql.Tx, cfg *models.APIConfig) error {
	cfg.RecomputeKeyCache()
	doc, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	active := 0
	if cfg.IsActive {
		active = 1
	}
	_, err = tx.Exec(`
		INSERT INTO api_configs (id, doc, is_active) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, is_active = excluded.is_active
	`, cfg.ID, string(doc), active)
	return err
}

func listConfigsTx(tx *sql.Tx) ([]models.APIConfig, error) {
	rows, err := tx.Query(`SELECT doc, is_active FROM api_configs ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []models.APIConfig{}
	for rows.Next() {
		var doc string
		var isActive int
		if err := rows.Scan(&doc, &isActive); err != nil {
			return nil, err
		}
		var cfg models.APIConfig
		if err := json.Unmarshal([]byte(doc), &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		cfg.IsActive = isActive == 1
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Get loads one configuration.
func (s *APIConfigService) Get(ctx context.Context, id string) (*models.APIConfig, error) {
	var cfg *models.APIConfig
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		cfg, err = loadConfigTx(tx, id)
		return err
	})
	return cfg, err
}

// List returns all configurations in insertion order.
func (s *APIConfigService) List(ctx context.Context) ([]models.APIConfig, error) {
	var configs []models.APIConfig
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		configs, err = listConfigsTx(tx)
		return err
	})
	return configs, err
}

// Upsert validates and writes a configuration. The first configuration ever
// written becomes the active one.
func (s *APIConfigService) Upsert(ctx context.Context, cfg *models.APIConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM api_configs WHERE id != ?`, cfg.ID).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			cfg.IsActive = true
		}
		return saveConfigTx(tx, cfg)
	})
}

// Delete removes a configuration. Deleting the active one transfers
// active-ness to the first remaining configuration in the same transaction;
// deleting the only configuration fails.
func (s *APIConfigService) Delete(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		cfg, err := loadConfigTx(tx, id)
		if err != nil {
			return err
		}

		if cfg.IsActive {
			configs, err := listConfigsTx(tx)
			if err != nil {
				return err
			}
			var successor *models.APIConfig
			for i := range configs {
				if configs[i].ID != id {
					successor = &configs[i]
					break
				}
			}
			if successor == nil {
				return fmt.Errorf("%w: cannot delete the only configuration while it is active", database.ErrInvalidInput)
			}
			successor.IsActive = true
			if err := saveConfigTx(tx, successor); err != nil {
				return err
			}
			log.Printf("🔑 [KEY-POOL] Active configuration transferred %s → %s", id, successor.ID)
		}

		_, err = tx.Exec(`DELETE FROM api_configs WHERE id = ?`, id)
		return err
	})
}

// ActiveConfig returns the configuration marked active.
func (s *APIConfigService) ActiveConfig(ctx context.Context) (*models.APIConfig, error) {
	var cfg *models.APIConfig
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var doc string
		err := tx.QueryRow(`SELECT doc FROM api_configs WHERE is_active = 1`).Scan(&doc)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: no active configuration", database.ErrNotFound)
		}
		if err != nil {
			return err
		}
		cfg = &models.APIConfig{}
		if err := json.Unmarshal([]byte(doc), cfg); err != nil {
			return err
		}
		cfg.IsActive = true
		return nil
	})
	return cfg, err
}

// SetActiveConfig marks one configuration active and all others inactive.
func (s *APIConfigService) SetActiveConfig(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadConfigTx(tx, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE api_configs SET is_active = 0 WHERE is_active = 1`); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE api_configs SET is_active = 1 WHERE id = ?`, id)
		return err
	})
}

// EnabledKey returns the (baseURL, key) to use for the next outbound call:
// the enabled entry of the active configuration. ErrNoUsableKey when nothing
// is enabled there.
func (s *APIConfigService) EnabledKey(ctx context.Context) (*models.ActiveKeyRef, error) {
	cfg, err := s.ActiveConfig(ctx)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNoUsableKey
		}
		return nil, err
	}

	idx := cfg.EnabledIndex()
	if idx < 0 {
		return nil, ErrNoUsableKey
	}
	return &models.ActiveKeyRef{
		Key:      cfg.APIKeys[idx].Key,
		ConfigID: cfg.ID,
		Index:    idx,
		BaseURL:  cfg.BaseURL,
	}, nil
}

// Enable turns one key entry on and, in the same transaction, every other
// entry in every configuration off. The owning configuration becomes the
// active one, so the enabled key is always the one outbound calls resolve.
func (s *APIConfigService) Enable(ctx context.Context, configID string, keyIndex int) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		configs, err := listConfigsTx(tx)
		if err != nil {
			return err
		}

		found := false
		for i := range configs {
			cfg := &configs[i]
			changed := false
			for j := range cfg.APIKeys {
				entry := &cfg.APIKeys[j]
				if cfg.ID == configID && j == keyIndex {
					found = true
					entry.Enabled = true
					entry.Status = models.KeyEnabled
					changed = true
					continue
				}
				if entry.Enabled {
					entry.Enabled = false
					entry.Status = models.KeyDisabled
					changed = true
				}
			}
			if cfg.ID == configID {
				if !cfg.IsActive {
					cfg.IsActive = true
					changed = true
				}
			} else if cfg.IsActive {
				cfg.IsActive = false
				changed = true
			}
			if changed {
				if err := saveConfigTx(tx, cfg); err != nil {
					return err
				}
			}
		}
		if !found {
			return fmt.Errorf("%w: key %d in config %s", database.ErrNotFound, keyIndex, configID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishKeyState("enabled", configID, keyIndex)
	return nil
}

// MarkFailed takes a key out of rotation. If it was the enabled key, the
// first non-failed entry of the same configuration (main entry first) is
// promoted; when none remains the configuration is left with no enabled key
// and ErrNoUsableKey is returned.
func (s *APIConfigService) MarkFailed(ctx context.Context, configID string, keyIndex int) error {
	promoted := -1
	var noUsable bool

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		cfg, err := loadConfigTx(tx, configID)
		if err != nil {
			return err
		}
		if keyIndex < 0 || keyIndex >= len(cfg.APIKeys) {
			return fmt.Errorf("%w: key %d in config %s", database.ErrNotFound, keyIndex, configID)
		}

		entry := &cfg.APIKeys[keyIndex]
		wasEnabled := entry.Enabled
		entry.Enabled = false
		entry.Status = models.KeyFailed

		if wasEnabled {
			for j := range cfg.APIKeys {
				if j != keyIndex && cfg.APIKeys[j].Status != models.KeyFailed {
					cfg.APIKeys[j].Enabled = true
					cfg.APIKeys[j].Status = models.KeyEnabled
					promoted = j
					break
				}
			}
			if promoted < 0 {
				noUsable = true
			}
		}
		return saveConfigTx(tx, cfg)
	})
	if err != nil {
		return err
	}

	if promoted >= 0 {
		log.Printf("🔑 [KEY-POOL] Key %d of config %s failed, promoted key %d", keyIndex, configID, promoted)
		s.publishKeyState("promoted", configID, promoted)
	} else {
		s.publishKeyState("failed", configID, keyIndex)
	}

	if noUsable {
		return ErrNoUsableKey
	}
	return nil
}

// RecordCall bumps the per-key counters after an outbound call. The
// fingerprint guards against racing a key edit: a mismatch means the row the
// caller saw is stale and nothing is recorded.
func (s *APIConfigService) RecordCall(ctx context.Context, configID string, keyIndex int, fingerprint string, success bool) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		cfg, err := loadConfigTx(tx, configID)
		if err != nil {
			return err
		}
		if keyIndex < 0 || keyIndex >= len(cfg.APIKeys) {
			return fmt.Errorf("%w: key %d in config %s", database.ErrNotFound, keyIndex, configID)
		}

		entry := &cfg.APIKeys[keyIndex]
		if fingerprint != "" && fingerprint != entry.Fingerprint() {
			return ErrStaleKeyRow
		}

		entry.Stats.RecentCalls++
		if success {
			entry.Stats.RecentSuccesses++
		}
		return saveConfigTx(tx, cfg)
	})
}

// KeyStatsView is the per-key statistics row surfaced to the UI.
type KeyStatsView struct {
	RecentCalls     int     `json:"recent_calls"`
	RecentSuccesses int     `json:"recent_successes"`
	SuccessRate     float64 `json:"success_rate"`
}

// Stats returns the rolling counters for one key.
func (s *APIConfigService) Stats(ctx context.Context, configID string, keyIndex int) (*KeyStatsView, error) {
	cfg, err := s.Get(ctx, configID)
	if err != nil {
		return nil, err
	}
	if keyIndex < 0 || keyIndex >= len(cfg.APIKeys) {
		return nil, fmt.Errorf("%w: key %d in config %s", database.ErrNotFound, keyIndex, configID)
	}

	stats := cfg.APIKeys[keyIndex].Stats
	view := &KeyStatsView{
		RecentCalls:     stats.RecentCalls,
		RecentSuccesses: stats.RecentSuccesses,
	}
	if stats.RecentCalls > 0 {
		view.SuccessRate = float64(stats.RecentSuccesses) / float64(stats.RecentCalls)
	}
	return view, nil
}

func (s *APIConfigService) publishKeyState(change, configID string, keyIndex int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.TopicKeyStateChanged, map[string]interface{}{
		"change":    change,
		"config_id": configID,
		"key_index": keyIndex,
	})
}
