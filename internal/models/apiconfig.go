package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SyncWithPrimary is the sentinel secondary-model value meaning "use the
// primary model".
const SyncWithPrimary = "SYNC_WITH_PRIMARY"

// KeyStatus is the lifecycle state of one API key entry.
type KeyStatus string

const (
	KeyEnabled  KeyStatus = "enabled"
	KeyDisabled KeyStatus = "disabled"
	KeyFailed   KeyStatus = "failed"
)

// KeyStats holds the rolling call counters for one key.
type KeyStats struct {
	RecentCalls     int `json:"recent_calls"`
	RecentSuccesses int `json:"recent_successes"`
}

// KeyEntry is one API key inside a configuration's pool. Index 0 of the pool
// is the "main" entry. Status and Enabled are kept consistent by the key
// pool: status=enabled iff enabled=true, and failed implies disabled.
type KeyEntry struct {
	Key     string    `json:"key"`
	Label   string    `json:"label,omitempty"`
	Enabled bool      `json:"enabled"`
	Status  KeyStatus `json:"status"`
	Stats   KeyStats  `json:"stats"`
}

// Fingerprint returns a short stable identifier for the key material,
// used to guard counter updates against stale UI rows.
func (e *KeyEntry) Fingerprint() string {
	sum := sha256.Sum256([]byte(e.Key))
	return hex.EncodeToString(sum[:8])
}

// APIConfig is one upstream endpoint configuration. The apiKeys array is the
// source of truth for the enabled key; the root Key field is a cached
// convenience recomputed whenever the pool changes.
type APIConfig struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	BaseURL             string     `json:"base_url"`
	Key                 string     `json:"key,omitempty"` // cached: the currently enabled key, if any
	TimeoutMs           int        `json:"timeout_ms"`
	PrimaryModel        string     `json:"primary_model"`
	SecondaryModel      string     `json:"secondary_model"`
	ContextMessageCount int        `json:"context_message_count"`
	APIKeys             []KeyEntry `json:"api_keys"`
	IsActive            bool       `json:"is_active,omitempty"`
}

// Validate enforces the structural invariants of a configuration.
func (c *APIConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("config ID is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("config base URL is required")
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutMs)
	}
	if c.ContextMessageCount < 1 || c.ContextMessageCount > 200 {
		return fmt.Errorf("context message count must be in [1,200], got %d", c.ContextMessageCount)
	}
	if len(c.APIKeys) < 1 {
		return fmt.Errorf("config requires at least one API key")
	}
	for i := range c.APIKeys {
		entry := &c.APIKeys[i]
		switch entry.Status {
		case KeyEnabled:
			if !entry.Enabled {
				return fmt.Errorf("key %d: status enabled but flag disabled", i)
			}
		case KeyDisabled, KeyFailed:
			if entry.Enabled {
				return fmt.Errorf("key %d: status %s but flag enabled", i, entry.Status)
			}
		default:
			return fmt.Errorf("key %d: unknown status %q", i, entry.Status)
		}
	}
	return nil
}

// EnabledIndex returns the index of the enabled key entry, or -1.
func (c *APIConfig) EnabledIndex() int {
	for i := range c.APIKeys {
		if c.APIKeys[i].Enabled {
			return i
		}
	}
	return -1
}

// RecomputeKeyCache refreshes the cached root Key field from the pool.
func (c *APIConfig) RecomputeKeyCache() {
	if i := c.EnabledIndex(); i >= 0 {
		c.Key = c.APIKeys[i].Key
	} else {
		c.Key = ""
	}
}

// ResolvedSecondaryModel returns the secondary model, honoring the
// SYNC_WITH_PRIMARY sentinel.
func (c *APIConfig) ResolvedSecondaryModel() string {
	if c.SecondaryModel == "" || c.SecondaryModel == SyncWithPrimary {
		return c.PrimaryModel
	}
	return c.SecondaryModel
}

// ActiveKeyRef identifies the currently enabled key for outbound calls.
type ActiveKeyRef struct {
	Key      string `json:"-"`
	ConfigID string `json:"config_id"`
	Index    int    `json:"index"`
	BaseURL  string `json:"base_url"`
}
