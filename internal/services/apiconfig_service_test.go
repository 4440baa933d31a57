package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"solace/internal/database"
	"solace/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize database: %v", err)
	}
	return db
}

func testConfig(id string, keys ...models.KeyEntry) *models.APIConfig {
	return &models.APIConfig{
		ID:                  id,
		Name:                "config " + id,
		BaseURL:             "https://api.example.com/v1",
		TimeoutMs:           30000,
		PrimaryModel:        "gpt-4o",
		ContextMessageCount: 40,
		APIKeys:             keys,
	}
}

func disabledKey(key string) models.KeyEntry {
	return models.KeyEntry{Key: key, Status: models.KeyDisabled}
}

func TestEnableDisablesEveryOtherKey(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	if err := svc.Upsert(ctx, testConfig("a", disabledKey("sk-a0"), disabledKey("sk-a1"))); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := svc.Upsert(ctx, testConfig("b", disabledKey("sk-b0"))); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	if err := svc.Enable(ctx, "a", 1); err != nil {
		t.Fatalf("enable a/1: %v", err)
	}
	if err := svc.Enable(ctx, "b", 0); err != nil {
		t.Fatalf("enable b/0: %v", err)
	}

	configs, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	enabled := 0
	for _, cfg := range configs {
		for i, entry := range cfg.APIKeys {
			if entry.Enabled {
				enabled++
				if cfg.ID != "b" || i != 0 {
					t.Errorf("enabled key is %s/%d, want b/0", cfg.ID, i)
				}
			}
		}
	}
	if enabled != 1 {
		t.Fatalf("enabled entries across all configs = %d, want 1", enabled)
	}
}

func TestEnableActivatesOwningConfig(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	if err := svc.Upsert(ctx, testConfig("cfgA", disabledKey("sk-a0"), disabledKey("sk-a1"))); err != nil {
		t.Fatalf("upsert cfgA: %v", err)
	}
	if err := svc.Upsert(ctx, testConfig("cfgB", disabledKey("sk-b0"), disabledKey("sk-b1"))); err != nil {
		t.Fatalf("upsert cfgB: %v", err)
	}

	if err := svc.Enable(ctx, "cfgA", 0); err != nil {
		t.Fatalf("enable cfgA/0: %v", err)
	}
	if err := svc.Enable(ctx, "cfgB", 1); err != nil {
		t.Fatalf("enable cfgB/1: %v", err)
	}

	// Enabling a key in another configuration moves active-ness with it, so
	// the next outbound call resolves the key that was just enabled.
	ref, err := svc.EnabledKey(ctx)
	if err != nil {
		t.Fatalf("EnabledKey: %v", err)
	}
	if ref.ConfigID != "cfgB" || ref.Index != 1 || ref.Key != "sk-b1" {
		t.Fatalf("EnabledKey = %s/%d key %q, want cfgB/1 sk-b1", ref.ConfigID, ref.Index, ref.Key)
	}

	active, err := svc.ActiveConfig(ctx)
	if err != nil {
		t.Fatalf("active config: %v", err)
	}
	if active.ID != "cfgB" {
		t.Errorf("active config = %s, want cfgB", active.ID)
	}
}

func TestEnabledKeyFollowsActiveConfig(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	if err := svc.Upsert(ctx, testConfig("a", disabledKey("sk-a0"))); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := svc.Upsert(ctx, testConfig("b", disabledKey("sk-b0"))); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	// Nothing enabled anywhere yet.
	if _, err := svc.EnabledKey(ctx); !errors.Is(err, ErrNoUsableKey) {
		t.Fatalf("EnabledKey with no enabled entry: err = %v, want ErrNoUsableKey", err)
	}

	if err := svc.Enable(ctx, "a", 0); err != nil {
		t.Fatalf("enable a/0: %v", err)
	}
	ref, err := svc.EnabledKey(ctx)
	if err != nil {
		t.Fatalf("EnabledKey: %v", err)
	}
	if ref.ConfigID != "a" || ref.Index != 0 || ref.Key != "sk-a0" {
		t.Fatalf("EnabledKey = %s/%d key %q, want a/0 sk-a0", ref.ConfigID, ref.Index, ref.Key)
	}

	// The enabled key lives in config a; switching the active config to b
	// leaves nothing usable there.
	if err := svc.SetActiveConfig(ctx, "b"); err != nil {
		t.Fatalf("set active b: %v", err)
	}
	if _, err := svc.EnabledKey(ctx); !errors.Is(err, ErrNoUsableKey) {
		t.Fatalf("EnabledKey on inactive pool: err = %v, want ErrNoUsableKey", err)
	}
}

func TestMarkFailedPromotesNextKey(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	if err := svc.Upsert(ctx, testConfig("a", disabledKey("sk-main"), disabledKey("sk-backup"))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.Enable(ctx, "a", 0); err != nil {
		t.Fatalf("enable: %v", err)
	}

	if err := svc.MarkFailed(ctx, "a", 0); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	cfg, err := svc.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.APIKeys[0].Status != models.KeyFailed || cfg.APIKeys[0].Enabled {
		t.Errorf("key 0 = %s enabled=%v, want failed/disabled", cfg.APIKeys[0].Status, cfg.APIKeys[0].Enabled)
	}
	if cfg.APIKeys[1].Status != models.KeyEnabled || !cfg.APIKeys[1].Enabled {
		t.Errorf("key 1 = %s enabled=%v, want enabled", cfg.APIKeys[1].Status, cfg.APIKeys[1].Enabled)
	}
	if cfg.Key != "sk-backup" {
		t.Errorf("cached key = %q, want sk-backup", cfg.Key)
	}
}

func TestMarkFailedWithoutPromotionCandidates(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	if err := svc.Upsert(ctx, testConfig("a", disabledKey("sk-only"))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.Enable(ctx, "a", 0); err != nil {
		t.Fatalf("enable: %v", err)
	}

	if err := svc.MarkFailed(ctx, "a", 0); !errors.Is(err, ErrNoUsableKey) {
		t.Fatalf("mark failed: err = %v, want ErrNoUsableKey", err)
	}

	cfg, err := svc.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.EnabledIndex() != -1 {
		t.Errorf("enabled index = %d, want -1", cfg.EnabledIndex())
	}
	if cfg.Key != "" {
		t.Errorf("cached key = %q, want empty", cfg.Key)
	}
}

func TestMarkFailedOnDisabledKeyDoesNotPromote(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	if err := svc.Upsert(ctx, testConfig("a", disabledKey("sk-0"), disabledKey("sk-1"), disabledKey("sk-2"))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.Enable(ctx, "a", 0); err != nil {
		t.Fatalf("enable: %v", err)
	}

	// Key 2 was never enabled; failing it must not touch key 0.
	if err := svc.MarkFailed(ctx, "a", 2); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	cfg, err := svc.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.EnabledIndex() != 0 {
		t.Errorf("enabled index = %d, want 0", cfg.EnabledIndex())
	}
	if cfg.APIKeys[2].Status != models.KeyFailed {
		t.Errorf("key 2 status = %s, want failed", cfg.APIKeys[2].Status)
	}
}

func TestRecordCallFingerprintGuard(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	if err := svc.Upsert(ctx, testConfig("a", disabledKey("sk-live"))); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	entry := &models.KeyEntry{Key: "sk-live"}
	if err := svc.RecordCall(ctx, "a", 0, entry.Fingerprint(), true); err != nil {
		t.Fatalf("record call: %v", err)
	}
	if err := svc.RecordCall(ctx, "a", 0, entry.Fingerprint(), false); err != nil {
		t.Fatalf("record call: %v", err)
	}

	stats, err := svc.Stats(ctx, "a", 0)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.RecentCalls != 2 || stats.RecentSuccesses != 1 {
		t.Errorf("stats = %d/%d, want 2 calls 1 success", stats.RecentCalls, stats.RecentSuccesses)
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("success rate = %v, want 0.5", stats.SuccessRate)
	}

	stale := &models.KeyEntry{Key: "sk-rotated-away"}
	if err := svc.RecordCall(ctx, "a", 0, stale.Fingerprint(), true); !errors.Is(err, ErrStaleKeyRow) {
		t.Fatalf("record call with stale fingerprint: err = %v, want ErrStaleKeyRow", err)
	}
}

func TestDeleteActiveConfigTransfersActive(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	// First upsert becomes active.
	if err := svc.Upsert(ctx, testConfig("a", disabledKey("sk-a"))); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := svc.Upsert(ctx, testConfig("b", disabledKey("sk-b"))); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	if err := svc.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete a: %v", err)
	}

	active, err := svc.ActiveConfig(ctx)
	if err != nil {
		t.Fatalf("active config: %v", err)
	}
	if active.ID != "b" {
		t.Errorf("active config = %s, want b", active.ID)
	}
}

func TestDeleteOnlyActiveConfigFails(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	if err := svc.Upsert(ctx, testConfig("a", disabledKey("sk-a"))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.Delete(ctx, "a"); !errors.Is(err, database.ErrInvalidInput) {
		t.Fatalf("delete only config: err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.Get(ctx, "a"); err != nil {
		t.Fatalf("config should survive failed delete: %v", err)
	}
}

func TestUpsertRejectsInconsistentKeyFlags(t *testing.T) {
	ctx := context.Background()
	svc := NewAPIConfigService(newTestDB(t), nil)

	cfg := testConfig("a", models.KeyEntry{Key: "sk-x", Enabled: true, Status: models.KeyDisabled})
	if err := svc.Upsert(ctx, cfg); !errors.Is(err, database.ErrInvalidInput) {
		t.Fatalf("upsert inconsistent key: err = %v, want ErrInvalidInput", err)
	}
}
