package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"solace/internal/events"
)

func openTestDB(t *testing.T, bus *events.Bus) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"), bus)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitializeColdStart(t *testing.T) {
	db := openTestDB(t, nil)
	ctx := context.Background()

	if err := db.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	version, err := db.userVersion(ctx)
	if err != nil {
		t.Fatalf("userVersion: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("user_version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range StoreTables {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after cold start: %v", table, err)
		}
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	db := openTestDB(t, nil)
	ctx := context.Background()

	if err := db.Initialize(ctx); err != nil {
		t.Fatalf("first Initialize: %v", err)
	}
	if err := db.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
}

func TestInitializePublishesDatabaseReady(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe(events.TopicDatabaseReady, "test", 4)

	db := openTestDB(t, bus)
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	select {
	case ev := <-ch:
		payload := ev.Payload.(map[string]interface{})
		if payload["version"] != SchemaVersion {
			t.Errorf("version = %v, want %d", payload["version"], SchemaVersion)
		}
		if payload["upgraded"] != true {
			t.Errorf("upgraded = %v, want true on cold start", payload["upgraded"])
		}
	default:
		t.Fatal("databaseReady was not published")
	}

	// Exactly one event per Initialize.
	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event: %+v", ev)
	default:
	}
}

func TestInitializeRefusesNewerSchema(t *testing.T) {
	db := openTestDB(t, nil)
	ctx := context.Background()

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion+5)); err != nil {
		t.Fatalf("set user_version: %v", err)
	}

	err := db.Initialize(ctx)
	if !errors.Is(err, ErrIncompatibleVersion) {
		t.Fatalf("Initialize = %v, want ErrIncompatibleVersion", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t, nil)
	ctx := context.Background()
	if err := db.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	sentinel := errors.New("boom")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO contacts (id, doc) VALUES ('c1', '{}')`); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTx = %v, want sentinel to pass through", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("contacts count = %d after rollback, want 0", count)
	}
}
