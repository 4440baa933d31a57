package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"solace/internal/events"
)

// SchemaVersion is the schema version this build writes. Opening a database
// with a higher stored version fails with ErrIncompatibleVersion.
const SchemaVersion = 13

// DB wraps the embedded SQLite handle and owns schema upgrades.
type DB struct {
	*sql.DB
	bus  *events.Bus
	path string
}

var (
	sharedDB   *DB
	sharedErr  error
	sharedOnce sync.Once
)

// Open returns the process-wide database handle, opening and upgrading it on
// first call. Concurrent callers share the same handle; there is never a
// second concurrent open.
func Open(path string, bus *events.Bus) (*DB, error) {
	sharedOnce.Do(func() {
		sharedDB, sharedErr = New(path, bus)
		if sharedErr == nil {
			sharedErr = sharedDB.Initialize(context.Background())
		}
	})
	return sharedDB, sharedErr
}

// New opens a database handle without the singleton guard. Tests use this
// directly with temp paths.
func New(path string, bus *events.Bus) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// SQLite is single-writer; one connection keeps transaction semantics
	// predictable and avoids SQLITE_BUSY storms.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s failed: %v", ErrStorageUnavailable, pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	log.Printf("✅ [DB] SQLite database opened at %s", path)
	return &DB{DB: db, bus: bus, path: path}, nil
}

// Initialize upgrades the schema to SchemaVersion and publishes
// databaseReady. Re-running against a current database is a no-op (beyond
// the event).
func (db *DB) Initialize(ctx context.Context) error {
	stored, err := db.userVersion(ctx)
	if err != nil {
		return err
	}

	if stored > SchemaVersion {
		return fmt.Errorf("%w: stored=%d, code=%d", ErrIncompatibleVersion, stored, SchemaVersion)
	}

	if stored < SchemaVersion {
		log.Printf("📦 [DB] Upgrading schema from version %d to %d", stored, SchemaVersion)
		for v := stored + 1; v <= SchemaVersion; v++ {
			if err := db.applyMigration(ctx, v); err != nil {
				return fmt.Errorf("migration to version %d failed: %w", v, err)
			}
		}
		log.Printf("✅ [DB] Schema upgraded to version %d", SchemaVersion)
	}

	if db.bus != nil {
		db.bus.Publish(events.TopicDatabaseReady, map[string]interface{}{
			"version":  SchemaVersion,
			"upgraded": stored < SchemaVersion,
			"from":     stored,
			"ready_at": time.Now().UnixMilli(),
		})
	}
	return nil
}

// userVersion reads the stored schema version (PRAGMA user_version).
func (db *DB) userVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("%w: cannot read schema version: %v", ErrStorageUnavailable, err)
	}
	return v, nil
}

// applyMigration runs one schema step inside a transaction and bumps
// user_version. Steps use IF NOT EXISTS so a re-run is harmless.
func (db *DB) applyMigration(ctx context.Context, version int) error {
	stmts, ok := migrations[version]
	if !ok {
		// Versions with no schema change (data-only passes handled by the
		// migrator) still bump the counter.
		stmts = nil
	}

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
		return nil
	})
}

// WithTx runs fn inside a transaction: commit on nil, rollback on error.
// fn's own error passes through unchanged so domain sentinels survive;
// begin/commit failures carry ErrStorageAborted.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStorageAborted, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("⚠️  [DB] Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStorageAborted, err)
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
