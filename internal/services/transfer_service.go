package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"solace/internal/database"
)

// blobColumns names the columns that hold raw bytes. Their values travel as
// base64 strings inside a snapshot.
var blobColumns = map[string]map[string]bool{
	"file_store": {"bytes": true},
}

// Snapshot is a full portable dump of the store set. It carries the schema
// version it was taken at so imports can refuse payloads from the future.
type Snapshot struct {
	Version      int                  `json:"version"`
	ExportedAtMs int64                `json:"exportedAtMs"`
	Tables       map[string]TableDump `json:"tables"`
}

// TableDump is one table's rows, column order preserved.
type TableDump struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// TransferService exports and imports whole-store snapshots.
type TransferService struct {
	db *database.DB
}

// NewTransferService creates a new transfer service.
func NewTransferService(db *database.DB) *TransferService {
	return &TransferService{db: db}
}

// Export dumps every store table into a snapshot.
func (s *TransferService) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Version:      database.SchemaVersion,
		ExportedAtMs: time.Now().UnixMilli(),
		Tables:       make(map[string]TableDump, len(database.StoreTables)),
	}
	for _, table := range database.StoreTables {
		dump, err := s.dumpTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", table, err)
		}
		snap.Tables[table] = dump
	}
	log.Printf("✅ [TRANSFER] Exported %d tables at schema v%d", len(snap.Tables), snap.Version)
	return snap, nil
}

func (s *TransferService) dumpTable(ctx context.Context, table string) (TableDump, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+table)
	if err != nil {
		return TableDump{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return TableDump{}, err
	}
	dump := TableDump{Columns: cols, Rows: [][]any{}}
	blobs := blobColumns[table]

	for rows.Next() {
		scan := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range scan {
			ptrs[i] = &scan[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return TableDump{}, err
		}
		row := make([]any, len(cols))
		for i, v := range scan {
			if raw, ok := v.([]byte); ok {
				if blobs[cols[i]] {
					row[i] = base64.StdEncoding.EncodeToString(raw)
				} else {
					row[i] = string(raw)
				}
			} else {
				row[i] = v
			}
		}
		dump.Rows = append(dump.Rows, row)
	}
	return dump, rows.Err()
}

// Import replaces the entire store with the snapshot's contents. The whole
// operation runs in one transaction so a mid-import failure leaves the current
// data untouched. Snapshots taken at a newer schema version are refused.
func (s *TransferService) Import(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", database.ErrInvalidInput)
	}
	if snap.Version > database.SchemaVersion {
		return fmt.Errorf("%w: snapshot v%d is newer than schema v%d",
			database.ErrIncompatibleVersion, snap.Version, database.SchemaVersion)
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range database.StoreTables {
			dump, ok := snap.Tables[table]
			if !ok {
				continue
			}
			if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
			if err := insertDump(tx, table, dump); err != nil {
				return fmt.Errorf("import %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("✅ [TRANSFER] Imported snapshot v%d (%d tables)", snap.Version, len(snap.Tables))
	return nil
}

func insertDump(tx *sql.Tx, table string, dump TableDump) error {
	if len(dump.Rows) == 0 {
		return nil
	}
	if len(dump.Columns) == 0 {
		return fmt.Errorf("%w: no columns for %s", database.ErrInvalidInput, table)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(dump.Columns)), ", ")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		table, strings.Join(dump.Columns, ", "), placeholders)

	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	blobs := blobColumns[table]
	for _, row := range dump.Rows {
		if len(row) != len(dump.Columns) {
			return fmt.Errorf("%w: row width %d, want %d", database.ErrInvalidInput, len(row), len(dump.Columns))
		}
		args := make([]any, len(row))
		for i, v := range row {
			bound, err := bindValue(dump.Columns[i], v, blobs)
			if err != nil {
				return err
			}
			args[i] = bound
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return nil
}

// bindValue normalizes JSON-decoded values for SQLite binding. Numbers arrive
// as float64; integral ones are bound as int64 so rowid columns stay integers.
func bindValue(column string, v any, blobs map[string]bool) (any, error) {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) {
			return int64(val), nil
		}
		return val, nil
	case string:
		if blobs[column] {
			raw, err := base64.StdEncoding.DecodeString(val)
			if err != nil {
				return nil, fmt.Errorf("%w: column %s: %v", database.ErrInvalidInput, column, err)
			}
			return raw, nil
		}
		return val, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case nil:
		return nil, nil
	default:
		return val, nil
	}
}
