package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"solace/internal/database"
	"solace/internal/models"
)

// SummarizeThreshold is how many user turns accumulate before the chat
// adapter is told to produce a fresh memory summary.
const SummarizeThreshold = 6

// MemoryService is the repository for the durable semantic memory the LLM
// adapter works from: a global bullet list, a per-contact bullet list, and a
// per-contact counter of conversation turns since the last summarization.
//
// Every stored line matches `- <non-empty>`; writes that would violate the
// shape are rejected so the store never emits a malformed line.
type MemoryService struct {
	db *database.DB
}

// NewMemoryService creates a new memory service.
func NewMemoryService(db *database.DB) *MemoryService {
	return &MemoryService{db: db}
}

// normalizeLines splits a bullet-list blob, strips trailing whitespace, and
// rejects lines that are not `- <non-empty>`. Blank lines are dropped.
func normalizeLines(text string) ([]string, error) {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "- ") || strings.TrimSpace(line[2:]) == "" {
			return nil, fmt.Errorf("%w: memory line %q must be a '- ' bullet", database.ErrInvalidInput, line)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *MemoryService) get(ctx context.Context, scope string) (*models.MemoryEntry, error) {
	entry := &models.MemoryEntry{Scope: scope}
	var lines string
	err := s.db.QueryRowContext(ctx,
		`SELECT lines, conversation_counter FROM memory_store WHERE scope = ?`, scope,
	).Scan(&lines, &entry.ConversationCounter)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, nil // empty memory, zero counter
	}
	if err != nil {
		return nil, fmt.Errorf("load memory %s: %w", scope, err)
	}
	if lines != "" {
		entry.Lines = strings.Split(lines, "\n")
	}
	return entry, nil
}

func (s *MemoryService) putLines(ctx context.Context, scope string, lines []string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO memory_store (scope, lines) VALUES (?, ?)
			ON CONFLICT(scope) DO UPDATE SET lines = excluded.lines
		`, scope, strings.Join(lines, "\n"))
		return err
	})
}

// GetGlobal returns the global memory bullet list.
func (s *MemoryService) GetGlobal(ctx context.Context) ([]string, error) {
	entry, err := s.get(ctx, models.MemoryScopeGlobal)
	if err != nil {
		return nil, err
	}
	return entry.Lines, nil
}

// PutGlobal replaces the global memory with a normalized bullet list.
func (s *MemoryService) PutGlobal(ctx context.Context, text string) error {
	lines, err := normalizeLines(text)
	if err != nil {
		return err
	}
	return s.putLines(ctx, models.MemoryScopeGlobal, lines)
}

// GetContact returns a contact's memory bullet list.
func (s *MemoryService) GetContact(ctx context.Context, contactID string) ([]string, error) {
	entry, err := s.get(ctx, models.ContactMemoryScope(contactID))
	if err != nil {
		return nil, err
	}
	return entry.Lines, nil
}

// PutContact replaces a contact's memory with a normalized bullet list.
func (s *MemoryService) PutContact(ctx context.Context, contactID, text string) error {
	lines, err := normalizeLines(text)
	if err != nil {
		return err
	}
	return s.putLines(ctx, models.ContactMemoryScope(contactID), lines)
}

// AppendContact adds lines to a contact's memory, preserving what is there.
func (s *MemoryService) AppendContact(ctx context.Context, contactID, text string) error {
	fresh, err := normalizeLines(text)
	if err != nil {
		return err
	}
	if len(fresh) == 0 {
		return nil
	}

	scope := models.ContactMemoryScope(contactID)
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRow(`SELECT lines FROM memory_store WHERE scope = ?`, scope).Scan(&existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		combined := strings.Join(fresh, "\n")
		if existing != "" {
			combined = existing + "\n" + combined
		}
		_, err = tx.Exec(`
			INSERT INTO memory_store (scope, lines) VALUES (?, ?)
			ON CONFLICT(scope) DO UPDATE SET lines = excluded.lines
		`, scope, combined)
		return err
	})
}

// BumpConversationCounter advances a contact's turn counter and returns the
// new value.
func (s *MemoryService) BumpConversationCounter(ctx context.Context, contactID string, by int) (int, error) {
	if by <= 0 {
		by = 1
	}
	scope := models.ContactMemoryScope(contactID)

	var value int
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO memory_store (scope, lines, conversation_counter) VALUES (?, '', ?)
			ON CONFLICT(scope) DO UPDATE SET conversation_counter = conversation_counter + ?
		`, scope, by, by); err != nil {
			return err
		}
		return tx.QueryRow(
			`SELECT conversation_counter FROM memory_store WHERE scope = ?`, scope,
		).Scan(&value)
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// ShouldSummarize reports whether enough turns have accumulated for the chat
// adapter to produce a fresh summary. Resetting after the summarization is
// the caller's job.
func (s *MemoryService) ShouldSummarize(ctx context.Context, contactID string) (bool, error) {
	entry, err := s.get(ctx, models.ContactMemoryScope(contactID))
	if err != nil {
		return false, err
	}
	return entry.ConversationCounter >= SummarizeThreshold, nil
}

// ResetCounter zeroes a contact's turn counter after a summarization.
func (s *MemoryService) ResetCounter(ctx context.Context, contactID string) error {
	scope := models.ContactMemoryScope(contactID)
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE memory_store SET conversation_counter = 0 WHERE scope = ?`, scope)
		return err
	})
}

// ClearContact removes a contact's memory lines and counter together.
func (s *MemoryService) ClearContact(ctx context.Context, contactID string) error {
	scope := models.ContactMemoryScope(contactID)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM memory_store WHERE scope = ?`, scope)
		return err
	})
	if err == nil {
		log.Printf("🧠 [MEMORY] Cleared memory for contact %s", contactID)
	}
	return err
}
