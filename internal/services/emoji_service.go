package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"solace/internal/database"
	"solace/internal/filestore"
	"solace/internal/models"
)

// EmojiService is the repository for emoji/sticker metadata. Tags are unique
// per user; chat history references them via [emoji:<tag>] and the image
// bytes live in the file store.
type EmojiService struct {
	db    *database.DB
	files *filestore.Service
}

// NewEmojiService creates a new emoji service.
func NewEmojiService(db *database.DB, files *filestore.Service) *EmojiService {
	return &EmojiService{db: db, files: files}
}

// Get loads one emoji record.
func (s *EmojiService) Get(ctx context.Context, id string) (*models.EmojiMeta, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM emojis WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: emoji %s", database.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load emoji %s: %w", id, err)
	}
	return decodeEmoji(doc)
}

// GetByTag resolves an emoji by its chat-history tag.
func (s *EmojiService) GetByTag(ctx context.Context, tag string) (*models.EmojiMeta, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM emojis WHERE tag = ?`, tag).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: emoji tag %q", database.ErrNotFound, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("load emoji tag %q: %w", tag, err)
	}
	return decodeEmoji(doc)
}

func decodeEmoji(doc string) (*models.EmojiMeta, error) {
	var emoji models.EmojiMeta
	if err := json.Unmarshal([]byte(doc), &emoji); err != nil {
		return nil, fmt.Errorf("decode emoji: %w", err)
	}
	return &emoji, nil
}

// List returns all emoji records in insertion order.
func (s *EmojiService) List(ctx context.Context) ([]models.EmojiMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM emojis ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list emojis: %w", err)
	}
	defer rows.Close()

	emojis := []models.EmojiMeta{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		emoji, err := decodeEmoji(doc)
		if err != nil {
			return nil, err
		}
		emojis = append(emojis, *emoji)
	}
	return emojis, rows.Err()
}

// Upsert validates and writes an emoji record. A tag already used by a
// different emoji is rejected.
func (s *EmojiService) Upsert(ctx context.Context, emoji *models.EmojiMeta) error {
	if err := emoji.Validate(); err != nil {
		return fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
	}

	doc, err := json.Marshal(emoji)
	if err != nil {
		return err
	}
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO emojis (id, tag, doc) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET tag = excluded.tag, doc = excluded.doc
		`, emoji.ID, emoji.Tag, string(doc))
		return err
	})
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: emoji tag %q is already taken", database.ErrInvalidInput, emoji.Tag)
	}
	return err
}

// Delete removes an emoji record. Its blob stays until compaction.
func (s *EmojiService) Delete(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM emojis WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: emoji %s", database.ErrNotFound, id)
		}
		return nil
	})
}

// SetImage stores the sticker bytes and points the record at the fresh blob.
func (s *EmojiService) SetImage(ctx context.Context, id string, data []byte, mimeType string) (string, error) {
	emoji, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	fileID, err := s.files.Put(ctx, models.DomainEmoji, emoji.Tag, data, mimeType)
	if err != nil {
		return "", err
	}

	emoji.URL = ""
	emoji.FileRef = models.FileRef{FileID: fileID}
	if err := s.Upsert(ctx, emoji); err != nil {
		return "", err
	}
	return fileID, nil
}

// FileRefs collects every file ID referenced from emoji records, for the
// compaction crawler.
func (s *EmojiService) FileRefs(ctx context.Context) ([]string, error) {
	emojis, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for i := range emojis {
		if !emojis[i].FileRef.IsZero() {
			ids = append(ids, emojis[i].FileRef.FileID)
		}
	}
	return ids, nil
}
