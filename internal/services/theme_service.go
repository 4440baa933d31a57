package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"solace/internal/database"
	"solace/internal/models"
)

// ThemeService is the repository for theme and gradient records, keyed by
// their config type tag.
type ThemeService struct {
	db *database.DB
}

// NewThemeService creates a new theme service.
func NewThemeService(db *database.DB) *ThemeService {
	return &ThemeService{db: db}
}

// Get loads the record for one config type tag.
func (s *ThemeService) Get(ctx context.Context, configType string) (*models.ThemeConfig, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM theme_config WHERE type = ?`, configType).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: theme config %q", database.ErrNotFound, configType)
	}
	if err != nil {
		return nil, fmt.Errorf("load theme config %q: %w", configType, err)
	}

	var theme models.ThemeConfig
	if err := json.Unmarshal([]byte(doc), &theme); err != nil {
		return nil, fmt.Errorf("decode theme config %q: %w", configType, err)
	}
	return &theme, nil
}

// Put writes a theme record under its type tag.
func (s *ThemeService) Put(ctx context.Context, theme *models.ThemeConfig) error {
	if theme.Type == "" {
		return fmt.Errorf("%w: theme config type is required", database.ErrInvalidInput)
	}
	doc, err := json.Marshal(theme)
	if err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO theme_config (type, doc) VALUES (?, ?)
			ON CONFLICT(type) DO UPDATE SET doc = excluded.doc
		`, theme.Type, string(doc))
		return err
	})
}

// List returns every stored theme record.
func (s *ThemeService) List(ctx context.Context) ([]models.ThemeConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM theme_config ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("list theme configs: %w", err)
	}
	defer rows.Close()

	themes := []models.ThemeConfig{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var theme models.ThemeConfig
		if err := json.Unmarshal([]byte(doc), &theme); err != nil {
			return nil, fmt.Errorf("decode theme config: %w", err)
		}
		themes = append(themes, theme)
	}
	return themes, rows.Err()
}

// Delete removes a theme record.
func (s *ThemeService) Delete(ctx context.Context, configType string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM theme_config WHERE type = ?`, configType)
		return err
	})
}
