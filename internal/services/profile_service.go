package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"solace/internal/database"
	"solace/internal/filestore"
	"solace/internal/models"
)

// Fixed singleton row ids, carried over from the deployed store layout.
const (
	profileRowID     = "profile"
	backgroundsRowID = "backgroundsMap"
	hashtagRowID     = "cache"
)

// ProfileService is the repository for the singleton records: the user
// profile, the per-contact backgrounds map, and the hashtag cache.
type ProfileService struct {
	db    *database.DB
	files *filestore.Service
}

// NewProfileService creates a new profile service.
func NewProfileService(db *database.DB, files *filestore.Service) *ProfileService {
	return &ProfileService{db: db, files: files}
}

func (s *ProfileService) getSingleton(ctx context.Context, table, id string, out interface{}) (bool, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, table), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s/%s: %w", table, id, err)
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", table, id, err)
	}
	return true, nil
}

func (s *ProfileService) putSingleton(ctx context.Context, table, id string, value interface{}) error {
	doc, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(fmt.Sprintf(`
			INSERT INTO %s (id, doc) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
		`, table), id, string(doc))
		return err
	})
}

// GetProfile returns the user profile, empty if never written.
func (s *ProfileService) GetProfile(ctx context.Context) (*models.UserProfile, error) {
	var profile models.UserProfile
	if _, err := s.getSingleton(ctx, "user_profile", profileRowID, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// PutProfile replaces the user profile.
func (s *ProfileService) PutProfile(ctx context.Context, profile *models.UserProfile) error {
	return s.putSingleton(ctx, "user_profile", profileRowID, profile)
}

// SetProfileAvatar stores avatar bytes and points the profile at them.
func (s *ProfileService) SetProfileAvatar(ctx context.Context, data []byte, mimeType string) (string, error) {
	profile, err := s.GetProfile(ctx)
	if err != nil {
		return "", err
	}

	fileID, err := s.files.Put(ctx, models.DomainAvatar, profileRowID, data, mimeType)
	if err != nil {
		return "", err
	}

	profile.Avatar = ""
	profile.AvatarFileRef = models.FileRef{FileID: fileID}
	if err := s.PutProfile(ctx, profile); err != nil {
		return "", err
	}
	return fileID, nil
}

// GetBackgrounds returns the contact → background mapping.
func (s *ProfileService) GetBackgrounds(ctx context.Context) (models.BackgroundsMap, error) {
	backgrounds := models.BackgroundsMap{}
	if _, err := s.getSingleton(ctx, "backgrounds", backgroundsRowID, &backgrounds); err != nil {
		return nil, err
	}
	return backgrounds, nil
}

// PutBackgrounds replaces the backgrounds mapping.
func (s *ProfileService) PutBackgrounds(ctx context.Context, backgrounds models.BackgroundsMap) error {
	return s.putSingleton(ctx, "backgrounds", backgroundsRowID, backgrounds)
}

// SetBackground stores chat background bytes for one contact.
func (s *ProfileService) SetBackground(ctx context.Context, contactID string, data []byte, mimeType string) (string, error) {
	backgrounds, err := s.GetBackgrounds(ctx)
	if err != nil {
		return "", err
	}

	fileID, err := s.files.Put(ctx, models.DomainBackground, contactID, data, mimeType)
	if err != nil {
		return "", err
	}

	backgrounds[contactID] = models.BackgroundEntry{FileRef: models.FileRef{FileID: fileID}}
	if err := s.PutBackgrounds(ctx, backgrounds); err != nil {
		return "", err
	}
	return fileID, nil
}

// GetHashtags returns the per-contact hashtag cache.
func (s *ProfileService) GetHashtags(ctx context.Context) (map[string]string, error) {
	tags := map[string]string{}
	if _, err := s.getSingleton(ctx, "hashtag_cache", hashtagRowID, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// PutHashtags replaces the hashtag cache.
func (s *ProfileService) PutHashtags(ctx context.Context, tags map[string]string) error {
	return s.putSingleton(ctx, "hashtag_cache", hashtagRowID, tags)
}

// FileRefs collects file ids referenced from the profile and backgrounds,
// for the compaction crawler.
func (s *ProfileService) FileRefs(ctx context.Context) ([]string, error) {
	var ids []string

	profile, err := s.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	if !profile.AvatarFileRef.IsZero() {
		ids = append(ids, profile.AvatarFileRef.FileID)
	}
	if !profile.BannerFileRef.IsZero() {
		ids = append(ids, profile.BannerFileRef.FileID)
	}

	backgrounds, err := s.GetBackgrounds(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range backgrounds {
		if !entry.FileRef.IsZero() {
			ids = append(ids, entry.FileRef.FileID)
		}
	}
	return ids, nil
}
