package filestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"solace/internal/database"
	"solace/internal/models"
)

// Transient display URLs are valid for the process lifetime in the source
// design; the registry uses a long TTL so idle tabs keep working.
const (
	urlTTL          = 12 * time.Hour
	urlCleanupEvery = 30 * time.Minute
	voiceHotTTL     = 30 * time.Minute
	voiceHotCleanup = 10 * time.Minute
)

// URLPathPrefix is where the HTTP surface serves transient blob URLs.
const URLPathPrefix = "/api/files/t/"

// Service persists immutable blobs and translates symbolic (domain,key)
// references into them. Entities never hold bytes; they hold FileRefs
// resolved through this service.
type Service struct {
	db    *database.DB
	urls  *gocache.Cache // token → fileID
	voice *gocache.Cache // cache key → fileID (hot layer over voice_cache)
}

// NewService creates a file store over the shared database handle.
func NewService(db *database.DB) *Service {
	return &Service{
		db:    db,
		urls:  gocache.New(urlTTL, urlCleanupEvery),
		voice: gocache.New(voiceHotTTL, voiceHotCleanup),
	}
}

// Put stores a new blob and points (domain,key) at it, atomically. Replacing
// a key writes a fresh blob and repoints the mapping; the previous blob
// stays until Compact.
func (s *Service) Put(ctx context.Context, domain models.FileDomain, key string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty blob for %s/%s", database.ErrInvalidInput, domain, key)
	}

	fileID := uuid.New().String()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertBlob(tx, fileID, domain, data, mimeType, ""); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO file_refs (domain, ref_key, file_id) VALUES (?, ?, ?)
			ON CONFLICT(domain, ref_key) DO UPDATE SET file_id = excluded.file_id
		`, string(domain), key, fileID)
		return err
	})
	if err != nil {
		return "", err
	}

	log.Printf("📁 [FILE-STORE] Stored %s blob %s for key %q (%d bytes)", domain, fileID, key, len(data))
	return fileID, nil
}

// PutRef points (domain,key) at an existing blob without writing bytes.
func (s *Service) PutRef(ctx context.Context, domain models.FileDomain, key, fileID string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO file_refs (domain, ref_key, file_id) VALUES (?, ?, ?)
			ON CONFLICT(domain, ref_key) DO UPDATE SET file_id = excluded.file_id
		`, string(domain), key, fileID)
		return err
	})
}

// PutBlob stores a standalone blob with no (domain,key) mapping. Used for
// moment images and cached voice clips, which are referenced from entity
// records instead.
func (s *Service) PutBlob(ctx context.Context, domain models.FileDomain, data []byte, mimeType, originalName string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty blob", database.ErrInvalidInput)
	}

	fileID := uuid.New().String()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return insertBlob(tx, fileID, domain, data, mimeType, originalName)
	})
	if err != nil {
		return "", err
	}
	return fileID, nil
}

func insertBlob(tx *sql.Tx, fileID string, domain models.FileDomain, data []byte, mimeType, originalName string) error {
	_, err := tx.Exec(`
		INSERT INTO file_store (file_id, mime_type, bytes, original_name, domain, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fileID, mimeType, data, originalName, string(domain), time.Now().UnixMilli())
	return err
}

// GetByID loads a blob. Returns database.ErrNotFound for unknown ids.
func (s *Service) GetByID(ctx context.Context, fileID string) (*models.FileBlob, error) {
	blob := &models.FileBlob{FileID: fileID}
	var createdAt int64
	var domain string
	err := s.db.QueryRowContext(ctx, `
		SELECT mime_type, bytes, original_name, domain, created_at
		FROM file_store WHERE file_id = ?
	`, fileID).Scan(&blob.MimeType, &blob.Bytes, &blob.OriginalName, &domain, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: blob %s", database.ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", fileID, err)
	}
	blob.Domain = models.FileDomain(domain)
	blob.CreatedAt = time.UnixMilli(createdAt)
	return blob, nil
}

// GetURL registers a transient display URL for a blob. The caller releases
// it on teardown with ReleaseURL; URLs are unique per process lifetime.
func (s *Service) GetURL(fileID string) string {
	token := uuid.New().String()
	s.urls.Set(token, fileID, gocache.DefaultExpiration)
	return URLPathPrefix + token
}

// ResolveURL maps a transient URL token back to its file ID.
func (s *Service) ResolveURL(token string) (string, bool) {
	v, ok := s.urls.Get(token)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// ReleaseURL invalidates a transient URL issued by GetURL.
func (s *Service) ReleaseURL(url string) {
	if len(url) > len(URLPathPrefix) && url[:len(URLPathPrefix)] == URLPathPrefix {
		s.urls.Delete(url[len(URLPathPrefix):])
	}
}

// KeyedFile is the result of a (domain,key) lookup.
type KeyedFile struct {
	FileID string `json:"file_id"`
	URL    string `json:"url"`
}

// GetByKey resolves a (domain,key) mapping to its current blob. Returns
// database.ErrNotFound when the key has no mapping.
func (s *Service) GetByKey(ctx context.Context, domain models.FileDomain, key string) (*KeyedFile, error) {
	var fileID string
	err := s.db.QueryRowContext(ctx,
		`SELECT file_id FROM file_refs WHERE domain = ? AND ref_key = ?`,
		string(domain), key).Scan(&fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", database.ErrNotFound, domain, key)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s/%s: %w", domain, key, err)
	}
	return &KeyedFile{FileID: fileID, URL: s.GetURL(fileID)}, nil
}

// PutMoment stores a multi-image set for one moment and returns the file ids
// in input order.
func (s *Service) PutMoment(ctx context.Context, momentID string, images [][]byte, mimeType string) ([]string, error) {
	fileIDs := make([]string, 0, len(images))
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for i, data := range images {
			if len(data) == 0 {
				return fmt.Errorf("%w: empty image %d for moment %s", database.ErrInvalidInput, i, momentID)
			}
			fileID := uuid.New().String()
			if err := insertBlob(tx, fileID, models.DomainMoment, data, mimeType, fmt.Sprintf("%s-%d", momentID, i)); err != nil {
				return err
			}
			fileIDs = append(fileIDs, fileID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fileIDs, nil
}

// voiceCacheKey is the content address for a TTS clip.
func voiceCacheKey(text, voiceID string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + voiceID))
	return hex.EncodeToString(sum[:])
}

// VoiceCacheLookup returns the cached clip's file ID for (text, voiceID), or
// "" on a miss.
func (s *Service) VoiceCacheLookup(ctx context.Context, text, voiceID string) (string, error) {
	key := voiceCacheKey(text, voiceID)

	if v, ok := s.voice.Get(key); ok {
		return v.(string), nil
	}

	var fileID string
	err := s.db.QueryRowContext(ctx,
		`SELECT file_id FROM voice_cache WHERE cache_key = ?`, key).Scan(&fileID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("voice cache lookup: %w", err)
	}

	s.voice.Set(key, fileID, gocache.DefaultExpiration)
	return fileID, nil
}

// VoiceCacheStore persists a fresh TTS clip under its content address.
func (s *Service) VoiceCacheStore(ctx context.Context, text, voiceID string, audio []byte, mimeType string) (string, error) {
	key := voiceCacheKey(text, voiceID)

	fileID := uuid.New().String()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertBlob(tx, fileID, models.DomainVoice, audio, mimeType, ""); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO voice_cache (cache_key, file_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT(cache_key) DO UPDATE SET file_id = excluded.file_id, created_at = excluded.created_at
		`, key, fileID, time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return "", err
	}

	s.voice.Set(key, fileID, gocache.DefaultExpiration)
	log.Printf("🔊 [FILE-STORE] Cached voice clip %s (voice=%s, %d bytes)", fileID, voiceID, len(audio))
	return fileID, nil
}

// Compact deletes blobs referenced neither by a (domain,key) mapping, the
// voice cache, nor any entity FileRef. The caller supplies entity-held ids
// collected by crawling the repositories.
func (s *Service) Compact(ctx context.Context, entityRefs []string) (int, error) {
	referenced := make(map[string]struct{}, len(entityRefs))
	for _, id := range entityRefs {
		if id != "" {
			referenced[id] = struct{}{}
		}
	}

	collect := func(query string) error {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			referenced[id] = struct{}{}
		}
		return rows.Err()
	}
	if err := collect(`SELECT file_id FROM file_refs`); err != nil {
		return 0, fmt.Errorf("compact: collect refs: %w", err)
	}
	if err := collect(`SELECT file_id FROM voice_cache`); err != nil {
		return 0, fmt.Errorf("compact: collect voice refs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT file_id FROM file_store`)
	if err != nil {
		return 0, fmt.Errorf("compact: scan blobs: %w", err)
	}
	var orphans []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := referenced[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(orphans) == 0 {
		return 0, nil
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range orphans {
			if _, err := tx.Exec(`DELETE FROM file_store WHERE file_id = ?`, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("🗑️  [FILE-STORE] Compacted %d orphaned blobs", len(orphans))
	return len(orphans), nil
}
