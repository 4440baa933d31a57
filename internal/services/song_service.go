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

// SongService is the repository for the music library. Audio bytes live in
// the file store; the songs table keeps metadata plus a file reference.
type SongService struct {
	db    *database.DB
	files *filestore.Service
}

// NewSongService creates a new song service.
func NewSongService(db *database.DB, files *filestore.Service) *SongService {
	return &SongService{db: db, files: files}
}

// Get loads one song's metadata.
func (s *SongService) Get(ctx context.Context, id int64) (*models.Song, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM songs WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: song %d", database.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load song %d: %w", id, err)
	}

	var song models.Song
	if err := json.Unmarshal([]byte(doc), &song); err != nil {
		return nil, fmt.Errorf("decode song %d: %w", id, err)
	}
	return &song, nil
}

// List returns the library in insertion order.
func (s *SongService) List(ctx context.Context) ([]models.Song, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM songs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	songs := []models.Song{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var song models.Song
		if err := json.Unmarshal([]byte(doc), &song); err != nil {
			return nil, fmt.Errorf("decode song: %w", err)
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

// Add stores a new song. The audio payload is written to the file store and
// the assigned row id is set on the song before the metadata row is written.
func (s *SongService) Add(ctx context.Context, song *models.Song, audio []byte, mimeType string) error {
	if song.Name == "" {
		return fmt.Errorf("%w: song name is required", database.ErrInvalidInput)
	}
	if len(audio) == 0 {
		return fmt.Errorf("%w: song audio payload is empty", database.ErrInvalidInput)
	}

	fileID, err := s.files.PutBlob(ctx, models.DomainSong, audio, mimeType, song.Name)
	if err != nil {
		return fmt.Errorf("store song audio: %w", err)
	}
	song.FileRef = models.FileRef{FileID: fileID}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO songs (doc) VALUES ('{}')`)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		song.ID = id
		doc, err := json.Marshal(song)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE songs SET doc = ? WHERE id = ?`, string(doc), id)
		return err
	})
}

// UpdateLyrics rewrites one song's lyrics field in place.
func (s *SongService) UpdateLyrics(ctx context.Context, id int64, lyrics string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var doc string
		err := tx.QueryRow(`SELECT doc FROM songs WHERE id = ?`, id).Scan(&doc)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: song %d", database.ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		var song models.Song
		if err := json.Unmarshal([]byte(doc), &song); err != nil {
			return fmt.Errorf("decode song %d: %w", id, err)
		}
		song.Lyrics = lyrics
		updated, err := json.Marshal(&song)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE songs SET doc = ? WHERE id = ?`, string(updated), id)
		return err
	})
}

// Delete removes a song's metadata row. The orphaned audio blob is reclaimed
// by the next compaction run.
func (s *SongService) Delete(ctx context.Context, id int64) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM songs WHERE id = ?`, id)
		return err
	})
}

// FileRefs reports every file id referenced by the music library.
func (s *SongService) FileRefs(ctx context.Context) ([]string, error) {
	songs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	refs := []string{}
	for i := range songs {
		if !songs[i].FileRef.IsZero() {
			refs = append(refs, songs[i].FileRef.FileID)
		}
	}
	return refs, nil
}
