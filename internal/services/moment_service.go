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

// MomentService is the repository for the moments feed and the forum feed.
// Records outlive their authors: deleting a contact keeps its moments and
// posts on record, and readers filter them for display instead.
type MomentService struct {
	db    *database.DB
	files *filestore.Service
}

// NewMomentService creates a new moment/forum service.
func NewMomentService(db *database.DB, files *filestore.Service) *MomentService {
	return &MomentService{db: db, files: files}
}

// GetMoment loads one moment.
func (s *MomentService) GetMoment(ctx context.Context, id string) (*models.Moment, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM moments WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: moment %s", database.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load moment %s: %w", id, err)
	}

	var moment models.Moment
	if err := json.Unmarshal([]byte(doc), &moment); err != nil {
		return nil, fmt.Errorf("decode moment %s: %w", id, err)
	}
	return &moment, nil
}

// ListMoments returns the feed newest-first. With visibleOnly set, moments
// authored by deleted contacts are filtered out (the records themselves stay
// for audit and export).
func (s *MomentService) ListMoments(ctx context.Context, visibleOnly bool) ([]models.Moment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM moments ORDER BY created_at_ms DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list moments: %w", err)
	}
	defer rows.Close()

	var authors map[string]struct{}
	if visibleOnly {
		authors, err = s.contactIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	moments := []models.Moment{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var moment models.Moment
		if err := json.Unmarshal([]byte(doc), &moment); err != nil {
			return nil, fmt.Errorf("decode moment: %w", err)
		}
		if visibleOnly && moment.AuthorID != models.UserSenderID {
			if _, ok := authors[moment.AuthorID]; !ok {
				continue
			}
		}
		moments = append(moments, moment)
	}
	return moments, rows.Err()
}

func (s *MomentService) contactIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM contacts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// UpsertMoment validates and writes a moment.
func (s *MomentService) UpsertMoment(ctx context.Context, moment *models.Moment) error {
	if err := moment.Validate(); err != nil {
		return fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
	}

	doc, err := json.Marshal(moment)
	if err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO moments (id, doc, created_at_ms) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, created_at_ms = excluded.created_at_ms
		`, moment.ID, string(doc), moment.CreatedAtMs)
		return err
	})
}

// AttachMomentImages stores an image set for a moment and rewrites the
// moment's refs to the fresh blobs, in input order.
func (s *MomentService) AttachMomentImages(ctx context.Context, momentID string, images [][]byte, mimeType string) ([]string, error) {
	moment, err := s.GetMoment(ctx, momentID)
	if err != nil {
		return nil, err
	}

	fileIDs, err := s.files.PutMoment(ctx, momentID, images, mimeType)
	if err != nil {
		return nil, err
	}

	moment.ImageData = nil
	moment.ImageFileRefs = make([]models.FileRef, len(fileIDs))
	for i, id := range fileIDs {
		moment.ImageFileRefs[i] = models.FileRef{FileID: id}
	}
	if err := s.UpsertMoment(ctx, moment); err != nil {
		return nil, err
	}
	return fileIDs, nil
}

// AddMomentComment appends a comment to a moment.
func (s *MomentService) AddMomentComment(ctx context.Context, momentID string, comment models.Comment) error {
	moment, err := s.GetMoment(ctx, momentID)
	if err != nil {
		return err
	}
	moment.Comments = append(moment.Comments, comment)
	return s.UpsertMoment(ctx, moment)
}

// DeleteMoment removes a moment record.
func (s *MomentService) DeleteMoment(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM moments WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: moment %s", database.ErrNotFound, id)
		}
		return nil
	})
}

// CreatePost appends a forum post and returns its store-assigned ID.
func (s *MomentService) CreatePost(ctx context.Context, post *models.ForumPost) (int64, error) {
	if err := post.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		doc, err := json.Marshal(post)
		if err != nil {
			return err
		}
		result, err := tx.Exec(`INSERT INTO weibo_posts (doc) VALUES (?)`, string(doc))
		if err != nil {
			return err
		}
		post.ID, err = result.LastInsertId()
		if err != nil {
			return err
		}
		// Rewrite with the assigned ID so the doc is self-contained.
		doc, err = json.Marshal(post)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE weibo_posts SET doc = ? WHERE id = ?`, string(doc), post.ID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return post.ID, nil
}

// GetPost loads one forum post.
func (s *MomentService) GetPost(ctx context.Context, id int64) (*models.ForumPost, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM weibo_posts WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: post %d", database.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load post %d: %w", id, err)
	}

	var post models.ForumPost
	if err := json.Unmarshal([]byte(doc), &post); err != nil {
		return nil, fmt.Errorf("decode post %d: %w", id, err)
	}
	post.ID = id
	return &post, nil
}

// ListPosts returns forum posts in insertion order.
func (s *MomentService) ListPosts(ctx context.Context) ([]models.ForumPost, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc FROM weibo_posts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.ForumPost{}
	for rows.Next() {
		var id int64
		var doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		var post models.ForumPost
		if err := json.Unmarshal([]byte(doc), &post); err != nil {
			return nil, fmt.Errorf("decode post %d: %w", id, err)
		}
		post.ID = id
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// AddPostComment appends a comment to a forum post.
func (s *MomentService) AddPostComment(ctx context.Context, postID int64, comment models.Comment) error {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	post.Comments = append(post.Comments, comment)

	doc, err := json.Marshal(post)
	if err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE weibo_posts SET doc = ? WHERE id = ?`, string(doc), postID)
		return err
	})
}

// DeletePost removes a forum post.
func (s *MomentService) DeletePost(ctx context.Context, id int64) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM weibo_posts WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: post %d", database.ErrNotFound, id)
		}
		return nil
	})
}

// FileRefs collects every file ID referenced from moments, for the
// compaction crawler.
func (s *MomentService) FileRefs(ctx context.Context) ([]string, error) {
	moments, err := s.ListMoments(ctx, false)
	if err != nil {
		return nil, err
	}
	var ids []string
	for i := range moments {
		for _, ref := range moments[i].ImageFileRefs {
			if !ref.IsZero() {
				ids = append(ids, ref.FileID)
			}
		}
	}
	return ids, nil
}
