package models

import "fmt"

// Comment is one reply under a moment or forum post.
type Comment struct {
	AuthorID    string `json:"author_id"`
	Content     string `json:"content"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Moment is an authored feed entry. Images are file-store references or an
// external URL; deleting the authoring contact keeps the moment on record,
// readers filter at render time.
type Moment struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"author_id"`
	Body          string    `json:"body"`
	ImageFileRefs []FileRef `json:"image_file_refs,omitempty"`
	ImageData     []string  `json:"image_data,omitempty"` // legacy inline data URLs, cleared by migration
	ImageURL      string    `json:"image_url,omitempty"`
	CreatedAtMs   int64     `json:"created_at_ms"`
	Comments      []Comment `json:"comments,omitempty"`
}

// Validate checks the minimal shape of a moment.
func (m *Moment) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("moment ID is required")
	}
	if m.AuthorID == "" {
		return fmt.Errorf("moment author is required")
	}
	return nil
}

// ForumPost is an entry in the forum feed. IDs are store-assigned
// (autoincrement).
type ForumPost struct {
	ID          int64     `json:"id,omitempty"`
	AuthorID    string    `json:"author_id"`
	Title       string    `json:"title,omitempty"`
	Body        string    `json:"body"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAtMs int64     `json:"created_at_ms"`
	Comments    []Comment `json:"comments,omitempty"`
}

// Validate checks the minimal shape of a forum post.
func (p *ForumPost) Validate() error {
	if p.AuthorID == "" {
		return fmt.Errorf("post author is required")
	}
	if p.Body == "" {
		return fmt.Errorf("post body is required")
	}
	return nil
}
