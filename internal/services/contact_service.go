package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"solace/internal/database"
	"solace/internal/filestore"
	"solace/internal/models"
)

// ContactService is the repository for contacts and their chat histories.
// All writes go through here; nothing else touches the contacts or messages
// tables.
type ContactService struct {
	db    *database.DB
	files *filestore.Service
}

// NewContactService creates a new contact service.
func NewContactService(db *database.DB, files *filestore.Service) *ContactService {
	return &ContactService{db: db, files: files}
}

// Get loads one contact. Chat history is loaded separately via Messages.
func (s *ContactService) Get(ctx context.Context, id string) (*models.Contact, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM contacts WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: contact %s", database.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load contact %s: %w", id, err)
	}

	var contact models.Contact
	if err := json.Unmarshal([]byte(doc), &contact); err != nil {
		return nil, fmt.Errorf("decode contact %s: %w", id, err)
	}
	return &contact, nil
}

// List returns all contacts in insertion order.
func (s *ContactService) List(ctx context.Context) ([]models.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM contacts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []models.Contact{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var contact models.Contact
		if err := json.Unmarshal([]byte(doc), &contact); err != nil {
			return nil, fmt.Errorf("decode contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}

// Upsert validates and writes a contact record. Group members must be
// existing private contacts.
func (s *ContactService) Upsert(ctx context.Context, contact *models.Contact) error {
	if err := contact.Validate(); err != nil {
		return fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
	}

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if contact.Kind == models.ContactGroup {
			for _, memberID := range contact.Members {
				var doc string
				err := tx.QueryRow(`SELECT doc FROM contacts WHERE id = ?`, memberID).Scan(&doc)
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("%w: group member %s does not exist", database.ErrInvalidInput, memberID)
				}
				if err != nil {
					return err
				}
				var member models.Contact
				if err := json.Unmarshal([]byte(doc), &member); err != nil {
					return err
				}
				if member.Kind != models.ContactPrivate {
					return fmt.Errorf("%w: group member %s must be a private contact", database.ErrInvalidInput, memberID)
				}
			}
		}

		doc, err := json.Marshal(contact)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO contacts (id, doc) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
		`, contact.ID, string(doc))
		return err
	})
}

// Delete removes a contact and its chat history. Moments and forum posts the
// contact authored stay on record; feeds filter them at render time.
func (s *ContactService) Delete(ctx context.Context, id string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.Exec(`DELETE FROM contacts WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return fmt.Errorf("%w: contact %s", database.ErrNotFound, id)
		}
		log.Printf("🗑️  [CONTACTS] Deleted contact %s", id)
		return nil
	})
}

// AppendMessage appends one message at the tail of a contact's history.
// Timestamps are clamped so the stored sequence is always non-decreasing;
// group messages must come from a member or the local user.
func (s *ContactService) AppendMessage(ctx context.Context, contactID string, msg *models.Message) (*models.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var doc string
		err := tx.QueryRow(`SELECT doc FROM contacts WHERE id = ?`, contactID).Scan(&doc)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: contact %s", database.ErrNotFound, contactID)
		}
		if err != nil {
			return err
		}
		var contact models.Contact
		if err := json.Unmarshal([]byte(doc), &contact); err != nil {
			return err
		}
		if !contact.AllowsSender(msg.SenderID) {
			return fmt.Errorf("%w: sender %s is not a member of group %s", database.ErrInvalidInput, msg.SenderID, contactID)
		}

		var lastTs sql.NullInt64
		if err := tx.QueryRow(
			`SELECT MAX(timestamp_ms) FROM messages WHERE contact_id = ?`, contactID,
		).Scan(&lastTs); err != nil {
			return err
		}
		if lastTs.Valid && msg.TimestampMs < lastTs.Int64 {
			msg.TimestampMs = lastTs.Int64
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		result, err := tx.Exec(
			`INSERT INTO messages (contact_id, doc, timestamp_ms) VALUES (?, ?, ?)`,
			contactID, string(payload), msg.TimestampMs)
		if err != nil {
			return err
		}
		msg.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Messages returns a contact's history in insertion order. limit <= 0 means
// the full history.
func (s *ContactService) Messages(ctx context.Context, contactID string, limit int) ([]models.Message, error) {
	query := `SELECT id, doc FROM messages WHERE contact_id = ? ORDER BY id`
	args := []interface{}{contactID}
	if limit > 0 {
		// Tail of the history: newest N, returned oldest-first.
		query = `SELECT id, doc FROM (
			SELECT id, doc FROM messages WHERE contact_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", contactID, err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var id int64
		var doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(doc), &msg); err != nil {
			return nil, fmt.Errorf("decode message %d: %w", id, err)
		}
		msg.ID = id
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// EditMessage rewrites a message's content in place and stamps the edit.
func (s *ContactService) EditMessage(ctx context.Context, contactID string, messageID int64, content string, editTimestampMs int64) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var doc string
		err := tx.QueryRow(
			`SELECT doc FROM messages WHERE id = ? AND contact_id = ?`, messageID, contactID,
		).Scan(&doc)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: message %d", database.ErrNotFound, messageID)
		}
		if err != nil {
			return err
		}

		var msg models.Message
		if err := json.Unmarshal([]byte(doc), &msg); err != nil {
			return err
		}
		msg.Content = content
		msg.Edited = true
		msg.EditTimestampMs = editTimestampMs
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE messages SET doc = ? WHERE id = ?`, string(payload), messageID)
		return err
	})
}

// SetAvatar stores avatar bytes in the file store and points the contact at
// the fresh blob. The legacy inline field is cleared.
func (s *ContactService) SetAvatar(ctx context.Context, contactID string, data []byte, mimeType string) (string, error) {
	contact, err := s.Get(ctx, contactID)
	if err != nil {
		return "", err
	}

	fileID, err := s.files.Put(ctx, models.DomainAvatar, contactID, data, mimeType)
	if err != nil {
		return "", err
	}

	contact.Avatar = ""
	contact.AvatarFileRef = models.FileRef{FileID: fileID}
	if err := s.Upsert(ctx, contact); err != nil {
		return "", err
	}
	return fileID, nil
}

// FileRefs collects every file ID referenced from contact records, for the
// compaction crawler.
func (s *ContactService) FileRefs(ctx context.Context) ([]string, error) {
	contacts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for i := range contacts {
		if !contacts[i].AvatarFileRef.IsZero() {
			ids = append(ids, contacts[i].AvatarFileRef.FileID)
		}
	}
	return ids, nil
}
