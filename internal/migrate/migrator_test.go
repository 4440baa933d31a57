package migrate

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"solace/internal/database"
	"solace/internal/filestore"
	"solace/internal/models"
)

func newTestMigrator(t *testing.T) (*Migrator, *database.DB, *filestore.Service) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize database: %v", err)
	}
	files := filestore.NewService(db)
	return New(db, files, nil), db, files
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func seedDoc(t *testing.T, db *database.DB, table, id string, v any) {
	t.Helper()
	doc, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s/%s: %v", table, id, err)
	}
	err = db.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO `+table+` (id, doc) VALUES (?, ?)`, id, string(doc))
		return err
	})
	if err != nil {
		t.Fatalf("seed %s/%s: %v", table, id, err)
	}
}

// seedEmoji inserts an emoji record; the emojis table also carries the tag as
// its own column.
func seedEmoji(t *testing.T, db *database.DB, e *models.EmojiMeta) {
	t.Helper()
	doc, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal emoji %s: %v", e.ID, err)
	}
	err = db.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO emojis (id, tag, doc) VALUES (?, ?, ?)`, e.ID, e.Tag, string(doc))
		return err
	})
	if err != nil {
		t.Fatalf("seed emoji %s: %v", e.ID, err)
	}
}

func loadDoc(t *testing.T, db *database.DB, table, id string, v any) {
	t.Helper()
	var doc string
	err := db.QueryRowContext(context.Background(),
		`SELECT doc FROM `+table+` WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		t.Fatalf("load %s/%s: %v", table, id, err)
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		t.Fatalf("decode %s/%s: %v", table, id, err)
	}
}

func TestMigrateContactAvatar(t *testing.T) {
	ctx := context.Background()
	m, db, files := newTestMigrator(t)

	avatarBytes := []byte{0x89, 0x50, 0x4e, 0x47, 0x01}
	seedDoc(t, db, "contacts", "mika", &models.Contact{
		ID: "mika", Kind: models.ContactPrivate, Name: "Mika",
		Avatar: dataURL("image/png", avatarBytes),
	})
	// Already-converted records are not counted as work.
	seedDoc(t, db, "contacts", "rin", &models.Contact{
		ID: "rin", Kind: models.ContactPrivate, Name: "Rin",
		AvatarFileRef: models.FileRef{FileID: "existing"},
	})

	counts, err := m.Estimate(ctx)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if counts[DomainContactAvatars] != 1 {
		t.Errorf("estimate contact_avatars = %d, want 1", counts[DomainContactAvatars])
	}

	summary, err := m.MigrateAll(ctx, nil)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if summary.Migrated != 1 || summary.Partial() {
		t.Fatalf("summary = %+v, want 1 migrated and no failures", summary)
	}

	var contact models.Contact
	loadDoc(t, db, "contacts", "mika", &contact)
	if contact.Avatar != "" {
		t.Errorf("inline avatar not cleared: %q", contact.Avatar)
	}
	if contact.AvatarFileRef.IsZero() {
		t.Fatal("avatar file ref not set")
	}

	blob, err := files.GetByID(ctx, contact.AvatarFileRef.FileID)
	if err != nil {
		t.Fatalf("load migrated blob: %v", err)
	}
	if string(blob.Bytes) != string(avatarBytes) {
		t.Error("migrated blob bytes do not match the inline payload")
	}
	if blob.MimeType != "image/png" {
		t.Errorf("migrated mime = %q, want image/png", blob.MimeType)
	}
}

func TestMigrateAllIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, db, _ := newTestMigrator(t)

	seedDoc(t, db, "contacts", "mika", &models.Contact{
		ID: "mika", Kind: models.ContactPrivate, Name: "Mika",
		Avatar: dataURL("image/png", []byte{1, 2, 3}),
	})
	seedEmoji(t, db, &models.EmojiMeta{
		ID: "emoji-1", Tag: "happy_cat", URL: dataURL("image/gif", []byte{4, 5, 6}),
	})

	first, err := m.MigrateAll(ctx, nil)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Migrated != 2 {
		t.Fatalf("first run migrated = %d, want 2", first.Migrated)
	}

	// A fresh migrator sees nothing left to do, only converted records.
	second, err := New(db, filestore.NewService(db), nil).MigrateAll(ctx, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Migrated != 0 || second.Partial() {
		t.Fatalf("second run = %+v, want nothing migrated", second)
	}
	if second.Skipped != 2 {
		t.Errorf("second run skipped = %d, want 2 converted records", second.Skipped)
	}
}

func TestMigrateEmojisDedupesIdenticalBytes(t *testing.T) {
	ctx := context.Background()
	m, db, _ := newTestMigrator(t)

	shared := []byte{9, 9, 9, 9}
	seedEmoji(t, db, &models.EmojiMeta{
		ID: "emoji-1", Tag: "cat_a", URL: dataURL("image/gif", shared),
	})
	seedEmoji(t, db, &models.EmojiMeta{
		ID: "emoji-2", Tag: "cat_b", URL: dataURL("image/gif", shared),
	})

	summary, err := m.MigrateAll(ctx, nil)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if summary.Migrated != 2 {
		t.Fatalf("migrated = %d, want 2", summary.Migrated)
	}

	var a, b models.EmojiMeta
	loadDoc(t, db, "emojis", "emoji-1", &a)
	loadDoc(t, db, "emojis", "emoji-2", &b)
	if a.FileRef.IsZero() || b.FileRef.IsZero() {
		t.Fatal("emoji file refs not set")
	}
	if a.FileRef.FileID != b.FileRef.FileID {
		t.Errorf("identical payloads stored twice: %s vs %s", a.FileRef.FileID, b.FileRef.FileID)
	}

	var blobs int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_store`).Scan(&blobs); err != nil {
		t.Fatalf("count blobs: %v", err)
	}
	if blobs != 1 {
		t.Errorf("blob count = %d, want 1", blobs)
	}
}

func TestMigrateOrphanEmojiImages(t *testing.T) {
	ctx := context.Background()
	m, db, _ := newTestMigrator(t)

	payload := dataURL("image/png", []byte{7, 7, 7})
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO emoji_images (tag, data) VALUES (?, ?)`, "lonely", payload)
		return err
	})
	if err != nil {
		t.Fatalf("seed emoji_images: %v", err)
	}

	summary, err := m.MigrateAll(ctx, nil)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if summary.Migrated != 1 {
		t.Fatalf("migrated = %d, want 1", summary.Migrated)
	}

	var emoji models.EmojiMeta
	loadDoc(t, db, "emojis", "emoji-lonely", &emoji)
	if emoji.Tag != "lonely" || emoji.FileRef.IsZero() {
		t.Errorf("synthesized emoji = %+v", emoji)
	}

	var remaining int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emoji_images`).Scan(&remaining); err != nil {
		t.Fatalf("count emoji_images: %v", err)
	}
	if remaining != 0 {
		t.Errorf("emoji_images rows left = %d, want 0", remaining)
	}
}

func TestMigrateChatEmojiReusesLibrarySticker(t *testing.T) {
	ctx := context.Background()
	m, db, _ := newTestMigrator(t)

	sticker := []byte{3, 1, 4, 1, 5}
	seedEmoji(t, db, &models.EmojiMeta{
		ID: "emoji-1", Tag: "pi_face", URL: dataURL("image/gif", sticker),
	})
	seedDoc(t, db, "contacts", "mika", &models.Contact{
		ID: "mika", Kind: models.ContactPrivate, Name: "Mika",
	})

	msg := models.Message{
		Role: models.RoleAssistant, Type: models.MessageEmoji,
		Content: dataURL("image/gif", sticker), TimestampMs: 1000, SenderID: "mika",
	}
	doc, _ := json.Marshal(&msg)
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO messages (contact_id, doc, timestamp_ms) VALUES (?, ?, ?)`,
			"mika", string(doc), msg.TimestampMs)
		return err
	})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}

	summary, err := m.MigrateAll(ctx, nil)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// One emoji record plus one chat message.
	if summary.Migrated != 2 || summary.Partial() {
		t.Fatalf("summary = %+v, want 2 migrated", summary)
	}

	var rewritten string
	if err := db.QueryRowContext(ctx, `SELECT doc FROM messages`).Scan(&rewritten); err != nil {
		t.Fatalf("load message: %v", err)
	}
	var got models.Message
	if err := json.Unmarshal([]byte(rewritten), &got); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.Content != models.EmojiRef("pi_face") {
		t.Errorf("message content = %q, want %q", got.Content, models.EmojiRef("pi_face"))
	}
}

func TestMigrateChatEmojiSynthesizesUnknownSticker(t *testing.T) {
	ctx := context.Background()
	m, db, _ := newTestMigrator(t)

	seedDoc(t, db, "contacts", "mika", &models.Contact{
		ID: "mika", Kind: models.ContactPrivate, Name: "Mika",
	})
	msg := models.Message{
		Role: models.RoleUser, Type: models.MessageEmoji,
		Content: dataURL("image/png", []byte{42, 42}), TimestampMs: 1000, SenderID: "user",
	}
	doc, _ := json.Marshal(&msg)
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO messages (contact_id, doc, timestamp_ms) VALUES (?, ?, ?)`,
			"mika", string(doc), msg.TimestampMs)
		return err
	})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}

	summary, err := m.MigrateAll(ctx, nil)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if summary.Migrated != 1 || summary.Partial() {
		t.Fatalf("summary = %+v, want 1 migrated", summary)
	}

	var rewritten string
	if err := db.QueryRowContext(ctx, `SELECT doc FROM messages`).Scan(&rewritten); err != nil {
		t.Fatalf("load message: %v", err)
	}
	var got models.Message
	if err := json.Unmarshal([]byte(rewritten), &got); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	tag := got.EmojiTag()
	if !strings.HasPrefix(tag, "migrated-") {
		t.Fatalf("rewritten tag = %q, want migrated-<hash> shape", tag)
	}

	// The synthetic sticker joined the library.
	var emoji models.EmojiMeta
	loadDoc(t, db, "emojis", "emoji-"+tag, &emoji)
	if emoji.Tag != tag || emoji.FileRef.IsZero() {
		t.Errorf("synthetic emoji = %+v", emoji)
	}
}

func TestMigrateCollectsFailuresWithoutAborting(t *testing.T) {
	ctx := context.Background()
	m, db, _ := newTestMigrator(t)

	seedDoc(t, db, "contacts", "broken", &models.Contact{
		ID: "broken", Kind: models.ContactPrivate, Name: "Broken",
		Avatar: "data:image/png;base64,%%%not-base64%%%",
	})
	seedDoc(t, db, "contacts", "fine", &models.Contact{
		ID: "fine", Kind: models.ContactPrivate, Name: "Fine",
		Avatar: dataURL("image/png", []byte{1}),
	})

	summary, err := m.MigrateAll(ctx, nil)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if summary.Migrated != 1 {
		t.Errorf("migrated = %d, want 1", summary.Migrated)
	}
	if !summary.Partial() || len(summary.Failures) != 1 {
		t.Fatalf("failures = %+v, want exactly one", summary.Failures)
	}
	if summary.Failures[0].Domain != DomainContactAvatars || summary.Failures[0].Item != "broken" {
		t.Errorf("failure = %+v", summary.Failures[0])
	}

	// The broken record is left intact for a retry.
	var contact models.Contact
	loadDoc(t, db, "contacts", "broken", &contact)
	if contact.Avatar == "" {
		t.Error("failed record was modified")
	}
}

func TestParseDataURL(t *testing.T) {
	mime, data, ok := parseDataURL(dataURL("image/jpeg", []byte("abc")))
	if !ok || mime != "image/jpeg" || string(data) != "abc" {
		t.Errorf("parse = %q %q %v", mime, data, ok)
	}

	for _, bad := range []string{
		"",
		"https://example.com/a.png",
		"data:image/png,no-base64-marker",
		"data:image/png;base64,",
		"data:image/png;base64,!!!",
	} {
		if _, _, ok := parseDataURL(bad); ok {
			t.Errorf("parseDataURL(%q) accepted", bad)
		}
	}
}
