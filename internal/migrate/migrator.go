package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"solace/internal/database"
	"solace/internal/events"
	"solace/internal/filestore"
	"solace/internal/models"
	"solace/internal/services"
)

// Migration domains, reported in progress callbacks and events.
const (
	DomainContactAvatars = "contact_avatars"
	DomainProfile        = "profile"
	DomainBackgrounds    = "backgrounds"
	DomainEmojis         = "emojis"
	DomainMoments        = "moments"
	DomainChatEmojis     = "chat_emojis"
)

// allDomains is the fixed migration order. Emojis run before chat history so
// inline sticker bytes in messages can dedupe against the emoji library.
var allDomains = []string{
	DomainContactAvatars,
	DomainProfile,
	DomainBackgrounds,
	DomainEmojis,
	DomainMoments,
	DomainChatEmojis,
}

// Progress describes one migration step for UI reporting.
type Progress struct {
	Domain      string `json:"domain"`
	CurrentItem string `json:"currentItem"`
	Current     int    `json:"current"`
	Total       int    `json:"total"`
}

// ProgressFunc receives per-record progress during MigrateAll.
type ProgressFunc func(Progress)

// Failure records one record the migration could not convert. The record is
// left untouched so a later run can retry it.
type Failure struct {
	Domain string `json:"domain"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// Summary is the outcome of a full migration pass. Skipped counts records
// already in converted form (a file reference and no inline data), which is
// what an idempotent re-run sees.
type Summary struct {
	Migrated int       `json:"migrated"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures,omitempty"`
}

// Partial reports whether some records failed while others converted.
func (s *Summary) Partial() bool { return len(s.Failures) > 0 }

// Migrator drains legacy inline base64 payloads out of entity records and
// into the file store, leaving file references behind. Every step is
// idempotent: records already holding a FileRef and no inline data are
// skipped, so an interrupted run can simply be repeated.
type Migrator struct {
	db    *database.DB
	files *filestore.Service
	bus   *events.Bus
	log   *logrus.Entry

	// emoji bytes hash → (tag, fileID), for exact-byte dedup across the
	// emoji library and chat history.
	byHash map[string]emojiRef
}

type emojiRef struct {
	tag    string
	fileID string
}

// New creates a migrator over the shared database handle.
func New(db *database.DB, files *filestore.Service, bus *events.Bus) *Migrator {
	return &Migrator{
		db:     db,
		files:  files,
		bus:    bus,
		log:    logrus.WithField("component", "migrator"),
		byHash: make(map[string]emojiRef),
	}
}

// Estimate counts legacy records per domain without converting anything.
func (m *Migrator) Estimate(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(allDomains))

	contacts, _, err := m.legacyContacts(ctx)
	if err != nil {
		return nil, err
	}
	counts[DomainContactAvatars] = len(contacts)

	profile, backgrounds, err := m.legacyProfileWork(ctx)
	if err != nil {
		return nil, err
	}
	counts[DomainProfile] = profile
	counts[DomainBackgrounds] = len(backgrounds)

	emojis, orphanImages, _, err := m.legacyEmojis(ctx)
	if err != nil {
		return nil, err
	}
	counts[DomainEmojis] = len(emojis) + len(orphanImages)

	moments, _, err := m.legacyMoments(ctx)
	if err != nil {
		return nil, err
	}
	counts[DomainMoments] = len(moments)

	chat, _, err := m.legacyChatEmojis(ctx)
	if err != nil {
		return nil, err
	}
	counts[DomainChatEmojis] = len(chat)

	return counts, nil
}

// MigrateAll runs every domain in order. Per-record failures are collected
// into the summary rather than aborting the pass; only storage-level errors
// abort.
func (m *Migrator) MigrateAll(ctx context.Context, progress ProgressFunc) (*Summary, error) {
	summary := &Summary{}
	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
		if m.bus != nil {
			m.bus.Publish(events.TopicMigrationProgress, p)
		}
	}

	steps := []struct {
		domain string
		run    func(context.Context, *Summary, func(Progress)) error
	}{
		{DomainContactAvatars, m.migrateContactAvatars},
		{DomainProfile, m.migrateProfile},
		{DomainBackgrounds, m.migrateBackgrounds},
		{DomainEmojis, m.migrateEmojis},
		{DomainMoments, m.migrateMoments},
		{DomainChatEmojis, m.migrateChatEmojis},
	}
	for _, step := range steps {
		if err := step.run(ctx, summary, report); err != nil {
			return summary, fmt.Errorf("migrate %s: %w", step.domain, err)
		}
	}

	m.log.WithFields(logrus.Fields{
		"migrated": summary.Migrated,
		"skipped":  summary.Skipped,
		"failed":   len(summary.Failures),
	}).Info("Legacy data migration finished")
	return summary, nil
}

// parseDataURL splits a "data:<mime>;base64,<payload>" string.
func parseDataURL(s string) (mime string, data []byte, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, false
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return "", nil, false
	}
	header := s[len("data:"):comma]
	if !strings.HasSuffix(header, ";base64") {
		return "", nil, false
	}
	mime = strings.TrimSuffix(header, ";base64")
	raw, err := base64.StdEncoding.DecodeString(s[comma+1:])
	if err != nil || len(raw) == 0 {
		return "", nil, false
	}
	return mime, raw, true
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// --- contacts ---

func (m *Migrator) legacyContacts(ctx context.Context) (map[string]models.Contact, int, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, doc FROM contacts`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := map[string]models.Contact{}
	skipped := 0
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, 0, err
		}
		var c models.Contact
		if err := json.Unmarshal([]byte(doc), &c); err != nil {
			continue
		}
		if c.Avatar != "" {
			out[id] = c
		} else if !c.AvatarFileRef.IsZero() {
			skipped++
		}
	}
	return out, skipped, rows.Err()
}

func (m *Migrator) migrateContactAvatars(ctx context.Context, summary *Summary, report func(Progress)) error {
	contacts, skipped, err := m.legacyContacts(ctx)
	if err != nil {
		return err
	}
	summary.Skipped += skipped
	total := len(contacts)
	i := 0
	for id, c := range contacts {
		i++
		report(Progress{Domain: DomainContactAvatars, CurrentItem: c.Name, Current: i, Total: total})

		mime, data, ok := parseDataURL(c.Avatar)
		if !ok {
			summary.Failures = append(summary.Failures, Failure{DomainContactAvatars, id, "unparseable avatar data URL"})
			continue
		}
		fileID, err := m.files.Put(ctx, models.DomainAvatar, id, data, mime)
		if err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainContactAvatars, id, err.Error()})
			continue
		}
		c.Avatar = ""
		c.AvatarFileRef = models.FileRef{FileID: fileID}
		if err := m.rewriteDoc(ctx, "contacts", id, &c); err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainContactAvatars, id, err.Error()})
			continue
		}
		summary.Migrated++
		if mtr := services.GetMetrics(); mtr != nil {
			mtr.RecordMigratedRecord(DomainContactAvatars)
		}
	}
	return nil
}

// --- profile ---

func (m *Migrator) legacyProfileWork(ctx context.Context) (int, map[string]models.BackgroundEntry, error) {
	profileCount := 0
	var profile models.UserProfile
	if ok, err := m.loadSingleton(ctx, "user_profile", "profile", &profile); err != nil {
		return 0, nil, err
	} else if ok && profile.Avatar != "" {
		profileCount = 1
	}

	var backgrounds models.BackgroundsMap
	legacy := map[string]models.BackgroundEntry{}
	if ok, err := m.loadSingleton(ctx, "backgrounds", "backgroundsMap", &backgrounds); err != nil {
		return 0, nil, err
	} else if ok {
		for key, entry := range backgrounds {
			if entry.Data != "" {
				legacy[key] = entry
			}
		}
	}
	return profileCount, legacy, nil
}

func (m *Migrator) migrateProfile(ctx context.Context, summary *Summary, report func(Progress)) error {
	var profile models.UserProfile
	ok, err := m.loadSingleton(ctx, "user_profile", "profile", &profile)
	if err != nil {
		return err
	}
	if !ok || profile.Avatar == "" {
		if ok && !profile.AvatarFileRef.IsZero() {
			summary.Skipped++
		}
		return nil
	}
	report(Progress{Domain: DomainProfile, CurrentItem: "avatar", Current: 1, Total: 1})

	mime, data, parsed := parseDataURL(profile.Avatar)
	if !parsed {
		summary.Failures = append(summary.Failures, Failure{DomainProfile, "avatar", "unparseable avatar data URL"})
		return nil
	}
	fileID, err := m.files.Put(ctx, models.DomainAvatar, "user", data, mime)
	if err != nil {
		summary.Failures = append(summary.Failures, Failure{DomainProfile, "avatar", err.Error()})
		return nil
	}
	profile.Avatar = ""
	profile.AvatarFileRef = models.FileRef{FileID: fileID}
	if err := m.rewriteDoc(ctx, "user_profile", "profile", &profile); err != nil {
		summary.Failures = append(summary.Failures, Failure{DomainProfile, "avatar", err.Error()})
		return nil
	}
	summary.Migrated++
	if mtr := services.GetMetrics(); mtr != nil {
		mtr.RecordMigratedRecord(DomainProfile)
	}
	return nil
}

// --- backgrounds ---

func (m *Migrator) migrateBackgrounds(ctx context.Context, summary *Summary, report func(Progress)) error {
	var backgrounds models.BackgroundsMap
	ok, err := m.loadSingleton(ctx, "backgrounds", "backgroundsMap", &backgrounds)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	legacy := []string{}
	for key, entry := range backgrounds {
		if entry.Data != "" {
			legacy = append(legacy, key)
		} else if !entry.FileRef.IsZero() {
			summary.Skipped++
		}
	}
	changed := false
	for i, key := range legacy {
		report(Progress{Domain: DomainBackgrounds, CurrentItem: key, Current: i + 1, Total: len(legacy)})

		entry := backgrounds[key]
		mime, data, parsed := parseDataURL(entry.Data)
		if !parsed {
			summary.Failures = append(summary.Failures, Failure{DomainBackgrounds, key, "unparseable background data URL"})
			continue
		}
		fileID, err := m.files.Put(ctx, models.DomainBackground, key, data, mime)
		if err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainBackgrounds, key, err.Error()})
			continue
		}
		entry.Data = ""
		entry.FileRef = models.FileRef{FileID: fileID}
		backgrounds[key] = entry
		changed = true
		summary.Migrated++
		if mtr := services.GetMetrics(); mtr != nil {
			mtr.RecordMigratedRecord(DomainBackgrounds)
		}
	}
	if changed {
		return m.rewriteDoc(ctx, "backgrounds", "backgroundsMap", backgrounds)
	}
	return nil
}

// --- emojis ---

func (m *Migrator) legacyEmojis(ctx context.Context) (map[string]models.EmojiMeta, map[string]string, int, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, doc FROM emojis`)
	if err != nil {
		return nil, nil, 0, err
	}
	defer rows.Close()

	legacy := map[string]models.EmojiMeta{}
	tagged := map[string]bool{}
	skipped := 0
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, nil, 0, err
		}
		var e models.EmojiMeta
		if err := json.Unmarshal([]byte(doc), &e); err != nil {
			continue
		}
		tagged[e.Tag] = true
		if strings.HasPrefix(e.URL, "data:") && e.FileRef.IsZero() {
			legacy[id] = e
		} else if !e.FileRef.IsZero() {
			skipped++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, 0, err
	}

	// Rows in the legacy emoji_images side table whose tag has no metadata
	// record still need draining.
	imgRows, err := m.db.QueryContext(ctx, `SELECT tag, data FROM emoji_images`)
	if err != nil {
		return nil, nil, 0, err
	}
	defer imgRows.Close()
	orphans := map[string]string{}
	for imgRows.Next() {
		var tag, data string
		if err := imgRows.Scan(&tag, &data); err != nil {
			return nil, nil, 0, err
		}
		if !tagged[tag] {
			orphans[tag] = data
		}
	}
	return legacy, orphans, skipped, imgRows.Err()
}

// storeEmojiBytes writes sticker bytes once per distinct payload, reusing the
// blob when the exact bytes were already stored this run or in a prior one.
func (m *Migrator) storeEmojiBytes(ctx context.Context, tag, mime string, data []byte) (string, error) {
	sum := hashBytes(data)
	if ref, ok := m.byHash[sum]; ok {
		if err := m.files.PutRef(ctx, models.DomainEmoji, tag, ref.fileID); err != nil {
			return "", err
		}
		return ref.fileID, nil
	}
	fileID, err := m.files.Put(ctx, models.DomainEmoji, tag, data, mime)
	if err != nil {
		return "", err
	}
	m.byHash[sum] = emojiRef{tag: tag, fileID: fileID}
	return fileID, nil
}

func (m *Migrator) migrateEmojis(ctx context.Context, summary *Summary, report func(Progress)) error {
	legacy, orphans, skipped, err := m.legacyEmojis(ctx)
	if err != nil {
		return err
	}
	summary.Skipped += skipped
	total := len(legacy) + len(orphans)
	i := 0

	for id, e := range legacy {
		i++
		report(Progress{Domain: DomainEmojis, CurrentItem: e.Tag, Current: i, Total: total})

		mime, data, parsed := parseDataURL(e.URL)
		if !parsed {
			summary.Failures = append(summary.Failures, Failure{DomainEmojis, e.Tag, "unparseable emoji data URL"})
			continue
		}
		fileID, err := m.storeEmojiBytes(ctx, e.Tag, mime, data)
		if err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainEmojis, e.Tag, err.Error()})
			continue
		}
		e.URL = ""
		e.FileRef = models.FileRef{FileID: fileID}
		if err := m.rewriteDoc(ctx, "emojis", id, &e); err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainEmojis, e.Tag, err.Error()})
			continue
		}
		m.deleteEmojiImage(ctx, e.Tag)
		summary.Migrated++
		if mtr := services.GetMetrics(); mtr != nil {
			mtr.RecordMigratedRecord(DomainEmojis)
		}
	}

	for tag, raw := range orphans {
		i++
		report(Progress{Domain: DomainEmojis, CurrentItem: tag, Current: i, Total: total})

		mime, data, parsed := parseDataURL(raw)
		if !parsed {
			summary.Failures = append(summary.Failures, Failure{DomainEmojis, tag, "unparseable emoji_images payload"})
			continue
		}
		fileID, err := m.storeEmojiBytes(ctx, tag, mime, data)
		if err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainEmojis, tag, err.Error()})
			continue
		}
		e := models.EmojiMeta{ID: "emoji-" + tag, Tag: tag, FileRef: models.FileRef{FileID: fileID}}
		if err := m.insertEmoji(ctx, &e); err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainEmojis, tag, err.Error()})
			continue
		}
		m.deleteEmojiImage(ctx, tag)
		summary.Migrated++
		if mtr := services.GetMetrics(); mtr != nil {
			mtr.RecordMigratedRecord(DomainEmojis)
		}
	}
	return nil
}

// --- moments ---

func (m *Migrator) legacyMoments(ctx context.Context) (map[string]models.Moment, int, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, doc FROM moments`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := map[string]models.Moment{}
	skipped := 0
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, 0, err
		}
		var mo models.Moment
		if err := json.Unmarshal([]byte(doc), &mo); err != nil {
			continue
		}
		if len(mo.ImageData) > 0 {
			out[id] = mo
		} else if len(mo.ImageFileRefs) > 0 {
			skipped++
		}
	}
	return out, skipped, rows.Err()
}

func (m *Migrator) migrateMoments(ctx context.Context, summary *Summary, report func(Progress)) error {
	moments, skipped, err := m.legacyMoments(ctx)
	if err != nil {
		return err
	}
	summary.Skipped += skipped
	total := len(moments)
	i := 0
	for id, mo := range moments {
		i++
		report(Progress{Domain: DomainMoments, CurrentItem: id, Current: i, Total: total})

		images := make([][]byte, 0, len(mo.ImageData))
		mime := ""
		bad := false
		for _, raw := range mo.ImageData {
			mt, data, parsed := parseDataURL(raw)
			if !parsed {
				bad = true
				break
			}
			if mime == "" {
				mime = mt
			}
			images = append(images, data)
		}
		if bad {
			summary.Failures = append(summary.Failures, Failure{DomainMoments, id, "unparseable moment image data URL"})
			continue
		}
		fileIDs, err := m.files.PutMoment(ctx, id, images, mime)
		if err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainMoments, id, err.Error()})
			continue
		}
		mo.ImageData = nil
		mo.ImageFileRefs = make([]models.FileRef, len(fileIDs))
		for j, fid := range fileIDs {
			mo.ImageFileRefs[j] = models.FileRef{FileID: fid}
		}
		if err := m.rewriteDoc(ctx, "moments", id, &mo); err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainMoments, id, err.Error()})
			continue
		}
		summary.Migrated++
		if mtr := services.GetMetrics(); mtr != nil {
			mtr.RecordMigratedRecord(DomainMoments)
		}
	}
	return nil
}

// --- chat emoji messages ---

type legacyChatEmoji struct {
	rowID     int64
	contactID string
	msg       models.Message
}

func (m *Migrator) legacyChatEmojis(ctx context.Context) ([]legacyChatEmoji, int, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, contact_id, doc FROM messages`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []legacyChatEmoji{}
	skipped := 0
	for rows.Next() {
		var rowID int64
		var contactID, doc string
		if err := rows.Scan(&rowID, &contactID, &doc); err != nil {
			return nil, 0, err
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(doc), &msg); err != nil {
			continue
		}
		if msg.Type != models.MessageEmoji {
			continue
		}
		if strings.HasPrefix(msg.Content, "data:") {
			out = append(out, legacyChatEmoji{rowID: rowID, contactID: contactID, msg: msg})
		} else if msg.EmojiTag() != "" {
			skipped++
		}
	}
	return out, skipped, rows.Err()
}

// migrateChatEmojis rewrites emoji messages that still carry inline bytes to
// symbolic [emoji:<tag>] references. Bytes matching an already-stored sticker
// reuse its tag; unmatched bytes get a synthetic sticker named after their
// hash.
func (m *Migrator) migrateChatEmojis(ctx context.Context, summary *Summary, report func(Progress)) error {
	if err := m.indexStoredEmojis(ctx); err != nil {
		return err
	}
	legacy, skipped, err := m.legacyChatEmojis(ctx)
	if err != nil {
		return err
	}
	summary.Skipped += skipped
	for i, item := range legacy {
		itemID := fmt.Sprintf("%s/%d", item.contactID, item.rowID)
		report(Progress{Domain: DomainChatEmojis, CurrentItem: itemID, Current: i + 1, Total: len(legacy)})

		mime, data, parsed := parseDataURL(item.msg.Content)
		if !parsed {
			summary.Failures = append(summary.Failures, Failure{DomainChatEmojis, itemID, "unparseable message data URL"})
			continue
		}

		sum := hashBytes(data)
		ref, ok := m.byHash[sum]
		if !ok {
			tag := "migrated-" + sum[:8]
			fileID, err := m.storeEmojiBytes(ctx, tag, mime, data)
			if err != nil {
				summary.Failures = append(summary.Failures, Failure{DomainChatEmojis, itemID, err.Error()})
				continue
			}
			e := models.EmojiMeta{ID: "emoji-" + tag, Tag: tag, FileRef: models.FileRef{FileID: fileID}}
			if err := m.insertEmoji(ctx, &e); err != nil {
				summary.Failures = append(summary.Failures, Failure{DomainChatEmojis, itemID, err.Error()})
				continue
			}
			ref = emojiRef{tag: tag, fileID: fileID}
		}

		item.msg.Content = models.EmojiRef(ref.tag)
		doc, err := json.Marshal(&item.msg)
		if err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainChatEmojis, itemID, err.Error()})
			continue
		}
		err = m.db.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.Exec(`UPDATE messages SET doc = ? WHERE id = ?`, string(doc), item.rowID)
			return err
		})
		if err != nil {
			summary.Failures = append(summary.Failures, Failure{DomainChatEmojis, itemID, err.Error()})
			continue
		}
		summary.Migrated++
		if mtr := services.GetMetrics(); mtr != nil {
			mtr.RecordMigratedRecord(DomainChatEmojis)
		}
	}
	return nil
}

// indexStoredEmojis hashes every emoji-domain blob already in the file store
// so chat history can dedupe against stickers migrated in earlier runs.
func (m *Migrator) indexStoredEmojis(ctx context.Context) error {
	rows, err := m.db.QueryContext(ctx, `
		SELECT r.ref_key, r.file_id, f.bytes
		FROM file_refs r JOIN file_store f ON f.file_id = r.file_id
		WHERE r.domain = ?
	`, string(models.DomainEmoji))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tag, fileID string
		var data []byte
		if err := rows.Scan(&tag, &fileID, &data); err != nil {
			return err
		}
		sum := hashBytes(data)
		if _, ok := m.byHash[sum]; !ok {
			m.byHash[sum] = emojiRef{tag: tag, fileID: fileID}
		}
	}
	return rows.Err()
}

// --- shared helpers ---

func (m *Migrator) rewriteDoc(ctx context.Context, table, id string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(fmt.Sprintf(`UPDATE %s SET doc = ? WHERE id = ?`, table), string(doc), id)
		return err
	})
}

func (m *Migrator) loadSingleton(ctx context.Context, table, id string, v any) (bool, error) {
	var doc string
	err := m.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, table), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Migrator) insertEmoji(ctx context.Context, e *models.EmojiMeta) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return m.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO emojis (id, tag, doc) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
		`, e.ID, e.Tag, string(doc))
		return err
	})
}

func (m *Migrator) deleteEmojiImage(ctx context.Context, tag string) {
	err := m.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM emoji_images WHERE tag = ?`, tag)
		return err
	})
	if err != nil {
		m.log.WithField("tag", tag).WithError(err).Warn("Failed to drop legacy emoji image row")
	}
}
