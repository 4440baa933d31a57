package database

// migrations maps schema version → DDL for that step. The version numbers
// track the deployed history of the store set; versions absent from the map
// were data-only passes (the startup migrator re-checks candidacy itself, so
// they need no DDL here).
var migrations = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS contacts (
			id         TEXT PRIMARY KEY,
			doc        TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (unixepoch('subsec') * 1000)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			contact_id   TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			doc          TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_contact ON messages(contact_id, id)`,
		`CREATE TABLE IF NOT EXISTS api_configs (
			id        TEXT PRIMARY KEY,
			doc       TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 0
		)`,
	},
	2: {
		`CREATE TABLE IF NOT EXISTS emojis (
			id  TEXT PRIMARY KEY,
			tag TEXT NOT NULL UNIQUE,
			doc TEXT NOT NULL
		)`,
		// Legacy inline sticker bytes, keyed by tag. Drained by the startup
		// migrator into file_store.
		`CREATE TABLE IF NOT EXISTS emoji_images (
			tag  TEXT PRIMARY KEY,
			data TEXT NOT NULL
		)`,
	},
	3: {
		`CREATE TABLE IF NOT EXISTS backgrounds (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_profile (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)`,
	},
	4: {
		`CREATE TABLE IF NOT EXISTS moments (
			id            TEXT PRIMARY KEY,
			doc           TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL
		)`,
	},
	5: {
		`CREATE TABLE IF NOT EXISTS weibo_posts (
			id  INTEGER PRIMARY KEY AUTOINCREMENT,
			doc TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS hashtag_cache (
			id  TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)`,
	},
	6: {
		`CREATE TABLE IF NOT EXISTS songs (
			id  INTEGER PRIMARY KEY AUTOINCREMENT,
			doc TEXT NOT NULL
		)`,
	},
	8: {
		`CREATE TABLE IF NOT EXISTS theme_config (
			type TEXT PRIMARY KEY,
			doc  TEXT NOT NULL
		)`,
	},
	9: {
		`CREATE TABLE IF NOT EXISTS memory_store (
			scope                TEXT PRIMARY KEY,
			lines                TEXT NOT NULL DEFAULT '',
			conversation_counter INTEGER NOT NULL DEFAULT 0
		)`,
	},
	12: {
		`CREATE TABLE IF NOT EXISTS voice_cache (
			cache_key  TEXT PRIMARY KEY,
			file_id    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	},
	13: {
		`CREATE TABLE IF NOT EXISTS file_store (
			file_id       TEXT PRIMARY KEY,
			mime_type     TEXT NOT NULL,
			bytes         BLOB NOT NULL,
			original_name TEXT NOT NULL DEFAULT '',
			domain        TEXT NOT NULL,
			created_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS file_refs (
			domain  TEXT NOT NULL,
			ref_key TEXT NOT NULL,
			file_id TEXT NOT NULL,
			PRIMARY KEY (domain, ref_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_refs_file ON file_refs(file_id)`,
	},
}

// StoreTables lists every table the canonical store set creates, in creation
// order. Used by cold-start checks and the export/import transfer service.
var StoreTables = []string{
	"contacts",
	"messages",
	"api_configs",
	"emojis",
	"emoji_images",
	"backgrounds",
	"user_profile",
	"moments",
	"weibo_posts",
	"hashtag_cache",
	"songs",
	"theme_config",
	"memory_store",
	"voice_cache",
	"file_store",
	"file_refs",
}
