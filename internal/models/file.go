package models

import "time"

// FileDomain classifies what a stored blob is used for.
type FileDomain string

const (
	DomainAvatar     FileDomain = "avatar"
	DomainBackground FileDomain = "background"
	DomainEmoji      FileDomain = "emoji"
	DomainMoment     FileDomain = "moment"
	DomainBanner     FileDomain = "banner"
	DomainSong       FileDomain = "song"
	DomainVoice      FileDomain = "voice"
)

// FileRef points at a blob in the file store. It never carries bytes;
// resolve it through the filestore service.
type FileRef struct {
	FileID string `json:"file_id"`
}

// IsZero reports whether the ref points at nothing.
func (r FileRef) IsZero() bool { return r.FileID == "" }

// FileBlob is an immutable stored binary asset. Replacing an asset writes a
// new blob and repoints the (domain,key) mapping; the old blob lives until
// compaction.
type FileBlob struct {
	FileID       string     `json:"file_id"`
	MimeType     string     `json:"mime_type"`
	Bytes        []byte     `json:"-"`
	OriginalName string     `json:"original_name,omitempty"`
	Domain       FileDomain `json:"domain"`
	CreatedAt    time.Time  `json:"created_at"`
}

// VoiceCacheEntry is a content-addressed TTS cache row keyed on
// hash(text, voiceID).
type VoiceCacheEntry struct {
	Key       string    `json:"key"`
	FileRef   FileRef   `json:"file_ref"`
	CreatedAt time.Time `json:"created_at"`
}
