package models

import "fmt"

// EmojiMeta describes one sticker/emoji owned by the user. The tag is unique
// and is what chat history references via [emoji:<tag>]; the image bytes live
// in the file store.
type EmojiMeta struct {
	ID             string  `json:"id"`
	Tag            string  `json:"tag"`
	DisplayMeaning string  `json:"display_meaning,omitempty"`
	URL            string  `json:"url,omitempty"` // legacy inline data URL, cleared by migration
	FileRef        FileRef `json:"file_ref,omitempty"`
}

// Validate checks the minimal shape of an emoji record.
func (e *EmojiMeta) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("emoji ID is required")
	}
	if e.Tag == "" {
		return fmt.Errorf("emoji tag is required")
	}
	return nil
}
