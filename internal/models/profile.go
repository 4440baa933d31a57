package models

// UserProfile is the singleton record describing the local user.
type UserProfile struct {
	Name          string  `json:"name,omitempty"`
	Signature     string  `json:"signature,omitempty"`
	Avatar        string  `json:"avatar,omitempty"` // legacy inline data URL, cleared by migration
	AvatarFileRef FileRef `json:"avatar_file_ref,omitempty"`
	BannerFileRef FileRef `json:"banner_file_ref,omitempty"`
}

// BackgroundsMap maps a contact ID to its chat background: either a file
// reference (migrated) or a legacy inline data URL.
type BackgroundsMap map[string]BackgroundEntry

// BackgroundEntry is one chat background. Exactly one of Data (legacy) or
// FileRef is set.
type BackgroundEntry struct {
	Data    string  `json:"data,omitempty"` // legacy inline data URL
	FileRef FileRef `json:"file_ref,omitempty"`
}

// ThemeConfig is a theme or gradient record, keyed by its config type tag.
type ThemeConfig struct {
	Type   string            `json:"type"`
	Values map[string]string `json:"values"`
}

// Song is an uploaded track. Audio bytes live in the file store.
type Song struct {
	ID      int64   `json:"id,omitempty"`
	Name    string  `json:"name"`
	Lyrics  string  `json:"lyrics,omitempty"`
	FileRef FileRef `json:"file_ref"`
}
