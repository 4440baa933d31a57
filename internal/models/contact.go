package models

import "fmt"

// ContactKind distinguishes one-on-one chats from group chats.
type ContactKind string

const (
	ContactPrivate ContactKind = "private"
	ContactGroup   ContactKind = "group"
)

// Contact is a chat participant: either a private companion persona or a
// group of them. Chat history lives in its own table keyed by contact ID;
// the avatar lives in the file store and is referenced here.
type Contact struct {
	ID                 string      `json:"id"`
	Kind               ContactKind `json:"kind"`
	Name               string      `json:"name"`
	Personality        string      `json:"personality,omitempty"`
	CustomPrompts      string      `json:"custom_prompts,omitempty"`
	Avatar             string      `json:"avatar,omitempty"` // legacy inline data URL, cleared by migration
	AvatarFileRef      FileRef     `json:"avatar_file_ref,omitempty"`
	VoiceID            string      `json:"voice_id,omitempty"`
	MemoryTableContent string      `json:"memory_table_content,omitempty"`
	Members            []string    `json:"members,omitempty"` // group only: private contact IDs
}

// Validate enforces the structural rules for a contact record.
func (c *Contact) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("contact ID is required")
	}
	if c.Name == "" {
		return fmt.Errorf("contact name is required")
	}
	switch c.Kind {
	case ContactPrivate:
		if len(c.Members) > 0 {
			return fmt.Errorf("private contact cannot have members")
		}
	case ContactGroup:
		if len(c.Members) < 2 {
			return fmt.Errorf("group contact requires at least 2 members, got %d", len(c.Members))
		}
	default:
		return fmt.Errorf("unknown contact kind %q", c.Kind)
	}
	return nil
}

// AllowsSender reports whether a sender ID may appear in this contact's chat.
// Group chats only accept their members plus the local user.
func (c *Contact) AllowsSender(senderID string) bool {
	if c.Kind != ContactGroup {
		return true
	}
	if senderID == UserSenderID {
		return true
	}
	for _, member := range c.Members {
		if member == senderID {
			return true
		}
	}
	return false
}
