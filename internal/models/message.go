package models

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// MessageRole identifies who produced a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageType is the content variant of a chat message.
type MessageType string

const (
	MessageText      MessageType = "text"
	MessageEmoji     MessageType = "emoji"
	MessageRedPacket MessageType = "red_packet"
)

// UserSenderID marks messages sent by the local user rather than a contact.
const UserSenderID = "user"

// emojiRefPattern matches the symbolic emoji reference stored in chat
// history, e.g. "[emoji:happy_cat]".
var emojiRefPattern = regexp.MustCompile(`^\[emoji:([^\]\s]+)\]$`)

// Message is one entry in a contact's chat history. Messages are append-only;
// ordering is the authoritative insertion order and TimestampMs never
// decreases within a contact.
type Message struct {
	ID              int64       `json:"id,omitempty"`
	Role            MessageRole `json:"role"`
	Type            MessageType `json:"type"`
	Content         string      `json:"content"`
	TimestampMs     int64       `json:"timestamp_ms"`
	SenderID        string      `json:"sender_id"`
	IsVoice         bool        `json:"is_voice,omitempty"`
	Edited          bool        `json:"edited,omitempty"`
	EditTimestampMs int64       `json:"edit_timestamp_ms,omitempty"`
}

// RedPacket is the payload carried by a red_packet message's content.
type RedPacket struct {
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

// Validate checks the variant-specific content shape.
func (m *Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return fmt.Errorf("unknown message role %q", m.Role)
	}

	switch m.Type {
	case MessageText:
		return nil
	case MessageEmoji:
		if !emojiRefPattern.MatchString(m.Content) {
			return fmt.Errorf("emoji message content must be an [emoji:<tag>] reference, got %q", m.Content)
		}
		return nil
	case MessageRedPacket:
		var packet RedPacket
		if err := json.Unmarshal([]byte(m.Content), &packet); err != nil {
			return fmt.Errorf("red packet payload is not valid JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
}

// EmojiTag extracts the tag from an emoji message's symbolic reference.
// Returns "" for non-emoji content.
func (m *Message) EmojiTag() string {
	match := emojiRefPattern.FindStringSubmatch(m.Content)
	if match == nil {
		return ""
	}
	return match[1]
}

// EmojiRef builds the symbolic chat-history reference for an emoji tag.
func EmojiRef(tag string) string {
	return "[emoji:" + tag + "]"
}
