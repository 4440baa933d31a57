package models

// MemoryScopeGlobal is the scope tag for the global memory entry. Per-contact
// entries use "contact:<id>".
const MemoryScopeGlobal = "global"

// ContactMemoryScope builds the scope tag for a contact's memory entry.
func ContactMemoryScope(contactID string) string {
	return "contact:" + contactID
}

// MemoryEntry is the durable semantic memory for the LLM adapter: an ordered
// bullet list ("- ..." lines) plus, for contact scopes, a rolling counter of
// user turns since the last summarization.
type MemoryEntry struct {
	Scope               string   `json:"scope"`
	Lines               []string `json:"lines"`
	ConversationCounter int      `json:"conversation_counter,omitempty"`
}
