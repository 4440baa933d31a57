package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"solace/internal/llm"
	"solace/internal/models"
	"solace/internal/queue"
	"solace/internal/services"
)

// ChatHandler drives companion replies: it assembles the prompt from persona,
// memory, and recent history, then runs the completion through the request
// queue so generation stays serialized and retryable.
type ChatHandler struct {
	contacts *services.ContactService
	memory   *services.MemoryService
	pool     *services.APIConfigService
	llm      *llm.Client
	queue    *queue.Queue
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	contacts *services.ContactService,
	memory *services.MemoryService,
	pool *services.APIConfigService,
	llmClient *llm.Client,
	q *queue.Queue,
) *ChatHandler {
	return &ChatHandler{contacts: contacts, memory: memory, pool: pool, llm: llmClient, queue: q}
}

// Generate produces an assistant reply for a contact's conversation. The user
// message is appended first; the reply is appended once the upstream call
// completes.
func (h *ChatHandler) Generate(c *fiber.Ctx) error {
	contactID := c.Params("id")
	var body struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid chat payload"})
	}

	contact, err := h.contacts.Get(c.Context(), contactID)
	if err != nil {
		return respondErr(c, err)
	}
	cfg, err := h.pool.ActiveConfig(c.Context())
	if err != nil {
		return respondErr(c, err)
	}

	userMsg := &models.Message{
		Role:        models.RoleUser,
		Type:        models.MessageText,
		Content:     body.Content,
		TimestampMs: time.Now().UnixMilli(),
		SenderID:    models.UserSenderID,
	}
	if _, err := h.contacts.AppendMessage(c.Context(), contactID, userMsg); err != nil {
		return respondErr(c, err)
	}

	messages, err := h.buildPrompt(c.Context(), contact, cfg.ContextMessageCount)
	if err != nil {
		return respondErr(c, err)
	}

	handle, err := h.queue.Submit("chat:"+contactID, queue.PriorityHigh, func(ctx context.Context) (any, error) {
		return h.llm.Chat(ctx, messages, false)
	})
	if err != nil {
		return respondErr(c, err)
	}

	res := <-handle.Done
	if res.Err != nil {
		return respondErr(c, res.Err)
	}
	reply := res.Value.(*llm.ChatResult)

	assistantMsg := &models.Message{
		Role:        models.RoleAssistant,
		Type:        models.MessageText,
		Content:     reply.Content,
		TimestampMs: time.Now().UnixMilli(),
		SenderID:    contactID,
	}
	stored, err := h.contacts.AppendMessage(c.Context(), contactID, assistantMsg)
	if err != nil {
		return respondErr(c, err)
	}

	count, err := h.memory.BumpConversationCounter(c.Context(), contactID, 1)
	if err != nil {
		return respondErr(c, err)
	}
	due, err := h.memory.ShouldSummarize(c.Context(), contactID)
	if err != nil {
		return respondErr(c, err)
	}
	if due {
		h.summarizeAsync(contactID)
	}

	return c.JSON(fiber.Map{
		"message":       stored,
		"counter":       count,
		"summarize_due": due,
	})
}

// buildPrompt assembles system context (persona, memories) plus the recent
// history window.
func (h *ChatHandler) buildPrompt(ctx context.Context, contact *models.Contact, window int) ([]llm.ChatMessage, error) {
	system := "You are " + contact.Name + "."
	if contact.Personality != "" {
		system += "\n\nPersonality: " + contact.Personality
	}
	if contact.CustomPrompts != "" {
		system += "\n\n" + contact.CustomPrompts
	}

	globalLines, err := h.memory.GetGlobal(ctx)
	if err != nil {
		return nil, err
	}
	contactLines, err := h.memory.GetContact(ctx, contact.ID)
	if err != nil {
		return nil, err
	}
	if len(globalLines) > 0 || len(contactLines) > 0 {
		system += "\n\nThings you remember:"
		for _, line := range globalLines {
			system += "\n" + line
		}
		for _, line := range contactLines {
			system += "\n" + line
		}
	}

	history, err := h.contacts.Messages(ctx, contact.ID, window)
	if err != nil {
		return nil, err
	}

	messages := []llm.ChatMessage{{Role: "system", Content: system}}
	for _, msg := range history {
		messages = append(messages, llm.ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return messages, nil
}

// summarizeAsync queues a low-priority secondary-model pass that distills the
// recent conversation into memory lines, then resets the counter.
func (h *ChatHandler) summarizeAsync(contactID string) {
	handle, err := h.queue.Submit("summarize:"+contactID, queue.PriorityLow, func(ctx context.Context) (any, error) {
		history, err := h.contacts.Messages(ctx, contactID, services.SummarizeThreshold*2)
		if err != nil {
			return nil, err
		}
		transcript := ""
		for _, msg := range history {
			transcript += fmt.Sprintf("%s: %s\n", msg.SenderID, msg.Content)
		}
		prompt := []llm.ChatMessage{
			{Role: "system", Content: "Extract new facts worth remembering from this conversation. Reply with a bullet list, one fact per line, each line starting with \"- \". Reply with nothing else."},
			{Role: "user", Content: transcript},
		}
		reply, err := h.llm.Chat(ctx, prompt, true)
		if err != nil {
			return nil, err
		}
		if err := h.memory.AppendContact(ctx, contactID, reply.Content); err != nil {
			return nil, err
		}
		return nil, h.memory.ResetCounter(ctx, contactID)
	})
	if err != nil {
		return
	}
	go func() { <-handle.Done }()
}
