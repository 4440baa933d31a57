package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"solace/internal/models"
	"solace/internal/services"
)

var (
	// ErrUpstreamTimeout marks an HTTP 504 from the provider's gateway. The
	// provider may still be generating; repeating the request would double
	// the reply, so these are never retried.
	ErrUpstreamTimeout = errors.New("upstream gateway timeout")

	// ErrEmptyReply means the provider answered 200 with no usable content.
	ErrEmptyReply = errors.New("upstream returned an empty reply")
)

// UpstreamError is a non-200 provider response.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream request failed with status %d: %s", e.Status, e.Body)
}

// ChatMessage is one turn in an outbound completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResult is a completed (non-streaming) reply.
type ChatResult struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// Client talks to an OpenAI-compatible completions endpoint, resolving the
// base URL, key, and model through the key pool on every call.
type Client struct {
	pool       *services.APIConfigService
	httpClient *http.Client
}

// NewClient creates an LLM client over the key pool. Per-request timeouts
// come from the active config's timeout field.
func NewClient(pool *services.APIConfigService) *Client {
	return &Client{
		pool: pool,
		// Outer ceiling only; the per-config timeout governs each call.
		httpClient: &http.Client{Timeout: 600 * time.Second},
	}
}

// Chat sends a non-streaming completion request using the active config's
// enabled key. useSecondary selects the secondary model (falling back to the
// primary when the config syncs them).
func (c *Client) Chat(ctx context.Context, messages []ChatMessage, useSecondary bool) (*ChatResult, error) {
	cfg, err := c.pool.ActiveConfig(ctx)
	if err != nil {
		return nil, err
	}
	key, err := c.pool.EnabledKey(ctx)
	if err != nil {
		return nil, err
	}

	model := cfg.PrimaryModel
	if useSecondary {
		model = cfg.ResolvedSecondaryModel()
	}

	body, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutMs)*time.Millisecond)
	defer cancel()

	endpoint := strings.TrimSuffix(key.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(callCtx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key.Key)

	log.Printf("🤖 [LLM] Sending completion request: model=%s, messages=%d", model, len(messages))
	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordCall(ctx, key, false)
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		c.recordCall(ctx, key, false)
		if m := services.GetMetrics(); m != nil {
			m.RecordUpstreamError(strconv.Itoa(resp.StatusCode))
		}
		if resp.StatusCode == http.StatusGatewayTimeout {
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrUpstreamTimeout, strings.TrimSpace(string(raw))))
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.recordCall(ctx, key, false)
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	out := &ChatResult{Model: model}
	if choices, ok := result["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					out.Content = content
				}
			}
		}
	}
	if usage, ok := result["usage"].(map[string]any); ok {
		if pt, ok := usage["prompt_tokens"].(float64); ok {
			out.PromptTokens = int(pt)
		}
		if ct, ok := usage["completion_tokens"].(float64); ok {
			out.CompletionTokens = int(ct)
		}
	}

	if strings.TrimSpace(out.Content) == "" {
		c.recordCall(ctx, key, false)
		return nil, ErrEmptyReply
	}

	c.recordCall(ctx, key, true)
	log.Printf("✅ [LLM] Completion finished in %v: response_len=%d, tokens=%d/%d",
		time.Since(started).Round(time.Millisecond), len(out.Content), out.PromptTokens, out.CompletionTokens)
	return out, nil
}

// TestConnection probes the provider's model listing endpoint with the
// enabled key.
func (c *Client) TestConnection(ctx context.Context) error {
	key, err := c.pool.EnabledKey(ctx)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	endpoint := strings.TrimSuffix(key.BaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(callCtx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key.Key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}
	return nil
}

// recordCall feeds the key pool's rolling stats. A stale key row here means
// the key rotated mid-flight; the outcome is simply dropped.
func (c *Client) recordCall(ctx context.Context, key *models.ActiveKeyRef, success bool) {
	fingerprint := (&models.KeyEntry{Key: key.Key}).Fingerprint()
	err := c.pool.RecordCall(ctx, key.ConfigID, key.Index, fingerprint, success)
	if err != nil && !errors.Is(err, services.ErrStaleKeyRow) {
		log.Printf("⚠️  [LLM] Failed to record key call outcome: %v", err)
	}
}
