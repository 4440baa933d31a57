package tts

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"solace/internal/filestore"
)

// ErrNoAudio means the provider answered without an audio payload.
var ErrNoAudio = errors.New("tts reply carried no audio")

const defaultEndpoint = "https://api.minimax.chat/v1/t2a_v2"

// Client synthesizes speech through a Minimax-style T2A endpoint. Clips are
// content-addressed in the voice cache, so repeated text for the same voice
// never hits the provider twice.
type Client struct {
	files      *filestore.Service
	httpClient *http.Client
	endpoint   string
	groupID    string
	apiKey     string
	model      string
}

// Options configures the TTS client.
type Options struct {
	Endpoint string // defaults to the Minimax T2A endpoint
	GroupID  string
	APIKey   string
	Model    string // defaults to "speech-01-turbo"
}

// NewClient creates a TTS client over the shared file store.
func NewClient(files *filestore.Service, opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = "speech-01-turbo"
	}
	return &Client{
		files:      files,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		endpoint:   opts.Endpoint,
		groupID:    opts.GroupID,
		apiKey:     opts.APIKey,
		model:      opts.Model,
	}
}

// Speak returns the file ID of an MP3 clip for (text, voiceID), synthesizing
// only on a cache miss.
func (c *Client) Speak(ctx context.Context, text, voiceID string) (string, error) {
	fileID, err := c.files.VoiceCacheLookup(ctx, text, voiceID)
	if err != nil {
		return "", err
	}
	if fileID != "" {
		return fileID, nil
	}

	audio, err := c.synthesize(ctx, text, voiceID)
	if err != nil {
		return "", err
	}
	fileID, err = c.files.VoiceCacheStore(ctx, text, voiceID, audio, "audio/mpeg")
	if err != nil {
		return "", err
	}
	return fileID, nil
}

func (c *Client) synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"text":  text,
		"voice_setting": map[string]any{
			"voice_id": voiceID,
			"speed":    1.0,
		},
		"audio_setting": map[string]any{
			"format":      "mp3",
			"sample_rate": 32000,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.endpoint + "?GroupId=" + c.groupID
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("🔊 [TTS] Synthesizing %d chars with voice %s", len(text), voiceID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("TTS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TTS request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		Data struct {
			Audio string `json:"audio"` // hex-encoded MP3 bytes
		} `json:"data"`
		BaseResp struct {
			StatusCode int    `json:"status_code"`
			StatusMsg  string `json:"status_msg"`
		} `json:"base_resp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse TTS response: %w", err)
	}
	if result.BaseResp.StatusCode != 0 {
		return nil, fmt.Errorf("TTS provider error %d: %s", result.BaseResp.StatusCode, result.BaseResp.StatusMsg)
	}
	if result.Data.Audio == "" {
		return nil, ErrNoAudio
	}

	audio, err := hex.DecodeString(result.Data.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TTS audio: %w", err)
	}
	return audio, nil
}
