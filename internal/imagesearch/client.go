package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNoResults means the provider had no images for the keyword.
var ErrNoResults = errors.New("no images found")

const defaultEndpoint = "https://api.unsplash.com/search/photos"

// Image is one search hit.
type Image struct {
	URL         string `json:"url"`
	ThumbURL    string `json:"thumb_url"`
	Description string `json:"description,omitempty"`
}

// Client searches a stock image provider for post and moment illustrations.
type Client struct {
	httpClient *http.Client
	endpoint   string
	accessKey  string
}

// NewClient creates an image search client.
func NewClient(accessKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   defaultEndpoint,
		accessKey:  accessKey,
	}
}

// Search returns up to perPage images matching the keyword.
func (c *Client) Search(ctx context.Context, keyword string, perPage int) ([]Image, error) {
	if perPage <= 0 {
		perPage = 5
	}
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("per_page", fmt.Sprintf("%d", perPage))

	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("image search failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		Results []struct {
			Description string `json:"description"`
			URLs        struct {
				Regular string `json:"regular"`
				Thumb   string `json:"thumb"`
			} `json:"urls"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse image search response: %w", err)
	}
	if len(result.Results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoResults, keyword)
	}

	images := make([]Image, 0, len(result.Results))
	for _, hit := range result.Results {
		images = append(images, Image{
			URL:         hit.URLs.Regular,
			ThumbURL:    hit.URLs.Thumb,
			Description: hit.Description,
		})
	}
	return images, nil
}
