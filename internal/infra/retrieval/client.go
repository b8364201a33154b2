// Package retrieval provides the HTTP client for the document
// retrieval collaborator. The client only speaks the collaborator's
// wire contract; retry, circuit breaking and deadlines are applied by
// the caller through the resilience composer.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"lexgate/internal/resilience/errdefs"
	"lexgate/internal/usecase/query"
)

// Config holds retrieval client configuration.
type Config struct {
	// BaseURL of the retrieval service (e.g. "http://localhost:6333").
	BaseURL string

	// APIKey sent as a bearer token, empty for none.
	APIKey string

	// HTTPTimeout bounds a single HTTP exchange. The composer's policy
	// timeout bounds the whole operation including retries.
	HTTPTimeout time.Duration
}

// DefaultConfig returns the default retrieval client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:6333",
		HTTPTimeout: 30 * time.Second,
	}
}

// Client implements query.DocumentSearcher over HTTP.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a retrieval client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultConfig().HTTPTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []struct {
		Content string  `json:"content"`
		Score   float32 `json:"score"`
		Title   string  `json:"title"`
		URL     string  `json:"url"`
	} `json:"results"`
}

// Search returns passages relevant to the query, ordered by score.
// Non-2xx responses are mapped to errdefs.HTTPError so the resilience
// layer can classify them.
func (c *Client) Search(ctx context.Context, queryText string, topK int) ([]query.Passage, error) {
	body, err := json.Marshal(searchRequest{Query: queryText, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval search: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close retrieval response body", slog.Any("error", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &errdefs.HTTPError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	passages := make([]query.Passage, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		passages = append(passages, query.Passage{
			Content: r.Content,
			Score:   r.Score,
			Title:   r.Title,
			URL:     r.URL,
		})
	}
	return passages, nil
}
