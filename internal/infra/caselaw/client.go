// Package caselaw provides the HTTP client for the external case-law
// search service. Requests are smoothed with a client-side rate limiter
// because the upstream enforces aggressive per-client quotas; retry,
// circuit breaking and deadlines are applied by the caller through the
// resilience composer.
package caselaw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"lexgate/internal/resilience/errdefs"
	"lexgate/internal/usecase/query"
)

// Config holds case-law client configuration.
type Config struct {
	// BaseURL of the case-search service.
	BaseURL string

	// APIKey sent as a bearer token, empty for none.
	APIKey string

	// HTTPTimeout bounds a single HTTP exchange.
	HTTPTimeout time.Duration

	// RequestsPerSecond smooths outbound request rate. Zero disables
	// smoothing.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size.
	Burst int
}

// DefaultConfig returns the default case-law client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:3000",
		HTTPTimeout:       30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
	}
}

// Client implements query.CaseSearcher over HTTP.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a case-law client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultConfig().HTTPTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		limiter: limiter,
	}
}

type searchCasesRequest struct {
	Query    string `json:"query"`
	Instance string `json:"instance,omitempty"`
	Limit    int    `json:"limit"`
	Year     int    `json:"year,omitempty"`
}

type caseDetailsRequest struct {
	CaseNumber string `json:"caseNumber,omitempty"`
	DocID      string `json:"docId,omitempty"`
}

// CaseDetails holds the full record for one case.
type CaseDetails struct {
	CaseNumber string `json:"case_number"`
	Title      string `json:"title"`
	Court      string `json:"court"`
	Decided    string `json:"decided"`
	FullText   string `json:"full_text"`
	URL        string `json:"url"`
}

// SearchCases returns cases relevant to the query, ordered by score.
func (c *Client) SearchCases(ctx context.Context, queryText string, filters query.CaseFilters) ([]query.CaseRecord, error) {
	payload := searchCasesRequest{
		Query:    queryText,
		Instance: filters.Instance,
		Limit:    filters.Limit,
		Year:     filters.Year,
	}

	var records []query.CaseRecord
	if err := c.post(ctx, "/mcp/zakononline/search_cases", payload, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CaseDetails fetches the full record for a case by number or document
// id. At least one identifier is required.
func (c *Client) CaseDetails(ctx context.Context, caseNumber, docID string) (*CaseDetails, error) {
	if caseNumber == "" && docID == "" {
		return nil, fmt.Errorf("%w: case number or document id required", errdefs.ErrTerminal)
	}

	var details CaseDetails
	if err := c.post(ctx, "/mcp/zakononline/get_case_details", caseDetailsRequest{CaseNumber: caseNumber, DocID: docID}, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (c *Client) post(ctx context.Context, path string, payload, dest any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("case search rate wait: %w", err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode case search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build case search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("case search: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close case search response body", slog.Any("error", closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &errdefs.HTTPError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode case search response: %w", err)
	}
	return nil
}
