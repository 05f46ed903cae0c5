// Package airtable is a small REST client for the records and webhooks APIs.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.airtable.com/v0"

const maxErrorBody = 4096

// Client calls the Airtable API with one bearer token.
type Client struct {
	baseURL    string
	token      string
	limiter    *RateLimiter
	httpClient *http.Client
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Token      string
	Limiter    *RateLimiter
	HTTPClient *http.Client
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(DefaultRate)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		limiter:    limiter,
		httpClient: httpClient,
	}
}

// Enabled reports whether the client has a token.
func (c *Client) Enabled() bool {
	return c != nil && c.token != ""
}

// ListWebhookPayloads fetches one page of payloads. An empty cursor starts
// from the oldest payload Airtable still retains.
func (c *Client) ListWebhookPayloads(ctx context.Context, baseID, webhookID, cursor string) (PayloadsPage, error) {
	if baseID == "" || webhookID == "" {
		return PayloadsPage{}, fmt.Errorf("list payloads: %w", ErrNotConfigured)
	}
	query := url.Values{}
	if cursor = strings.TrimSpace(cursor); cursor != "" {
		query.Set("cursor", cursor)
	}
	var page PayloadsPage
	path := "/bases/" + url.PathEscape(baseID) + "/webhooks/" + url.PathEscape(webhookID) + "/payloads"
	if err := c.do(ctx, http.MethodGet, path, query, &page); err != nil {
		return PayloadsPage{}, err
	}
	return page, nil
}

// RefreshWebhook extends the webhook's expiration.
func (c *Client) RefreshWebhook(ctx context.Context, baseID, webhookID string) (RefreshResult, error) {
	if baseID == "" || webhookID == "" {
		return RefreshResult{}, fmt.Errorf("refresh webhook: %w", ErrNotConfigured)
	}
	var result RefreshResult
	path := "/bases/" + url.PathEscape(baseID) + "/webhooks/" + url.PathEscape(webhookID) + "/refresh"
	if err := c.do(ctx, http.MethodPost, path, nil, &result); err != nil {
		return RefreshResult{}, err
	}
	return result, nil
}

// GetRecord fetches a single record.
func (c *Client) GetRecord(ctx context.Context, baseID, tableID, recordID string) (Record, error) {
	if baseID == "" || tableID == "" {
		return Record{}, fmt.Errorf("get record: %w", ErrNotConfigured)
	}
	var record Record
	path := "/" + url.PathEscape(baseID) + "/" + url.PathEscape(tableID) + "/" + url.PathEscape(recordID)
	if err := c.do(ctx, http.MethodGet, path, nil, &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// ListRecords follows offset pagination until every matching record is read.
func (c *Client) ListRecords(ctx context.Context, baseID, tableID string, opts ListOptions) ([]Record, error) {
	if baseID == "" || tableID == "" {
		return nil, fmt.Errorf("list records: %w", ErrNotConfigured)
	}
	path := "/" + url.PathEscape(baseID) + "/" + url.PathEscape(tableID)

	var (
		records []Record
		offset  string
	)
	for {
		query := url.Values{}
		if opts.View != "" {
			query.Set("view", opts.View)
		}
		if opts.FilterByFormula != "" {
			query.Set("filterByFormula", opts.FilterByFormula)
		}
		for _, field := range opts.Fields {
			query.Add("fields[]", field)
		}
		if opts.PageSize > 0 {
			query.Set("pageSize", strconv.Itoa(opts.PageSize))
		}
		if offset != "" {
			query.Set("offset", offset)
		}

		var page struct {
			Records []Record `json:"records"`
			Offset  string   `json:"offset"`
		}
		if err := c.do(ctx, http.MethodGet, path, query, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	if !c.Enabled() {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotConfigured)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("airtable rate limiter: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build airtable request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("airtable %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := c.limiter.CheckResponse(resp); err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode airtable %s %s: %w", method, path, err)
	}
	return nil
}
