package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultVercelAPIURL is the Vercel Blob API root.
const DefaultVercelAPIURL = "https://blob.vercel-storage.com"

const (
	vercelAPIVersion = "7"
	listPageSize     = 1000
)

// VercelStore talks to the Vercel Blob HTTP API with a read-write token.
type VercelStore struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

func NewVercelStore(apiURL, token string, httpClient *http.Client) *VercelStore {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = DefaultVercelAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &VercelStore{apiURL: apiURL, token: strings.TrimSpace(token), httpClient: httpClient}
}

func (s *VercelStore) Put(ctx context.Context, pathname string, data []byte, opts PutOptions) (Blob, error) {
	pathname, err := cleanPath(pathname)
	if err != nil {
		return Blob{}, err
	}
	req, err := s.newRequest(ctx, http.MethodPut, "/"+pathname, bytes.NewReader(data))
	if err != nil {
		return Blob{}, err
	}
	if opts.ContentType != "" {
		req.Header.Set("x-content-type", opts.ContentType)
	}
	req.Header.Set("x-add-random-suffix", "0")
	if opts.AllowOverwrite {
		req.Header.Set("x-allow-overwrite", "1")
	}

	var out Blob
	if err := s.send(req, "put", &out); err != nil {
		return Blob{}, err
	}
	out.Size = int64(len(data))
	if out.Pathname == "" {
		out.Pathname = pathname
	}
	return out, nil
}

func (s *VercelStore) Delete(ctx context.Context, pathname string) error {
	pathname, err := cleanPath(pathname)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string][]string{"urls": {pathname}})
	if err != nil {
		return fmt.Errorf("encode blob delete: %w", err)
	}
	req, err := s.newRequest(ctx, http.MethodPost, "/delete", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.send(req, "delete", nil)
}

func (s *VercelStore) List(ctx context.Context, prefix string) ([]Blob, error) {
	var (
		out    []Blob
		cursor string
	)
	for {
		query := url.Values{}
		query.Set("limit", fmt.Sprint(listPageSize))
		if prefix != "" {
			query.Set("prefix", prefix)
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		req, err := s.newRequest(ctx, http.MethodGet, "/?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		var page struct {
			Blobs   []Blob `json:"blobs"`
			Cursor  string `json:"cursor"`
			HasMore bool   `json:"hasMore"`
		}
		if err := s.send(req, "list", &page); err != nil {
			return nil, err
		}
		out = append(out, page.Blobs...)
		if !page.HasMore || page.Cursor == "" {
			return out, nil
		}
		cursor = page.Cursor
	}
}

func (s *VercelStore) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if s.token == "" {
		return nil, fmt.Errorf("blob: missing read-write token")
	}
	req, err := http.NewRequestWithContext(ctx, method, s.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build blob request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("x-api-version", vercelAPIVersion)
	return req, nil
}

func (s *VercelStore) send(req *http.Request, operation string, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blob %s: %w", operation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(payload)))
		}
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: string(payload)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode blob %s response: %w", operation, err)
	}
	return nil
}
