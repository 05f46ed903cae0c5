// Package blob stores the re-encoded site images.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Delete implementations that can tell the object is missing.
var ErrNotFound = errors.New("blob: not found")

// Blob describes one stored object.
type Blob struct {
	URL         string    `json:"url"`
	Pathname    string    `json:"pathname"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// PutOptions controls how an object is written.
type PutOptions struct {
	ContentType    string
	AllowOverwrite bool
}

// Store is the object storage used for site media.
type Store interface {
	Put(ctx context.Context, pathname string, data []byte, opts PutOptions) (Blob, error)
	Delete(ctx context.Context, pathname string) error
	List(ctx context.Context, prefix string) ([]Blob, error)
}

// APIError is a non-2xx response from the blob API.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("blob %s: status %d: %s", e.Operation, e.StatusCode, strings.TrimSpace(e.Body))
}

func cleanPath(pathname string) (string, error) {
	pathname = strings.TrimLeft(strings.TrimSpace(pathname), "/")
	if pathname == "" || strings.Contains(pathname, "..") {
		return "", fmt.Errorf("blob: invalid pathname %q", pathname)
	}
	return pathname, nil
}
