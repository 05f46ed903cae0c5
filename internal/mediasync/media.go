package mediasync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ugfund/ugfsync/internal/blob"
	"github.com/ugfund/ugfsync/internal/imaging"
)

const (
	// DefaultDownloadTimeout bounds one image download.
	DefaultDownloadTimeout = 30 * time.Second
	userAgent              = "UGF-Webhook/1.0"
	maxImageBytes          = 25 << 20
)

// ErrInvalidContentType is returned when a download is not an image.
var ErrInvalidContentType = errors.New("mediasync: invalid content type")

// Media uploads and removes a record's image.
type Media interface {
	Sync(ctx context.Context, category Category, recordID, imageURL string) (string, error)
	Delete(ctx context.Context, category Category, recordID string) error
}

// Synchronizer downloads attachment images, re-encodes them and writes them to the blob store.
type Synchronizer struct {
	store      blob.Store
	httpClient *http.Client
	timeout    time.Duration
}

func NewSynchronizer(store blob.Store, httpClient *http.Client, timeout time.Duration) *Synchronizer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &Synchronizer{store: store, httpClient: httpClient, timeout: timeout}
}

// Sync stores the image at imageURL under the record's key, overwriting any
// previous version, and returns the public URL.
func (s *Synchronizer) Sync(ctx context.Context, category Category, recordID, imageURL string) (string, error) {
	data, err := s.download(ctx, imageURL)
	if err != nil {
		return "", err
	}
	encoded, _, err := imaging.ToJPEG(data)
	if err != nil {
		return "", fmt.Errorf("re-encode %s: %w", recordID, err)
	}
	stored, err := s.store.Put(ctx, category.BlobPath(recordID), encoded, blob.PutOptions{
		ContentType:    "image/jpeg",
		AllowOverwrite: true,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", recordID, err)
	}
	return stored.URL, nil
}

// Delete removes the record's image.
func (s *Synchronizer) Delete(ctx context.Context, category Category, recordID string) error {
	err := s.store.Delete(ctx, category.BlobPath(recordID))
	if errors.Is(err, blob.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", recordID, err)
	}
	return nil
}

func (s *Synchronizer) download(ctx context.Context, imageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download image: %s", resp.Status)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("download image: larger than %d bytes", maxImageBytes)
	}
	return data, nil
}
