package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore keeps objects under a local directory for development. URLs point
// at the server's /media/ static route.
type DiskStore struct {
	root      string
	publicURL string
}

func NewDiskStore(root, publicURL string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob: empty disk root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &DiskStore{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Root is the directory served under /media/.
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) Put(_ context.Context, pathname string, data []byte, opts PutOptions) (Blob, error) {
	pathname, err := cleanPath(pathname)
	if err != nil {
		return Blob{}, err
	}
	target := filepath.Join(s.root, filepath.FromSlash(pathname))
	if !opts.AllowOverwrite {
		if _, err := os.Stat(target); err == nil {
			return Blob{}, fmt.Errorf("blob: %s already exists", pathname)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Blob{}, fmt.Errorf("create blob parent: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Blob{}, fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return Blob{}, fmt.Errorf("commit blob: %w", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		return Blob{}, fmt.Errorf("stat blob: %w", err)
	}
	return s.blobFor(pathname, info, opts.ContentType), nil
}

func (s *DiskStore) Delete(_ context.Context, pathname string) error {
	pathname, err := cleanPath(pathname)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(pathname)))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *DiskStore) List(_ context.Context, prefix string) ([]Blob, error) {
	var out []Blob
	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		pathname := filepath.ToSlash(rel)
		if !strings.HasPrefix(pathname, prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		out = append(out, s.blobFor(pathname, info, ""))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pathname < out[j].Pathname })
	return out, nil
}

func (s *DiskStore) blobFor(pathname string, info fs.FileInfo, contentType string) Blob {
	return Blob{
		URL:         s.publicURL + "/media/" + pathname,
		Pathname:    pathname,
		ContentType: contentType,
		Size:        info.Size(),
		UploadedAt:  info.ModTime().UTC(),
	}
}
