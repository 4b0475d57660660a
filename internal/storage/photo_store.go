// Package storage holds the evidence photo adapter. The core only ever
// keeps the returned URL; raw bytes never touch the protocol record.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PhotoStore uploads an evidence photo and returns its public URL.
type PhotoStore interface {
	Upload(ctx context.Context, data []byte, protocolNumber, slot string) (string, error)
}

// DiskPhotoStore writes photos under a base directory and maps them to
// a public base URL.
type DiskPhotoStore struct {
	baseDir string
	baseURL string
}

// NewDiskPhotoStore builds the adapter.
func NewDiskPhotoStore(baseDir, baseURL string) *DiskPhotoStore {
	return &DiskPhotoStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload stores the photo as <base>/<number>/<slot>-<ts>.jpg.
func (s *DiskPhotoStore) Upload(_ context.Context, data []byte, protocolNumber, slot string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty photo payload")
	}
	dir := filepath.Join(s.baseDir, sanitize(protocolNumber))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%d.jpg", sanitize(slot), time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, sanitize(protocolNumber), name), nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
