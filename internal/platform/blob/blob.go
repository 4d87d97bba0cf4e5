// Package blob stores generated artifacts such as record exports.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Drivers accepted by the EXPORT_DRIVER setting.
const (
	DriverFS = "fs"
	DriverS3 = "s3"
)

// Store writes whole objects under a key and returns their location.
type Store interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// FSStore writes objects below a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates root when missing.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob: fs root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Put writes body to root/key, replacing any existing file.
func (s *FSStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("blob: invalid key %q", key)
	}
	path := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("blob: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("blob: rename: %w", err)
	}
	return path, nil
}
