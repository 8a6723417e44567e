// Package storage persists uploaded and generated images onto the local
// filesystem. Image files are an auxiliary artifact: the generation record is
// the source of truth, and a failed file write never fails the request.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	originalsFolder   = "originals"
	generationsFolder = "generations"
)

// FileStore writes image assets under a base directory and maps stored keys
// to public URLs below a configured base URL.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath. baseURL is the
// public prefix under which stored keys are served.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}, nil
}

// SaveOriginal stores the uploaded source image and returns its public URL.
func (s *FileStore) SaveOriginal(ctx context.Context, generationID, filename string, data []byte) (string, error) {
	key := path.Join(originalsFolder, generationID+"-"+safeFilename(filename))
	return s.write(ctx, key, data)
}

// SaveGenerated stores the generated PNG and returns its public URL.
func (s *FileStore) SaveGenerated(ctx context.Context, generationID string, data []byte) (string, error) {
	key := path.Join(generationsFolder, generationID+".png")
	return s.write(ctx, key, data)
}

func (s *FileStore) write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if s.baseURL == "" {
		return cleanKey, nil
	}
	return s.baseURL + "/" + cleanKey, nil
}

// safeFilename strips path components and normalizes an uploaded filename so
// it cannot escape the storage folder.
func safeFilename(filename string) string {
	filename = strings.TrimSpace(filename)
	filename = filepath.Base(filepath.FromSlash(strings.ReplaceAll(filename, "\\", "/")))
	filename = strings.ReplaceAll(filename, " ", "_")
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return "upload"
	}
	return filename
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
