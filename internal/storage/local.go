package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LocalUploader writes media below root and serves it under baseURL
// (the MEDIA_URL static route).
type LocalUploader struct {
	root    string
	baseURL string
}

func NewLocalUploader(root, baseURL string) *LocalUploader {
	return &LocalUploader{root: root, baseURL: baseURL}
}

func (u *LocalUploader) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(u.root, clean), nil
}

func (u *LocalUploader) Upload(ctx context.Context, key string, data []byte) (*UploadResult, error) {
	p, err := u.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write media file: %w", err)
	}
	return &UploadResult{Key: key, URL: joinURL(u.baseURL, key), Size: int64(len(data))}, nil
}

func (u *LocalUploader) Delete(ctx context.Context, key string) error {
	p, err := u.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}

// MemoryUploader keeps objects in memory. Used by tests.
type MemoryUploader struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{objects: make(map[string][]byte)}
}

func (u *MemoryUploader) Upload(ctx context.Context, key string, data []byte) (*UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = append([]byte(nil), data...)
	return &UploadResult{Key: key, URL: "/media/" + key, Size: int64(len(data))}, nil
}

func (u *MemoryUploader) Delete(ctx context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.objects, key)
	return nil
}

// Object returns a stored object.
func (u *MemoryUploader) Object(key string) ([]byte, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	data, ok := u.objects[key]
	return data, ok
}
