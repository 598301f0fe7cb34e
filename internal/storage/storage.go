// Package storage provides a file-backed JSON document store.
//
// Documents are addressed by a key path; each document lives in
// <base>/<path...>.json and is written atomically under an flock.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("invalid key")
)

// Storage provides file-based JSON storage.
type Storage struct {
	basePath string
	mu       sync.Mutex
	locks    map[string]*FileLock
}

// New creates a new Storage rooted at basePath.
func New(basePath string) *Storage {
	return &Storage{
		basePath: basePath,
		locks:    make(map[string]*FileLock),
	}
}

// BasePath returns the storage root.
func (s *Storage) BasePath() string {
	return s.basePath
}

func (s *Storage) resolve(path []string) (string, error) {
	if len(path) == 0 {
		return "", ErrInvalidKey
	}
	for _, p := range path {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, `/\`) {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, p)
		}
	}
	return filepath.Join(append([]string{s.basePath}, path...)...), nil
}

// Get reads the document at path into v.
func (s *Storage) Get(ctx context.Context, path []string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	base, err := s.resolve(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(base + ".json")
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", strings.Join(path, "/"), err)
	}
	return nil
}

// Put writes v to path. The write goes to a temp file and is renamed into place.
func (s *Storage) Put(ctx context.Context, path []string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	base, err := s.resolve(path)
	if err != nil {
		return err
	}
	filePath := base + ".json"

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	lock := s.lockFor(filePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Delete removes the document at path. Deleting a missing document is not an error.
func (s *Storage) Delete(ctx context.Context, path []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	base, err := s.resolve(path)
	if err != nil {
		return err
	}
	filePath := base + ".json"

	lock := s.lockFor(filePath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Keys returns the document keys directly under path.
func (s *Storage) Keys(ctx context.Context, path ...string) ([]string, error) {
	dirPath := s.basePath
	if len(path) > 0 {
		var err error
		if dirPath, err = s.resolve(path); err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasSuffix(name, ".json") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys, nil
}

// Scan calls fn with the raw contents of every document directly under path.
// Unreadable files are skipped; an error from fn stops the scan.
func (s *Storage) Scan(ctx context.Context, path []string, fn func(key string, data json.RawMessage) error) error {
	keys, err := s.Keys(ctx, path...)
	if err != nil {
		return err
	}
	dirPath := s.basePath
	if len(path) > 0 {
		dirPath, _ = s.resolve(path)
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(dirPath, key+".json"))
		if err != nil {
			continue
		}
		if err := fn(key, json.RawMessage(data)); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether a document exists at path.
func (s *Storage) Exists(ctx context.Context, path []string) bool {
	base, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(base + ".json")
	return err == nil
}

func (s *Storage) lockFor(filePath string) *FileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[filePath]
	if !ok {
		lock = NewFileLock(filePath)
		s.locks[filePath] = lock
	}
	return lock
}
