package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/recipebox/backend/internal/domain"
)

// FileStore keeps the whole key space in a single JSON document on disk.
// The file is read once on first use and rewritten atomically (temp file +
// rename) on every Set or Delete.
type FileStore struct {
	mu       sync.Mutex
	filePath string
	data     map[string]string
	loaded   bool
}

// NewFileStore creates a file-backed store. The file and its directory are
// created lazily on the first write.
func NewFileStore(filePath string) *FileStore {
	return &FileStore{filePath: filePath}
}

// Get implements domain.KeyValueStore.
func (s *FileStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return "", err
	}

	value, ok := s.data[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return value, nil
}

// Set implements domain.KeyValueStore.
func (s *FileStore) Set(ctx context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}

	previous, existed := s.data[key]
	s.data[key] = value
	if err := s.writeLocked(); err != nil {
		// keep memory consistent with disk
		if existed {
			s.data[key] = previous
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// Delete implements domain.KeyValueStore.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}

	previous, existed := s.data[key]
	if !existed {
		return nil
	}
	delete(s.data, key)
	if err := s.writeLocked(); err != nil {
		s.data[key] = previous
		return err
	}
	return nil
}

// Close is a no-op; every write is already on disk.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}

	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = make(map[string]string)
			s.loaded = true
			return nil
		}
		return fmt.Errorf("%w: failed to read store file: %v", domain.ErrStorageUnavailable, err)
	}

	data := make(map[string]string)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("%w: failed to parse store file %s: %v", domain.ErrStorageUnavailable, s.filePath, err)
		}
	}

	s.data = data
	s.loaded = true
	return nil
}

func (s *FileStore) writeLocked() error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create store directory: %v", domain.ErrStorageUnavailable, err)
	}

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0o600); err != nil {
		return fmt.Errorf("%w: failed to write store file: %v", domain.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("%w: failed to rename store file: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}
