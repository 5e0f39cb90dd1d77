package console

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const storageFile = "console.json"

// FileStorage persists values as a JSON object in a single file.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage stores values in dir/console.json. An empty dir means ~/.openremote.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(home, ".openremote")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStorage{path: filepath.Join(dir, storageFile)}, nil
}

// Path returns the backing file.
func (s *FileStorage) Path() string {
	return s.path
}

func (s *FileStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (s *FileStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	data[key] = value
	return s.save(data)
}

func (s *FileStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return s.save(data)
}

func (s *FileStorage) Close() error {
	return nil
}

func (s *FileStorage) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal storage file: %w", err)
	}
	return data, nil
}

func (s *FileStorage) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	return os.Rename(tmp, s.path)
}
