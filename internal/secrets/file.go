package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// FileStore reads secrets from top-level keys of a TOML file. Non-string
// scalars are returned in their TOML text form; tables are ignored on read
// and preserved on write. The file is re-read on every call so edits show
// up without restarting.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store over the TOML file at path. The file need
// not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) loadRaw() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("reading secrets %s: %w", s.path, err)
	}

	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing secrets %s: %w", s.path, err)
	}
	return raw, nil
}

func (s *FileStore) load() (map[string]string, error) {
	raw, err := s.loadRaw()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			values[k] = v
		case map[string]any, []any:
			// tables and arrays are not secrets
		default:
			values[k] = fmt.Sprint(v)
		}
	}
	return values, nil
}

func (s *FileStore) save(raw map[string]any) error {
	data, err := toml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encoding secrets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return "", err
	}
	val, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}

func (s *FileStore) GetMultiple(keys []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := values[key]; ok {
			result[key] = val
		}
	}
	return result, nil
}

func (s *FileStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.loadRaw()
	if err != nil {
		return err
	}
	raw[key] = value
	return s.save(raw)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.loadRaw()
	if err != nil {
		return err
	}
	if _, ok := raw[key]; !ok {
		return nil
	}
	delete(raw, key)
	return s.save(raw)
}
