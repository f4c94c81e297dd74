package secrets

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// EnvStore reads secrets from the supervisor's own environment. It is
// read-only.
type EnvStore struct{}

func (EnvStore) Get(key string) (string, error) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}

func (EnvStore) GetMultiple(keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}

func (EnvStore) List() ([]string, error) {
	var keys []string
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (EnvStore) Set(key, value string) error {
	return ErrReadOnly
}

func (EnvStore) Delete(key string) error {
	return ErrReadOnly
}
