// Package secrets provides the key/value source the child's environment is
// built from.
//
// Three backends implement Store:
//   - FileStore: a TOML file of top-level key = "value" pairs, the same
//     layout as a dashboard's secrets.toml
//   - SystemStore: macOS Keychain generic passwords under service
//     "com.tether" (memory-backed on other platforms)
//   - EnvStore: the supervisor's own process environment
//
// AuditedStore wraps any of them and records every access.
package secrets

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a secret does not exist in the store.
var ErrNotFound = errors.New("secret not found")

// ErrReadOnly is returned by stores that cannot be written.
var ErrReadOnly = errors.New("secret store is read-only")

// Store is the interface for secret storage operations.
type Store interface {
	Set(key, value string) error
	Get(key string) (string, error)
	List() ([]string, error)
	Delete(key string) error
	GetMultiple(keys []string) (map[string]string, error)
}

// Open returns the store for a configured source name.
func Open(source, path string) (Store, error) {
	switch source {
	case "toml":
		return NewFileStore(path), nil
	case "keychain":
		return NewSystemStore(), nil
	case "env":
		return EnvStore{}, nil
	default:
		return nil, fmt.Errorf("unknown secret source %q", source)
	}
}
