// Package envfile turns secrets into the child's environment: it sets them
// on the current process and writes them to a shell-sourceable script.
package envfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/benaskins/tether/internal/secrets"
)

// Header is the first line of every rendered script.
const Header = "#!/bin/bash"

var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Var is a single environment variable.
type Var struct {
	Key   string
	Value string
}

// Vars is an ordered list of variables. Order is preserved in the script.
type Vars []Var

// Keys returns the variable names in order.
func (v Vars) Keys() []string {
	keys := make([]string, len(v))
	for i, kv := range v {
		keys[i] = kv.Key
	}
	return keys
}

// Map returns the variables as a map.
func (v Vars) Map() map[string]string {
	m := make(map[string]string, len(v))
	for _, kv := range v {
		m[kv.Key] = kv.Value
	}
	return m
}

// ValidateKey reports whether key is usable as a shell variable name.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid environment key %q", key)
	}
	return nil
}

// Resolve reads keys from store. Keys the store does not have resolve to
// the empty string.
func Resolve(store secrets.Store, keys []string) (Vars, error) {
	for _, k := range keys {
		if err := ValidateKey(k); err != nil {
			return nil, err
		}
	}

	values, err := store.GetMultiple(keys)
	if err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return nil, fmt.Errorf("reading secrets: %w", err)
	}

	vars := make(Vars, len(keys))
	for i, k := range keys {
		vars[i] = Var{Key: k, Value: values[k]}
	}
	return vars, nil
}

// Quote wraps s in single quotes for a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Render returns the script for vars: the header, then one export line
// per variable.
func Render(vars Vars) []byte {
	var buf bytes.Buffer
	buf.WriteString(Header)
	buf.WriteByte('\n')
	for _, kv := range vars {
		fmt.Fprintf(&buf, "export %s=%s\n", kv.Key, Quote(kv.Value))
	}
	return buf.Bytes()
}

// Materialize exports vars into the current process environment (when
// setenv is true) and overwrites path with the rendered script. The write
// is atomic.
func Materialize(path string, vars Vars, setenv bool) error {
	for _, kv := range vars {
		if err := ValidateKey(kv.Key); err != nil {
			return err
		}
	}

	if setenv {
		for _, kv := range vars {
			if err := os.Setenv(kv.Key, kv.Value); err != nil {
				return fmt.Errorf("setting %s: %w", kv.Key, err)
			}
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating env dir: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, Render(vars), 0600); err != nil {
		return fmt.Errorf("writing env file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing env file: %w", err)
	}
	return nil
}
