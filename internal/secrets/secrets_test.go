package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Store behaviour shared by the writable backends.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			return NewFileStore(filepath.Join(t.TempDir(), "secrets.toml"))
		},
	}
}

func TestSetAndGet(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			if err := s.Set("BOT_TOKEN", "hello-world"); err != nil {
				t.Fatalf("Set: %v", err)
			}
			val, err := s.Get("BOT_TOKEN")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if val != "hello-world" {
				t.Errorf("expected 'hello-world', got %q", val)
			}
		})
	}
}

func TestGetNotFound(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := newStore().Get("MISSING")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSetOverwrites(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			s.Set("CHAT_ID", "first")
			s.Set("CHAT_ID", "second")

			val, err := s.Get("CHAT_ID")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if val != "second" {
				t.Errorf("expected 'second', got %q", val)
			}
		})
	}
}

func TestDeleteAndList(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			s.Set("A", "1")
			s.Set("B", "2")
			s.Set("C", "3")

			if err := s.Delete("B"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := s.Delete("NEVER"); err != nil {
				t.Errorf("Delete nonexistent: %v", err)
			}

			keys, err := s.List()
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if strings.Join(keys, ",") != "A,C" {
				t.Errorf("expected [A C], got %v", keys)
			}
		})
	}
}

func TestGetMultiple(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			s.Set("A", "val-a")
			s.Set("B", "")

			result, err := s.GetMultiple([]string{"A", "B", "MISSING"})
			if err != nil {
				t.Fatalf("GetMultiple: %v", err)
			}
			if result["A"] != "val-a" {
				t.Errorf("expected val-a, got %q", result["A"])
			}
			if v, ok := result["B"]; !ok || v != "" {
				t.Errorf("expected empty B present, got %q %v", v, ok)
			}
			if _, ok := result["MISSING"]; ok {
				t.Error("expected missing key to be absent")
			}
		})
	}
}

func TestFileStoreReadsSecretsToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	content := `BOT_TOKEN = "t1"
CHAT_ID = ""
NEZHA_PORT = 5555
DEBUG = true

[connections]
url = "ignored"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(path)
	got, err := s.GetMultiple([]string{"BOT_TOKEN", "CHAT_ID", "NEZHA_PORT", "DEBUG", "connections"})
	if err != nil {
		t.Fatalf("GetMultiple: %v", err)
	}
	if got["BOT_TOKEN"] != "t1" || got["CHAT_ID"] != "" {
		t.Errorf("unexpected string values: %v", got)
	}
	if got["NEZHA_PORT"] != "5555" {
		t.Errorf("expected integer rendered as 5555, got %q", got["NEZHA_PORT"])
	}
	if got["DEBUG"] != "true" {
		t.Errorf("expected bool rendered as true, got %q", got["DEBUG"])
	}
	if _, ok := got["connections"]; ok {
		t.Error("tables should not be returned as secrets")
	}
}

func TestFileStoreSetPreservesTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	os.WriteFile(path, []byte("[connections]\nurl = \"keep-me\"\n"), 0600)

	s := NewFileStore(path)
	if err := s.Set("BOT_TOKEN", "t2"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "keep-me") {
		t.Errorf("expected table preserved, got:\n%s", data)
	}
}

func TestFileStoreMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	os.WriteFile(path, []byte("this is = = not toml"), 0600)

	if _, err := NewFileStore(path).Get("X"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestEnvStore(t *testing.T) {
	t.Setenv("TETHER_TEST_SECRET", "from-env")

	var s EnvStore
	val, err := s.Get("TETHER_TEST_SECRET")
	if err != nil || val != "from-env" {
		t.Errorf("Get = %q, %v", val, err)
	}
	if _, err := s.Get("TETHER_TEST_SECRET_MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set("X", "y"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	if s, err := Open("toml", "x.toml"); err != nil || s == nil {
		t.Errorf("toml: %v", err)
	}
	if _, err := Open("env", ""); err != nil {
		t.Errorf("env: %v", err)
	}
	if _, err := Open("keychain", ""); err != nil {
		t.Errorf("keychain: %v", err)
	}
	if _, err := Open("vault", ""); err == nil {
		t.Error("expected error for unknown source")
	}
}
