package secrets

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benaskins/tether/internal/audit"
)

func newAudited(t *testing.T) (*AuditedStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := audit.NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return NewAuditedStore(NewMemoryStore(), l, "cli"), path
}

func auditEntries(t *testing.T, path string) []audit.Entry {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var entries []audit.Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var e audit.Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditedStoreRecordsAccess(t *testing.T) {
	s, path := newAudited(t)

	s.Set("BOT_TOKEN", "secret-value")
	s.Get("BOT_TOKEN")
	s.Delete("BOT_TOKEN")

	entries := auditEntries(t, path)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []audit.Action{audit.ActionSecretWrite, audit.ActionSecretRead, audit.ActionSecretDelete}
	for i, e := range entries {
		if e.Action != want[i] || e.Key != "BOT_TOKEN" || e.Actor != "cli" {
			t.Errorf("entry %d = %+v, want action %s", i, e, want[i])
		}
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "secret-value") {
		t.Error("audit log must never contain secret values")
	}
}

func TestAuditedStoreGetMultipleRecordsMissing(t *testing.T) {
	s, path := newAudited(t)
	s.inner.Set("BOT_TOKEN", "t1")

	result, err := s.WithTrigger("session_start").GetMultiple([]string{"BOT_TOKEN", "CHAT_ID"})
	if err != nil {
		t.Fatalf("GetMultiple: %v", err)
	}
	if result["BOT_TOKEN"] != "t1" {
		t.Errorf("unexpected result %v", result)
	}

	entries := auditEntries(t, path)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Trigger != "session_start" || entries[0].Error != "" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Key != "CHAT_ID" || entries[1].Error == "" {
		t.Errorf("expected missing CHAT_ID recorded with error, got %+v", entries[1])
	}
}
