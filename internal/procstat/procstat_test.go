package procstat

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestSampleSelf(t *testing.T) {
	u, err := Sample(context.Background(), os.Getpid())
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if u.RSSBytes == 0 {
		t.Error("expected non-zero RSS for the test process")
	}
	if u.Threads <= 0 {
		t.Errorf("expected positive thread count, got %d", u.Threads)
	}
}

func TestSampleMissingProcess(t *testing.T) {
	// pid values this high are never allocated on Linux or macOS
	if _, err := Sample(context.Background(), 1<<30); err == nil {
		t.Error("expected error for missing pid")
	}
}

func TestUsageString(t *testing.T) {
	s := Usage{CPUPercent: 12.34, RSSBytes: 2 * 1024 * 1024, Threads: 4}.String()
	for _, want := range []string{"cpu 12.3%", "rss 2.0 MiB", "threads 4"} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %q in %q", want, s)
		}
	}
}
