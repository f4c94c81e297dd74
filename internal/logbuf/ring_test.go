package logbuf

import (
	"sync"
	"testing"
	"time"
)

func TestBufferBasicAppend(t *testing.T) {
	b := New(5)
	b.Append(StreamStdout, "line 1")
	b.Append(StreamStdout, "line 2\n")
	b.Append(StreamStdout, "line 3\r\n")

	lines := b.Last(0)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "line 1" || lines[1] != "line 2" || lines[2] != "line 3" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestBufferOverflow(t *testing.T) {
	b := New(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		b.Append(StreamStdout, s)
	}

	lines := b.Last(0)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "c" || lines[1] != "d" || lines[2] != "e" {
		t.Errorf("expected [c d e], got %v", lines)
	}
	if b.Seq() != 5 {
		t.Errorf("expected seq 5, got %d", b.Seq())
	}
}

func TestBufferStderrPrefix(t *testing.T) {
	b := New(5)
	b.Append(StreamStderr, "boom")
	b.Systemf("backend exited (exit code %d)", 1)

	lines := b.Last(0)
	if lines[0] != "ERROR: boom" {
		t.Errorf("expected stderr prefix, got %q", lines[0])
	}
	if lines[1] != "backend exited (exit code 1)" {
		t.Errorf("unexpected system line %q", lines[1])
	}
}

func TestBufferSince(t *testing.T) {
	b := New(10)
	b.Append(StreamStdout, "a")
	mark := b.Append(StreamStdout, "b").Seq
	b.Append(StreamStdout, "c")
	b.Append(StreamStderr, "d")

	got := b.Since(mark)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Text != "c" || got[1].Text != "d" {
		t.Errorf("unexpected entries: %v", got)
	}
	if got[1].Stream != StreamStderr {
		t.Errorf("expected stderr stream, got %v", got[1].Stream)
	}

	if rest := b.Since(b.Seq()); rest != nil {
		t.Errorf("expected nothing new, got %v", rest)
	}
}

func TestBufferSinceAfterEviction(t *testing.T) {
	b := New(2)
	for _, s := range []string{"a", "b", "c", "d"} {
		b.Append(StreamStdout, s)
	}

	got := b.Since(0)
	if len(got) != 2 || got[0].Text != "c" {
		t.Errorf("expected surviving entries [c d], got %v", got)
	}
}

func TestBufferAppendBlock(t *testing.T) {
	b := New(10)
	b.AppendBlock(StreamStdout, "one\ntwo\n")
	b.AppendBlock(StreamStdout, "")

	lines := b.Last(0)
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestBufferLast(t *testing.T) {
	b := New(10)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		b.Append(StreamStdout, s)
	}

	last := b.Last(3)
	if len(last) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(last))
	}
	if last[0] != "c" || last[1] != "d" || last[2] != "e" {
		t.Errorf("expected [c d e], got %v", last)
	}
	if len(b.Last(50)) != 5 {
		t.Errorf("expected all 5 lines when asking for more")
	}
}

func TestBufferNotifyCoalesces(t *testing.T) {
	b := New(10)
	b.Append(StreamStdout, "a")
	b.Append(StreamStdout, "b")

	select {
	case <-b.Notify():
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}

	select {
	case <-b.Notify():
		t.Fatal("expected notifications to coalesce")
	default:
	}
}

func TestBufferConcurrentAppend(t *testing.T) {
	b := New(1000)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Append(StreamStdout, "x")
			}
		}()
	}
	wg.Wait()

	entries := b.Entries()
	if len(entries) != 400 {
		t.Fatalf("expected 400 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq != entries[i-1].Seq+1 {
			t.Fatalf("sequence gap at %d: %d after %d", i, entries[i].Seq, entries[i-1].Seq)
		}
	}
}

func TestBufferEmpty(t *testing.T) {
	b := New(5)
	if lines := b.Last(0); len(lines) != 0 {
		t.Errorf("expected empty, got %v", lines)
	}
	if b.Text() != "" {
		t.Errorf("expected empty text, got %q", b.Text())
	}
}
