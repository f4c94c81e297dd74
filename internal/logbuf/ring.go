package logbuf

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stream identifies where a log entry came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	// StreamSystem marks lines written by the supervisor itself.
	StreamSystem Stream = "system"
)

// errorPrefix marks stderr lines in rendered output.
const errorPrefix = "ERROR: "

// Entry is a single line of output tagged with its origin.
type Entry struct {
	Seq    uint64    `json:"seq"`
	Stream Stream    `json:"stream"`
	Time   time.Time `json:"time"`
	Text   string    `json:"text"`
}

// String renders the entry the way it appears in the log panel.
func (e Entry) String() string {
	if e.Stream == StreamStderr {
		return errorPrefix + e.Text
	}
	return e.Text
}

// Buffer is a thread-safe ring of the last N log entries. Every entry gets
// a sequence number in append order, so readers can ask for what arrived
// since the last entry they saw.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	full    bool
	seq     uint64
	notify  chan struct{}
}

// New creates a buffer that keeps the last n entries.
func New(n int) *Buffer {
	if n <= 0 {
		n = 1000
	}
	return &Buffer{
		entries: make([]Entry, n),
		size:    n,
		notify:  make(chan struct{}, 1),
	}
}

// Append stores one line and wakes any reader waiting on Notify.
func (b *Buffer) Append(stream Stream, text string) Entry {
	b.mu.Lock()
	b.seq++
	e := Entry{
		Seq:    b.seq,
		Stream: stream,
		Time:   time.Now(),
		Text:   strings.TrimRight(text, "\r\n"),
	}
	b.entries[b.pos] = e
	b.pos = (b.pos + 1) % b.size
	if b.pos == 0 {
		b.full = true
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return e
}

// Systemf appends a supervisor-authored line.
func (b *Buffer) Systemf(format string, args ...any) Entry {
	return b.Append(StreamSystem, fmt.Sprintf(format, args...))
}

// AppendBlock splits text on newlines and appends each line. A trailing
// newline does not produce an empty entry.
func (b *Buffer) AppendBlock(stream Stream, text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		b.Append(stream, line)
	}
}

// Notify returns a channel that receives a value after appends. Multiple
// appends between reads coalesce into one notification.
func (b *Buffer) Notify() <-chan struct{} {
	return b.notify
}

// Seq returns the sequence number of the newest entry, 0 if empty.
func (b *Buffer) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Entries returns all stored entries, oldest first.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entriesLocked()
}

func (b *Buffer) entriesLocked() []Entry {
	if !b.full {
		result := make([]Entry, b.pos)
		copy(result, b.entries[:b.pos])
		return result
	}

	result := make([]Entry, b.size)
	copy(result, b.entries[b.pos:])
	copy(result[b.size-b.pos:], b.entries[:b.pos])
	return result
}

// Since returns the stored entries with a sequence number greater than seq.
// Entries already evicted from the ring are not returned.
func (b *Buffer) Since(seq uint64) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if seq >= b.seq {
		return nil
	}
	all := b.entriesLocked()
	for i, e := range all {
		if e.Seq > seq {
			return all[i:]
		}
	}
	return nil
}

// Last returns the last n rendered lines. If fewer exist, returns all of them.
func (b *Buffer) Last(n int) []string {
	all := b.Entries()
	if n > 0 && n < len(all) {
		all = all[len(all)-n:]
	}
	lines := make([]string, len(all))
	for i, e := range all {
		lines[i] = e.String()
	}
	return lines
}

// Text returns the whole buffer rendered as newline-separated text.
func (b *Buffer) Text() string {
	return strings.Join(b.Last(0), "\n")
}
