// Package relay drains a child process's output streams into a log buffer.
//
// Each stream gets its own goroutine doing blocking line reads, so a line
// becomes visible as soon as the child writes its newline.
package relay

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/benaskins/tether/internal/logbuf"
)

// MaxLine is the longest line delivered as one entry. Longer lines are
// split into several entries.
const MaxLine = 64 * 1024

// Sink receives drained lines. *logbuf.Buffer implements it.
type Sink interface {
	Append(stream logbuf.Stream, text string) logbuf.Entry
}

// Drain reads r line by line until end of stream, appending each line to
// sink tagged with stream. A final line without a trailing newline is still
// delivered. End of stream and reads on a closed pipe return nil.
func Drain(r io.Reader, stream logbuf.Stream, sink Sink) error {
	br := bufio.NewReaderSize(r, MaxLine)
	for {
		line, _, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) {
				return nil
			}
			return err
		}
		sink.Append(stream, string(line))
	}
}

// Relay owns the drain goroutines for one child.
type Relay struct {
	wg   sync.WaitGroup
	done chan struct{}
}

// Start launches one drain loop per non-nil stream and returns immediately.
func Start(stdout, stderr io.Reader, sink Sink, logger *slog.Logger) *Relay {
	r := &Relay{done: make(chan struct{})}

	drain := func(src io.Reader, stream logbuf.Stream) {
		defer r.wg.Done()
		if err := Drain(src, stream, sink); err != nil {
			// A failed read means the stream is gone; nothing to escalate.
			logger.Debug("output stream closed with error", "stream", stream, "error", err)
		}
	}

	if stdout != nil {
		r.wg.Add(1)
		go drain(stdout, logbuf.StreamStdout)
	}
	if stderr != nil {
		r.wg.Add(1)
		go drain(stderr, logbuf.StreamStderr)
	}

	go func() {
		r.wg.Wait()
		close(r.done)
	}()
	return r
}

// Done is closed once every drain loop has returned.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}
