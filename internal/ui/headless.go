package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/benaskins/tether/internal/supervisor"
)

// RunHeadless drives the same refresh cycle without a terminal UI. Child
// output is written to w as it arrives, and a status line is written
// whenever the phase or banner message changes. It returns when ctx is
// cancelled.
func RunHeadless(ctx context.Context, sup Supervisor, w io.Writer, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	log := sup.Log()
	var lastSeq uint64
	var last supervisor.Status

	flush := func() {
		for _, e := range log.Since(lastSeq) {
			fmt.Fprintln(w, e.String())
			lastSeq = e.Seq
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st := sup.Cycle(ctx)
		flush()
		if st.Phase != last.Phase || st.Message != last.Message {
			fmt.Fprintf(w, "[%s] %s\n", st.Phase, st.Message)
			last = st
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				flush()
				return nil
			case <-log.Notify():
				flush()
			case <-ticker.C:
				break wait
			}
		}
	}
}
