// Package procstat samples resource usage of the supervised child.
package procstat

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

// Usage is a point-in-time resource sample for one process.
type Usage struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Threads    int32   `json:"threads"`
}

// String formats the sample for the status banner.
func (u Usage) String() string {
	return fmt.Sprintf("cpu %.1f%% · rss %s · threads %d", u.CPUPercent, humanize.IBytes(u.RSSBytes), u.Threads)
}

// Sample reads CPU, memory and thread count for pid. CPU is averaged over
// the process lifetime, which needs no second sample.
func Sample(ctx context.Context, pid int) (Usage, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Usage{}, fmt.Errorf("inspecting pid %d: %w", pid, err)
	}

	var u Usage
	if u.CPUPercent, err = p.CPUPercentWithContext(ctx); err != nil {
		return Usage{}, fmt.Errorf("cpu for pid %d: %w", pid, err)
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("memory for pid %d: %w", pid, err)
	}
	u.RSSBytes = mem.RSS
	if threads, err := p.NumThreadsWithContext(ctx); err == nil {
		u.Threads = threads
	}
	return u, nil
}
