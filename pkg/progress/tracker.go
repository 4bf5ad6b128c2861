// Package progress reports how many bytes an archive or restore run has
// processed so far.
package progress

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const tick = 250 * time.Millisecond

// Tracker counts processed bytes and periodically prints a progress line.
// A nil *Tracker is valid and does nothing.
type Tracker struct {
	processed atomic.Uint64
	total     atomic.Uint64

	out      io.Writer
	testMode bool

	mu      sync.Mutex
	running bool
	done    chan struct{}
	exited  chan struct{}
}

// New returns a tracker printing to out.
func New(out io.Writer) *Tracker {
	return &Tracker{out: out}
}

// SetTestMode switches to minimal output at 25% steps.
func (t *Tracker) SetTestMode(enabled bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.testMode = enabled
}

// Start resets the counter and begins reporting against total bytes.
// A total of zero means the size is not known yet; percentages are then
// withheld until SetTotal is called. Calling Start on a running tracker only
// updates the total.
func (t *Tracker) Start(total uint64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.SetTotal(total)
	if t.running {
		return
	}
	t.processed.Store(0)
	t.done = make(chan struct{})
	t.exited = make(chan struct{})
	t.running = true
	go t.report(t.testMode, t.done, t.exited)
}

// SetTotal changes the expected byte count.
func (t *Tracker) SetTotal(total uint64) {
	if t == nil {
		return
	}
	t.total.Store(total)
}

// Stop ends reporting and waits for the final line to be printed.
func (t *Tracker) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	close(t.done)
	t.running = false
	exited := t.exited
	t.mu.Unlock()
	<-exited
}

// AddBytes adds n processed bytes to the counter.
func (t *Tracker) AddBytes(n uint64) {
	if t == nil || n == 0 {
		return
	}
	t.processed.Add(n)
}

// Processed returns the bytes counted since the last Start.
func (t *Tracker) Processed() uint64 {
	if t == nil {
		return 0
	}
	return t.processed.Load()
}

// formatSize returns a human-readable size with the given suffix.
func formatSize(n uint64, suffix string) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B%s", n, suffix)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB%s", float64(n)/float64(div), "KMGTPE"[exp], suffix)
}

func (t *Tracker) report(testMode bool, done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var prevBytes uint64
	var prevPct float64
	start := time.Now()
	lastLine := start

	if testMode {
		fmt.Fprintf(t.out, "[TEST] Progress tracking initialized\n")
	} else {
		fmt.Fprintf(t.out, "Starting processing...\n")
	}

	for {
		select {
		case <-ticker.C:
			cur := t.processed.Load()
			total := t.total.Load()
			rate := (cur - prevBytes) * uint64(time.Second/tick)
			prevBytes = cur
			known := total > 0
			var pct float64
			if known {
				pct = float64(cur) / float64(total) * 100
			}

			if testMode {
				if !known {
					continue
				}
				for _, step := range []float64{100, 75, 50, 25} {
					if pct >= step && prevPct < step {
						fmt.Fprintf(t.out, "[TEST] Processing at %.0f%%\n", step)
						break
					}
				}
			} else if time.Since(lastLine) >= time.Second || (known && (pct-prevPct >= 10 || (pct >= 100 && prevPct < 100))) {
				lastLine = time.Now()
				if known {
					eta := "calculating..."
					if rate > 0 && total > cur {
						eta = formatETA(float64(total-cur) / float64(rate))
					}
					fmt.Fprintf(t.out, "Processed %s of %s (%.1f%%) | Rate: %s | ETA: %s\n",
						formatSize(cur, ""), formatSize(total, ""), pct, formatSize(rate, "/s"), eta)
				} else {
					fmt.Fprintf(t.out, "Processed %s | Rate: %s\n", formatSize(cur, ""), formatSize(rate, "/s"))
				}
			}
			prevPct = pct
		case <-done:
			if !testMode {
				elapsed := time.Since(start).Seconds()
				if elapsed < 0.001 {
					elapsed = 0.001
				}
				n := t.processed.Load()
				fmt.Fprintf(t.out, "Completed processing %s in %.1f seconds (avg rate: %s)\n",
					formatSize(n, ""), elapsed, formatSize(uint64(float64(n)/elapsed), "/s"))
			}
			return
		}
	}
}

func formatETA(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.0f seconds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1f minutes", seconds/60)
	default:
		return fmt.Sprintf("%.1f hours", seconds/3600)
	}
}

// Writer is an io.Writer that counts written bytes on a Tracker.
type Writer struct {
	W io.Writer
	T *Tracker
}

// Write implements io.Writer.
func (pw *Writer) Write(p []byte) (n int, err error) {
	n, err = pw.W.Write(p)
	if n > 0 {
		pw.T.AddBytes(uint64(n))
	}
	return
}
