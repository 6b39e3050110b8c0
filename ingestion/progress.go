package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// progress writes a single-line build-db progress report.
type progress struct {
	writer         io.Writer
	total          int
	done           int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	mu             sync.Mutex
}

// newProgress reports every reportInterval articles. A nil writer disables output.
func newProgress(writer io.Writer, total, reportInterval int) *progress {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &progress{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
		startTime:      time.Now(),
	}
}

// add records processed articles, of which failed could not be ingested.
func (p *progress) add(processed, failed int) {
	if p == nil || p.writer == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = min(p.done+processed, p.total)
	p.failed += failed
	if p.done-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.done
	}
}

// finish prints the final line.
func (p *progress) finish() {
	if p == nil || p.writer == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.report()
	fmt.Fprintln(p.writer)
}

// report prints the current progress. Must be called with lock held.
func (p *progress) report() {
	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.done) / elapsed.Seconds()
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.done) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rArticles: %d/%d (%.1f%%), %d failed - %.1f articles/s",
		p.done, p.total, percentage, p.failed, rate)
}
