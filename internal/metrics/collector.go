// Package metrics provides in-memory request statistics for the backend client.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Payload bytes sent (uploads) or received (downloads)
	TotalBytes int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
	TotalBytes  int64
}

// Snapshot represents the client statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Analyze       *OperationSnapshot
	AnalyzeUpload *OperationSnapshot
	Download      *OperationSnapshot
}

// Requests returns the number of requests across all operations.
func (s Snapshot) Requests() int64 {
	var n int64
	for _, op := range []*OperationSnapshot{s.Analyze, s.AnalyzeUpload, s.Download} {
		if op != nil {
			n += op.Count
		}
	}
	return n
}

// Operation names for the collector.
const (
	OpAnalyze       = "analyze"
	OpAnalyzeUpload = "analyze_upload"
	OpDownload      = "download"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// Record records one finished request. A nil collector ignores the call.
func (c *Collector) Record(op string, duration time.Duration, bytes int64, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	m.TotalBytes += bytes
	if failed {
		m.Failures++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
		TotalBytes:  m.TotalBytes,
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Analyze:       snapshotOp(c.ops[OpAnalyze]),
		AnalyzeUpload: snapshotOp(c.ops[OpAnalyzeUpload]),
		Download:      snapshotOp(c.ops[OpDownload]),
	}
}
