package vecforest

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics.
// Implement this interface to integrate with monitoring systems; see the
// prommetrics package for a Prometheus implementation.
type MetricsCollector interface {
	// RecordAdd is called after each item add.
	RecordAdd(duration time.Duration, err error)

	// RecordBuild is called after each Build with the requested tree count
	// and the number of indexed items.
	RecordBuild(trees, items int, duration time.Duration, err error)

	// RecordSearch is called after each query. filtered reports whether a tag
	// predicate was applied.
	RecordSearch(k int, filtered bool, duration time.Duration, err error)

	// RecordSave is called after each save with the number of bytes written.
	RecordSave(bytes int64, duration time.Duration, err error)

	// RecordLoad is called after each load with the number of bytes read.
	RecordLoad(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)               {}
func (NoopMetricsCollector) RecordBuild(int, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordSearch(int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(int64, time.Duration, error)       {}
func (NoopMetricsCollector) RecordLoad(int64, time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddErrors        atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTotalNanos  atomic.Int64
	SearchCount      atomic.Int64
	FilteredCount    atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	SaveCount        atomic.Int64
	SaveBytes        atomic.Int64
	SaveErrors       atomic.Int64
	LoadCount        atomic.Int64
	LoadBytes        atomic.Int64
	LoadErrors       atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(_ time.Duration, err error) {
	b.AddCount.Add(1)
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_, _ int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, filtered bool, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if filtered {
		b.FilteredCount.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int64, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SaveBytes.Add(bytes)
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(bytes int64, _ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:       b.AddCount.Load(),
		AddErrors:      b.AddErrors.Load(),
		BuildCount:     b.BuildCount.Load(),
		BuildErrors:    b.BuildErrors.Load(),
		BuildAvgNanos:  avg(b.BuildTotalNanos.Load(), b.BuildCount.Load()),
		SearchCount:    b.SearchCount.Load(),
		FilteredCount:  b.FilteredCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		SaveCount:      b.SaveCount.Load(),
		SaveBytes:      b.SaveBytes.Load(),
		SaveErrors:     b.SaveErrors.Load(),
		LoadCount:      b.LoadCount.Load(),
		LoadBytes:      b.LoadBytes.Load(),
		LoadErrors:     b.LoadErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AddCount       int64
	AddErrors      int64
	BuildCount     int64
	BuildErrors    int64
	BuildAvgNanos  int64
	SearchCount    int64
	FilteredCount  int64
	SearchErrors   int64
	SearchAvgNanos int64
	SaveCount      int64
	SaveBytes      int64
	SaveErrors     int64
	LoadCount      int64
	LoadBytes      int64
	LoadErrors     int64
}
