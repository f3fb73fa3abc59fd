package metrics

import "sync/atomic"

// Metrics captures dataset load counters and reload queue stats.
type Metrics struct {
	jsonLoads   int64
	csvLoads    int64
	emptyLoads  int64
	skippedRows int64
	storeErrors int64

	queueLength   int64
	queueCapacity int64
	processedJobs int64
	failedJobs    int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	JSONLoads     int64 `json:"json_loads"`
	CSVLoads      int64 `json:"csv_loads"`
	EmptyLoads    int64 `json:"empty_loads"`
	SkippedRows   int64 `json:"skipped_rows"`
	StoreErrors   int64 `json:"store_errors"`
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	ProcessedJobs int64 `json:"processed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// RecordLoad counts a finished load by winning source.
func (m *Metrics) RecordLoad(source string, skipped int) {
	switch source {
	case "json":
		atomic.AddInt64(&m.jsonLoads, 1)
	case "csv":
		atomic.AddInt64(&m.csvLoads, 1)
	default:
		atomic.AddInt64(&m.emptyLoads, 1)
	}
	atomic.AddInt64(&m.skippedRows, int64(skipped))
}

// RecordStoreError counts a failed load-history write.
func (m *Metrics) RecordStoreError() {
	atomic.AddInt64(&m.storeErrors, 1)
}

// UpdateQueue records the current queue stats.
func (m *Metrics) UpdateQueue(length, capacity int) {
	atomic.StoreInt64(&m.queueLength, int64(length))
	atomic.StoreInt64(&m.queueCapacity, int64(capacity))
}

// RecordJobCompletion increments processed/failed counters based on outcome.
func (m *Metrics) RecordJobCompletion(err error) {
	atomic.AddInt64(&m.processedJobs, 1)
	if err != nil {
		atomic.AddInt64(&m.failedJobs, 1)
	}
}

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		JSONLoads:     atomic.LoadInt64(&m.jsonLoads),
		CSVLoads:      atomic.LoadInt64(&m.csvLoads),
		EmptyLoads:    atomic.LoadInt64(&m.emptyLoads),
		SkippedRows:   atomic.LoadInt64(&m.skippedRows),
		StoreErrors:   atomic.LoadInt64(&m.storeErrors),
		QueueLength:   int(atomic.LoadInt64(&m.queueLength)),
		QueueCapacity: int(atomic.LoadInt64(&m.queueCapacity)),
		ProcessedJobs: atomic.LoadInt64(&m.processedJobs),
		FailedJobs:    atomic.LoadInt64(&m.failedJobs),
	}
}
