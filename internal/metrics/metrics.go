// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Submission outcomes.
const (
	StatusSuccess          = "success"
	StatusExtractionFailed = "extraction_failed"
	StatusStoreFailed      = "store_failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Extraction pipeline
	IncSubmission(status string)
	ObserveExtractionDuration(duration time.Duration)
	IncUnknownUTR()

	// Access control
	IncAuthFailure()
	IncRateLimited()

	// User management
	IncUserCreated()
	IncKeyDeliveryFailed()

	// Retention
	AddLogsPurged(n int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
