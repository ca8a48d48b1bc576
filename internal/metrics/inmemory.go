package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	SubmissionsSucceeded        uint64
	SubmissionsExtractionFailed uint64
	SubmissionsStoreFailed      uint64
	ExtractionDurationCount     uint64
	ExtractionDurationTotalNs   int64
	UnknownUTRs                 uint64
	AuthFailures                uint64
	RateLimited                 uint64
	UsersCreated                uint64
	KeyDeliveryFailures         uint64
	LogsPurged                  int64
}

// InMemoryRecorder stores counters in memory. It backs the /metrics
// endpoint and is used directly by tests.
type InMemoryRecorder struct {
	submissionsSucceeded        atomic.Uint64
	submissionsExtractionFailed atomic.Uint64
	submissionsStoreFailed      atomic.Uint64
	extractionDurationCount     atomic.Uint64
	extractionDurationTotalNs   atomic.Int64
	unknownUTRs                 atomic.Uint64
	authFailures                atomic.Uint64
	rateLimited                 atomic.Uint64
	usersCreated                atomic.Uint64
	keyDeliveryFailures         atomic.Uint64
	logsPurged                  atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		SubmissionsSucceeded:        m.submissionsSucceeded.Load(),
		SubmissionsExtractionFailed: m.submissionsExtractionFailed.Load(),
		SubmissionsStoreFailed:      m.submissionsStoreFailed.Load(),
		ExtractionDurationCount:     m.extractionDurationCount.Load(),
		ExtractionDurationTotalNs:   m.extractionDurationTotalNs.Load(),
		UnknownUTRs:                 m.unknownUTRs.Load(),
		AuthFailures:                m.authFailures.Load(),
		RateLimited:                 m.rateLimited.Load(),
		UsersCreated:                m.usersCreated.Load(),
		KeyDeliveryFailures:         m.keyDeliveryFailures.Load(),
		LogsPurged:                  m.logsPurged.Load(),
	}
}

// IncSubmission counts a processed image by outcome. Unknown statuses are ignored.
func (m *InMemoryRecorder) IncSubmission(status string) {
	switch status {
	case StatusSuccess:
		m.submissionsSucceeded.Add(1)
	case StatusExtractionFailed:
		m.submissionsExtractionFailed.Add(1)
	case StatusStoreFailed:
		m.submissionsStoreFailed.Add(1)
	}
}

// ObserveExtractionDuration records how long one extraction took.
func (m *InMemoryRecorder) ObserveExtractionDuration(duration time.Duration) {
	m.extractionDurationCount.Add(1)
	m.extractionDurationTotalNs.Add(duration.Nanoseconds())
}

// IncUnknownUTR counts submissions whose UTR could not be determined.
func (m *InMemoryRecorder) IncUnknownUTR() {
	m.unknownUTRs.Add(1)
}

// IncAuthFailure counts rejected API keys.
func (m *InMemoryRecorder) IncAuthFailure() {
	m.authFailures.Add(1)
}

// IncRateLimited counts requests rejected by the rate limiter.
func (m *InMemoryRecorder) IncRateLimited() {
	m.rateLimited.Add(1)
}

// IncUserCreated counts users created by admins.
func (m *InMemoryRecorder) IncUserCreated() {
	m.usersCreated.Add(1)
}

// IncKeyDeliveryFailed counts key emails that could not be sent.
func (m *InMemoryRecorder) IncKeyDeliveryFailed() {
	m.keyDeliveryFailures.Add(1)
}

// AddLogsPurged adds to the number of expired logs removed.
func (m *InMemoryRecorder) AddLogsPurged(n int64) {
	m.logsPurged.Add(n)
}
