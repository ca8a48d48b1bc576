package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncSubmission(string)                    {}
func (n *NoopRecorder) ObserveExtractionDuration(time.Duration) {}
func (n *NoopRecorder) IncUnknownUTR()                          {}
func (n *NoopRecorder) IncAuthFailure()                         {}
func (n *NoopRecorder) IncRateLimited()                         {}
func (n *NoopRecorder) IncUserCreated()                         {}
func (n *NoopRecorder) IncKeyDeliveryFailed()                   {}
func (n *NoopRecorder) AddLogsPurged(int64)                     {}
