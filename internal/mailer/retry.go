package mailer

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Backoff between delivery attempts. Key delivery runs inside an HTTP
// request, so delays stay short.
var retryDelays = []time.Duration{
	500 * time.Millisecond,
	2 * time.Second,
}

// JitterFactor is the ±fraction of jitter applied to delays.
const JitterFactor = 0.2

// nextRetryDelay returns the delay before retry number attempt (0-indexed)
// with ±20% jitter.
func nextRetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(retryDelays) {
		attempt = len(retryDelays) - 1
	}

	base := retryDelays[attempt]
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}

// Retrying wraps a Sender and retries failed deliveries with backoff.
type Retrying struct {
	next  Sender
	sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry returns a Sender that makes up to len(retryDelays)+1 attempts.
func WithRetry(next Sender) *Retrying {
	return &Retrying{next: next, sleep: sleepContext}
}

// SendAPIKey delivers the key, retrying transient failures. ErrDisabled and
// ErrInvalidMessage are returned immediately.
func (r *Retrying) SendAPIKey(ctx context.Context, to, name, apiKey string) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = r.next.SendAPIKey(ctx, to, name, apiKey)
		if err == nil || !retryable(err) || attempt >= len(retryDelays) {
			return err
		}
		if serr := r.sleep(ctx, nextRetryDelay(attempt)); serr != nil {
			return errors.Join(err, serr)
		}
	}
}

func retryable(err error) bool {
	return !errors.Is(err, ErrDisabled) && !errors.Is(err, ErrInvalidMessage)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
