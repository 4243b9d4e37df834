package brevo

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/neuhubereco/odoo-brevo-sync/internal/metrics"
)

// Limiter throttles outbound Brevo calls to the account budget
// (~300 requests/minute). A single Limiter is shared by every sync
// direction in the process because it models one shared remote budget.
//
// Refill is continuous (token bucket), not window-based, so a batch run
// cannot burn the whole window and starve webhook traffic behind it.
type Limiter struct {
	lim *rate.Limiter
	now func() time.Time
}

// NewLimiter returns a limiter allowing perMinute sustained calls with the
// given burst capacity.
func NewLimiter(perMinute, burst int) *Limiter {
	return newLimiterWithClock(perMinute, burst, time.Now)
}

// newLimiterWithClock injects a clock so tests can drive refill
// deterministically.
func newLimiterWithClock(perMinute, burst int, now func() time.Time) *Limiter {
	return &Limiter{
		lim: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		now: now,
	}
}

// Wait blocks until a token is available or ctx is done. Batch and
// cron-triggered work uses this path.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.lim.ReserveN(l.now(), 1)
	if !r.OK() {
		return ErrRateLimited
	}
	delay := r.DelayFrom(l.now())
	if delay == 0 {
		return nil
	}
	if err := sleep(ctx, delay); err != nil {
		r.CancelAt(l.now())
		return err
	}
	return nil
}

// Acquire takes a token, waiting at most timeout for one to become
// available. Webhook-triggered work uses this path so a request is never
// parked indefinitely; on expiry it fails with ErrRateLimited and the
// sender's own retry mechanism re-delivers the event.
func (l *Limiter) Acquire(ctx context.Context, timeout time.Duration) error {
	r := l.lim.ReserveN(l.now(), 1)
	if !r.OK() {
		return ErrRateLimited
	}
	delay := r.DelayFrom(l.now())
	if delay == 0 {
		return nil
	}
	if delay > timeout {
		r.CancelAt(l.now())
		metrics.CountRateLimitRejection()
		return ErrRateLimited
	}
	if err := sleep(ctx, delay); err != nil {
		r.CancelAt(l.now())
		return err
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
