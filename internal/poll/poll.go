// Package poll repeats a probe until it reports success or a time budget runs out.
package poll

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// MinInterval is the fastest pace a probe is ever re-run at.
const MinInterval = 10 * time.Millisecond

// Probe reports whether the awaited condition holds. An error counts as
// "not yet" so a probe can fail while the page is still changing.
type Probe func(ctx context.Context) (bool, error)

// Until runs probe immediately and then once per interval until it returns
// true or timeout elapses. A zero or negative timeout still gets the one
// immediate attempt, run against ctx. found is false when the budget ran out.
// err is non-nil only when ctx itself was cancelled, never because of a
// timeout or a probe error.
func Until(ctx context.Context, interval, timeout time.Duration, probe Probe) (found bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if interval < MinInterval {
		interval = MinInterval
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	firstCtx := deadlineCtx
	if timeout <= 0 {
		firstCtx = ctx
	}
	if ok, probeErr := probe(firstCtx); probeErr == nil && ok {
		return true, nil
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.Allow()
	for {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if waitErr := limiter.Wait(deadlineCtx); waitErr != nil {
			// Wait fails early when the next slot lies past the deadline.
			return false, ctx.Err()
		}

		ok, probeErr := probe(deadlineCtx)
		if probeErr == nil && ok {
			return true, nil
		}
		if deadlineCtx.Err() != nil {
			return false, ctx.Err()
		}
	}
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
