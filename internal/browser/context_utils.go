// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext derives a context from primary, which carries the chromedp
// target, that is also cancelled when op is done. An earlier deadline on op is
// carried over so CDP calls observe the operation's budget.
func CombineContext(primary, op context.Context) (context.Context, context.CancelFunc) {
	var (
		combined context.Context
		cancel   context.CancelFunc
	)
	if d, ok := op.Deadline(); ok {
		combined, cancel = context.WithDeadline(primary, d)
	} else {
		combined, cancel = context.WithCancel(primary)
	}

	stop := context.AfterFunc(op, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// valueOnlyContext keeps the values of its parent but none of its
// cancellation or deadline.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but outlives it.
// Cleanup that must reach the browser after the caller gave up uses it.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
