// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// combineContext derives a context from tabCtx that is also canceled when
// opCtx is. tabCtx carries the CDP target values chromedp needs; opCtx
// carries the operational deadline. chromedp actions must run on a context
// that honors both.
func combineContext(tabCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

// valueOnlyContext inherits values from its parent but no deadline or
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (valueOnlyContext) Done() <-chan struct{}       { return nil }
func (valueOnlyContext) Err() error                  { return nil }

// detach returns a context carrying ctx's CDP values that survives ctx's
// cancellation. Used for teardown actions that must still reach the browser.
func detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
