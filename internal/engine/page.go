// internal/engine/page.go
package engine

import (
	"context"
	"time"
)

// Key is a keyboard dismissal action dispatched after filling a field,
// used to close transient date-picker overlays.
type Key string

const (
	KeyTab    Key = "Tab"
	KeyEscape Key = "Escape"
)

// Expectation is the outcome a selector candidate is probed for.
type Expectation int

const (
	ExpectExists Expectation = iota
	ExpectVisible
	ExpectClickable
)

func (e Expectation) String() string {
	switch e {
	case ExpectExists:
		return "exists"
	case ExpectVisible:
		return "visible"
	case ExpectClickable:
		return "clickable"
	default:
		return "unknown"
	}
}

// Page is the page-automation contract the engine is written against.
// Every method must honor the deadline of the context it is given; the engine
// never issues an unbounded wait. Locator expressions are opaque to the engine.
type Page interface {
	// WaitFor blocks until an element matching the locator satisfies the
	// expectation, or the context expires.
	WaitFor(ctx context.Context, locator string, expect Expectation) error
	// Click clicks the first element matching the locator.
	Click(ctx context.Context, locator string) error
	// ClearAndFill empties the element's current value, then enters the new one.
	ClearAndFill(ctx context.Context, locator, value string) error
	// Press dispatches a keyboard action to the focused element.
	Press(ctx context.Context, key Key) error
	// Text reads the visible text content of the first matching element.
	Text(ctx context.Context, locator string) (string, error)
	// Value reads the current input value of the first matching element.
	Value(ctx context.Context, locator string) (string, error)
}

// FileDescriptor describes a completed download.
type FileDescriptor struct {
	Path          string
	SuggestedName string
}

// DownloadResolver performs the actual file transfer once the engine has
// decided the export is ready. The engine only decides when to invoke it.
type DownloadResolver interface {
	Resolve(ctx context.Context, trigger string) (FileDescriptor, error)
}

// pause sleeps for d or until the context is done, whichever comes first.
// Cancellation latency anywhere in a cycle is bounded by the longest pause.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
