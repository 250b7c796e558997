// internal/engine/engine_test.go
package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePage is a scripted implementation of Page. Locators present in visible
// resolve immediately; everything else times out the probe, which is how a
// real bounded wait reports an absent element. Locators present in errs fail
// abnormally, simulating a crashed or disconnected automation primitive.
type fakePage struct {
	mu      sync.Mutex
	visible map[string]bool
	errs    map[string]error
	values  map[string]string
	texts   map[string]string

	clicks  []string
	pressed []Key

	// beforeWait runs at the start of every WaitFor call, letting tests
	// advance scripted page state tick by tick.
	beforeWait func(locator string)
	// sabotageFill, when set for a locator, replaces the first fill's value
	// (a picker overlay clobbering the field) and then forgets itself.
	sabotageFill map[string]string
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:      make(map[string]bool),
		errs:         make(map[string]error),
		values:       make(map[string]string),
		texts:        make(map[string]string),
		sabotageFill: make(map[string]string),
	}
}

func (p *fakePage) WaitFor(ctx context.Context, locator string, _ Expectation) error {
	p.mu.Lock()
	hook := p.beforeWait
	p.mu.Unlock()
	if hook != nil {
		hook(locator)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errs[locator]; ok {
		return err
	}
	if p.visible[locator] {
		return nil
	}
	return context.DeadlineExceeded
}

func (p *fakePage) Click(ctx context.Context, locator string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks = append(p.clicks, locator)
	return nil
}

func (p *fakePage) ClearAndFill(ctx context.Context, locator, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if clobber, ok := p.sabotageFill[locator]; ok {
		delete(p.sabotageFill, locator)
		p.values[locator] = clobber
		return nil
	}
	p.values[locator] = value
	return nil
}

func (p *fakePage) Press(ctx context.Context, key Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pressed = append(p.pressed, key)
	return nil
}

func (p *fakePage) Text(ctx context.Context, locator string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errs[locator]; ok {
		return "", err
	}
	return p.texts[locator], nil
}

func (p *fakePage) Value(ctx context.Context, locator string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[locator], nil
}

func (p *fakePage) setVisible(locators ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range locators {
		p.visible[l] = true
	}
}

func (p *fakePage) setText(locator, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[locator] = text
}

func (p *fakePage) clickCount(locator string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.clicks {
		if c == locator {
			n++
		}
	}
	return n
}

// fakeDownloads resolves every trigger to a fixed descriptor.
type fakeDownloads struct {
	mu       sync.Mutex
	resolved []string
	fd       FileDescriptor
	err      error
}

func (d *fakeDownloads) Resolve(ctx context.Context, trigger string) (FileDescriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolved = append(d.resolved, trigger)
	if d.err != nil {
		return FileDescriptor{}, d.err
	}
	return d.fd, nil
}

func testLogger() *zap.Logger { return zap.NewNop() }

const testTimeout = 10 * time.Millisecond

func newTestResolver(p Page) *Resolver {
	return NewResolver(p, testTimeout, testLogger())
}
