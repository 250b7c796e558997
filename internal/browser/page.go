// internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/nlavaggi/retex/internal/engine"
)

// Tab adapts one chromedp target to the engine's interaction surface.
// Locators starting with "//" are dispatched as XPath, everything else as a
// CSS query. Callers own the deadline: every method runs its actions on a
// context combining the tab's lifecycle with the caller's bound.
type Tab struct {
	ctx        context.Context
	navTimeout time.Duration
	logger     *zap.Logger
}

var _ engine.Page = (*Tab)(nil)

func isXPath(locator string) bool {
	return strings.HasPrefix(locator, "//")
}

func queryOption(locator string) chromedp.QueryOption {
	if isXPath(locator) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(t.ctx, ctx)
	defer cancel()
	if err := chromedp.Run(opCtx, actions...); err != nil {
		// Surface the caller's deadline rather than chromedp's wrapping, so
		// the resolver can tell a clean timeout from an abnormal failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for document readiness, bounded by the
// configured navigation timeout.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.logger.Debug("Navigating.", zap.String("url", url))
	navCtx, cancel := context.WithTimeout(ctx, t.navTimeout)
	defer cancel()
	if err := t.run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// WaitFor blocks until the locator satisfies the expectation or ctx expires.
func (t *Tab) WaitFor(ctx context.Context, locator string, expect engine.Expectation) error {
	opt := queryOption(locator)
	switch expect {
	case engine.ExpectExists:
		return t.run(ctx, chromedp.WaitReady(locator, opt))
	case engine.ExpectClickable:
		return t.run(ctx,
			chromedp.WaitVisible(locator, opt),
			chromedp.WaitEnabled(locator, opt))
	default:
		return t.run(ctx, chromedp.WaitVisible(locator, opt))
	}
}

// Click scrolls the element into view and clicks it.
func (t *Tab) Click(ctx context.Context, locator string) error {
	opt := queryOption(locator)
	return t.run(ctx,
		chromedp.ScrollIntoView(locator, opt),
		chromedp.Click(locator, opt))
}

// ClearAndFill empties the field before typing the value. The explicit clear
// matters: the portal's date inputs keep stale text across queries.
func (t *Tab) ClearAndFill(ctx context.Context, locator, value string) error {
	opt := queryOption(locator)
	return t.run(ctx,
		chromedp.Clear(locator, opt),
		chromedp.SendKeys(locator, value, opt))
}

// Press dispatches a key event to the focused element.
func (t *Tab) Press(ctx context.Context, key engine.Key) error {
	var code string
	switch key {
	case engine.KeyTab:
		code = kb.Tab
	case engine.KeyEscape:
		code = kb.Escape
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
	return t.run(ctx, chromedp.KeyEvent(code))
}

// Text returns the element's rendered text content.
func (t *Tab) Text(ctx context.Context, locator string) (string, error) {
	var text string
	if err := t.run(ctx, chromedp.Text(locator, &text, queryOption(locator))); err != nil {
		return "", err
	}
	return text, nil
}

// Value returns the element's current value property.
func (t *Tab) Value(ctx context.Context, locator string) (string, error) {
	var value string
	if err := t.run(ctx, chromedp.Value(locator, &value, queryOption(locator))); err != nil {
		return "", err
	}
	return value, nil
}
