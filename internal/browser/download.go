// internal/browser/download.go
package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/nlavaggi/retex/internal/engine"
)

// Downloads resolves a download trigger into the file Chrome wrote. The
// manager configures allowAndName behavior, so the on-disk name is the
// download GUID and the suggested filename arrives over CDP events.
type Downloads struct {
	ctx     context.Context
	dir     string
	timeout time.Duration
	logger  *zap.Logger
}

var _ engine.DownloadResolver = (*Downloads)(nil)

// Resolve clicks the trigger and waits for the resulting download to
// complete. Only the download started by this click is tracked: progress
// events are matched against the GUID of the first willBegin seen after the
// click.
func (d *Downloads) Resolve(ctx context.Context, trigger string) (engine.FileDescriptor, error) {
	opCtx, cancel := combineContext(d.ctx, ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		guid      string
		suggested string
	)
	done := make(chan error, 1)

	chromedp.ListenTarget(opCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdpbrowser.EventDownloadWillBegin:
			mu.Lock()
			if guid == "" {
				guid = e.GUID
				suggested = e.SuggestedFilename
			}
			mu.Unlock()
		case *cdpbrowser.EventDownloadProgress:
			mu.Lock()
			ours := e.GUID == guid && guid != ""
			mu.Unlock()
			if !ours {
				return
			}
			switch e.State {
			case cdpbrowser.DownloadProgressStateCompleted:
				select {
				case done <- nil:
				default:
				}
			case cdpbrowser.DownloadProgressStateCanceled:
				select {
				case done <- fmt.Errorf("download canceled by browser"):
				default:
				}
			}
		}
	})

	opt := queryOption(trigger)
	if err := chromedp.Run(opCtx,
		chromedp.ScrollIntoView(trigger, opt),
		chromedp.Click(trigger, opt),
	); err != nil {
		return engine.FileDescriptor{}, fmt.Errorf("clicking download trigger: %w", err)
	}

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return engine.FileDescriptor{}, err
		}
	case <-opCtx.Done():
		return engine.FileDescriptor{}, opCtx.Err()
	case <-timer.C:
		return engine.FileDescriptor{}, fmt.Errorf("download not completed within %s", d.timeout)
	}

	mu.Lock()
	fd := engine.FileDescriptor{
		Path:          filepath.Join(d.dir, guid),
		SuggestedName: suggested,
	}
	mu.Unlock()

	d.logger.Info("Download completed.",
		zap.String("path", fd.Path),
		zap.String("suggested_name", fd.SuggestedName))
	return fd, nil
}
