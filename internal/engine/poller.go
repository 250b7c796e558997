// internal/engine/poller.go
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// rowTimestampLayout is the portal's row timestamp format, e.g. "15/11/2025 19:51".
const rowTimestampLayout = "02/01/2006 15:04"

// PollOutcome is the per-tick verdict over the first row of the
// exported-queries list.
type PollOutcome int

const (
	OutcomeNotYetReady PollOutcome = iota
	OutcomeReady
	OutcomeRowMissing
	OutcomeMalformed
)

func (o PollOutcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeRowMissing:
		return "row-missing"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "not-yet-ready"
	}
}

// CellLocators pairs a primary locator with a structurally different alternate
// for the same logical cell, defending against markup variation within a
// single UI variant.
type CellLocators struct {
	Primary   string
	Alternate string
}

// RowLocators names every piece of the most recent exported-queries row.
type RowLocators struct {
	Row             string
	Filter          CellLocators
	Status          CellLocators
	Timestamp       CellLocators
	DownloadTrigger string
}

// RowCriteria decides when the first row is the finished export this cycle
// produced.
type RowCriteria struct {
	// FinishedTokens are status strings meaning the file is ready.
	FinishedTokens []string
	// FilterContains must appear in the filter-summary cell (the tax number).
	// Empty disables the check.
	FilterContains string
	// Freshness is how recent the row's timestamp must be. Zero disables the
	// check. An unparseable timestamp counts as fresh: the first row is the
	// most recent by construction.
	Freshness time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// ExportRow is the read-only view of the most recent list entry, refreshed on
// each poll tick.
type ExportRow struct {
	Filter          string
	Status          string
	Timestamp       string
	DownloadTrigger string
}

// PollerConfig bounds the poll loop.
type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	// GraceTicks is how many consecutive row-missing ticks are tolerated
	// before escalating; the export may simply not have appeared yet.
	GraceTicks int
	// CellTimeout bounds each individual cell read.
	CellTimeout time.Duration
}

// ResultPoller repeatedly inspects the first row of the exported-queries list
// until the export is finalized or the retry budget runs out.
type ResultPoller struct {
	page     Page
	resolver *Resolver
	cfg      PollerConfig
	logger   *zap.Logger
}

// NewResultPoller creates a poller over the given page.
func NewResultPoller(page Page, resolver *Resolver, cfg PollerConfig, logger *zap.Logger) *ResultPoller {
	return &ResultPoller{
		page:     page,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.Named("poller"),
	}
}

// AwaitExportedFile polls until the first row satisfies the criteria. refresh,
// when non-nil, names an optional reload control clicked at the start of each
// tick; its absence is tolerated. The returned row carries the download
// trigger for the resolution step.
func (p *ResultPoller) AwaitExportedFile(ctx context.Context, rows RowLocators, crit RowCriteria, refresh *Target) (ExportRow, error) {
	var (
		lastStatus    string
		lastFilter    string
		missingStreak int
	)

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return ExportRow{}, err
		}

		if refresh != nil {
			p.clickRefresh(ctx, *refresh)
		}

		row, outcome, err := p.readFirstRow(ctx, rows)
		if err != nil {
			return ExportRow{}, err
		}

		switch outcome {
		case OutcomeRowMissing:
			missingStreak++
			p.logger.Debug("No row in exported-queries list.",
				zap.Int("attempt", attempt),
				zap.Int("missing_streak", missingStreak))
			if missingStreak > p.cfg.GraceTicks {
				return ExportRow{}, &PollError{
					Attempts:   attempt,
					LastStatus: lastStatus,
					LastFilter: lastFilter,
					Err:        ErrRowMissing,
				}
			}
		case OutcomeMalformed:
			// Empty cell text, not a timeout: the grid may render
			// progressively. Retry, do not hard-stop.
			missingStreak = 0
			p.logger.Debug("Malformed row cells, retrying.", zap.Int("attempt", attempt))
		default:
			missingStreak = 0
			lastStatus = row.Status
			lastFilter = row.Filter

			verdict := p.evaluate(row, crit)
			p.logger.Debug("Poll tick evaluated.",
				zap.Int("attempt", attempt),
				zap.String("status", row.Status),
				zap.String("filter", row.Filter),
				zap.String("outcome", verdict.String()))
			if verdict == OutcomeReady {
				row.DownloadTrigger = rows.DownloadTrigger
				return row, nil
			}
		}

		if attempt < p.cfg.MaxAttempts {
			if err := pause(ctx, p.cfg.Interval); err != nil {
				return ExportRow{}, err
			}
		}
	}

	return ExportRow{}, &PollError{
		Attempts:   p.cfg.MaxAttempts,
		LastStatus: lastStatus,
		LastFilter: lastFilter,
	}
}

func (p *ResultPoller) clickRefresh(ctx context.Context, refresh Target) {
	match, err := p.resolver.Resolve(ctx, refresh)
	if err != nil {
		// The reload control is optional; absence is not an error.
		if !IsNotFound(err) {
			p.logger.Debug("Refresh control probe failed.", zap.Error(err))
		}
		return
	}
	if err := p.page.Click(ctx, match.Candidate.Locator); err != nil {
		p.logger.Debug("Refresh click failed.", zap.Error(err))
	}
}

// readFirstRow reads the filter and status cells of the most recent row.
// Each cell gets a primary read and, on failure, one alternate read with a
// structurally different locator.
func (p *ResultPoller) readFirstRow(ctx context.Context, rows RowLocators) (ExportRow, PollOutcome, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.CellTimeout)
	err := p.page.WaitFor(probeCtx, rows.Row, ExpectExists)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ExportRow{}, OutcomeRowMissing, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ExportRow{}, OutcomeRowMissing, nil
		}
		return ExportRow{}, OutcomeRowMissing, &ProbeError{Target: "exported-row", Candidate: rows.Row, Err: err}
	}

	filter, ok := p.readCell(ctx, rows.Filter)
	if !ok {
		return ExportRow{}, OutcomeMalformed, ctx.Err()
	}
	status, ok := p.readCell(ctx, rows.Status)
	if !ok {
		return ExportRow{}, OutcomeMalformed, ctx.Err()
	}
	// The timestamp cell is advisory; a failed read degrades to "fresh".
	timestamp, _ := p.readCell(ctx, rows.Timestamp)

	return ExportRow{Filter: filter, Status: status, Timestamp: timestamp}, OutcomeNotYetReady, nil
}

// readCell attempts the primary locator, then the alternate. A read yielding
// empty text is treated the same as a failed read.
func (p *ResultPoller) readCell(ctx context.Context, cell CellLocators) (string, bool) {
	for _, locator := range []string{cell.Primary, cell.Alternate} {
		if locator == "" {
			continue
		}
		readCtx, cancel := context.WithTimeout(ctx, p.cfg.CellTimeout)
		text, err := p.page.Text(readCtx, locator)
		cancel()
		if err != nil {
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return trimmed, true
		}
	}
	return "", false
}

func (p *ResultPoller) evaluate(row ExportRow, crit RowCriteria) PollOutcome {
	finished := false
	for _, token := range crit.FinishedTokens {
		if strings.Contains(strings.ToLower(row.Status), strings.ToLower(token)) {
			finished = true
			break
		}
	}
	if !finished {
		return OutcomeNotYetReady
	}

	if crit.FilterContains != "" && !strings.Contains(row.Filter, crit.FilterContains) {
		return OutcomeNotYetReady
	}

	if crit.Freshness > 0 {
		// A row whose timestamp cell never rendered cannot be confirmed as
		// this cycle's export; only unparseable text degrades to fresh.
		if row.Timestamp == "" {
			return OutcomeNotYetReady
		}
		now := time.Now
		if crit.Now != nil {
			now = crit.Now
		}
		ts, err := time.ParseInLocation(rowTimestampLayout, row.Timestamp, time.Local)
		if err == nil {
			age := now().Sub(ts)
			if age < 0 {
				age = -age
			}
			if age > crit.Freshness {
				return OutcomeNotYetReady
			}
		}
	}

	return OutcomeReady
}
