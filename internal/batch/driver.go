// internal/batch/driver.go
package batch

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nlavaggi/retex/internal/arca"
)

// Exporter runs one export cycle for one tax kind and operation, returning
// the path of the downloaded file.
type Exporter interface {
	ExportOne(ctx context.Context, kind arca.TaxKind, op arca.Operation) (string, error)
	// NewQuery returns the service to the query form between cycles.
	NewQuery(ctx context.Context) error
}

// Driver walks the tax-kind catalogue sequentially, checkpointing after every
// download. A failed cycle is logged and skipped; one broken tax kind must
// not sink the other fifteen.
type Driver struct {
	store  *Store
	kinds  []arca.TaxKind
	logger *zap.Logger
}

// NewDriver runs over the given catalogue, usually arca.TaxKinds.
func NewDriver(store *Store, kinds []arca.TaxKind, logger *zap.Logger) *Driver {
	return &Driver{
		store:  store,
		kinds:  kinds,
		logger: logger.Named("batch"),
	}
}

// Run processes every not-yet-completed kind in progress. Context
// cancellation stops the batch with the checkpoint intact for resuming.
func (d *Driver) Run(ctx context.Context, exp Exporter, progress *Progress) error {
	total := len(d.kinds)
	for i, kind := range d.kinds {
		if progress.Completed(kind.Code) {
			d.logger.Info("Skipping completed tax kind.",
				zap.String("tax", kind.Code),
				zap.Int("index", i+1),
				zap.Int("total", total))
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		d.logger.Info("Processing tax kind.",
			zap.String("tax", kind.Code),
			zap.String("name", kind.Name),
			zap.String("mode", string(kind.Mode)),
			zap.Int("index", i+1),
			zap.Int("total", total))

		progress.CurrentTaxCode = kind.Code
		if err := d.store.Save(progress); err != nil {
			return err
		}

		for _, op := range kind.Operations() {
			if err := ctx.Err(); err != nil {
				return err
			}

			path, err := exp.ExportOne(ctx, kind, op)
			if err != nil {
				d.logger.Error("Export cycle failed, continuing with next.",
					zap.String("tax", kind.Code),
					zap.String("operation", op.Label),
					zap.Error(err))
			} else {
				progress.DownloadedFiles = append(progress.DownloadedFiles, path)
				if err := d.store.Save(progress); err != nil {
					return err
				}
				d.logger.Info("Export cycle completed.",
					zap.String("tax", kind.Code),
					zap.String("operation", op.Label),
					zap.String("file", path))
			}

			if err := exp.NewQuery(ctx); err != nil {
				d.logger.Warn("Could not return to query form.", zap.Error(err))
			}
		}

		progress.CompletedTaxCodes = append(progress.CompletedTaxCodes, kind.Code)
		progress.CurrentTaxCode = ""
		if err := d.store.Save(progress); err != nil {
			return err
		}
	}

	progress.Status = StatusCompleted
	if err := d.store.Save(progress); err != nil {
		return err
	}
	d.logger.Info("Batch completed.",
		zap.Int("tax_kinds", len(progress.CompletedTaxCodes)),
		zap.Int("files", len(progress.DownloadedFiles)))
	return nil
}

// ExportFileName builds the canonical name for a downloaded export:
// MR_<taxcode>_<cuit>_<desde>_<hasta>_<timestamp>.csv with the dates
// compacted to ddmmyyyy.
func ExportFileName(taxCode, cuit, desde, hasta string, now time.Time) string {
	compact := func(d string) string { return strings.ReplaceAll(d, "/", "") }
	return "MR_" + taxCode + "_" + cuit + "_" +
		compact(desde) + "_" + compact(hasta) + "_" +
		now.Format("20060102_150405") + ".csv"
}
