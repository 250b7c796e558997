// -- cmd/export.go --
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nlavaggi/retex/internal/arca"
	"github.com/nlavaggi/retex/internal/batch"
	"github.com/nlavaggi/retex/internal/browser"
	"github.com/nlavaggi/retex/internal/config"
	"github.com/nlavaggi/retex/internal/engine"
	"github.com/nlavaggi/retex/internal/observability"
)

// newExportCmd creates and configures the `export` command.
func newExportCmd() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Runs export cycles for one or all tax kinds over a date range",
		Long: `Logs into the portal, opens Mis Retenciones, and runs one export cycle
per tax kind and operation: fill the date range, trigger the CSV export,
follow whichever confirmation variant the UI presents, and download the
finished file. With --all the full catalogue runs as a resumable batch.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("credentials.cuit", cmd.Flags().Lookup("cuit")); err != nil {
				return err
			}
			if err := viper.BindPFlag("credentials.target_cuit", cmd.Flags().Lookup("target-cuit")); err != nil {
				return err
			}
			if err := viper.BindPFlag("output.dir", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			return nil
		},
		RunE: runExport,
	}

	exportCmd.Flags().StringSlice("tax", nil, "tax kind codes to export (e.g. IMP_217); repeatable")
	exportCmd.Flags().Bool("all", false, "export the full tax-kind catalogue")
	exportCmd.Flags().String("from", "", "fecha desde, dd/mm/yyyy (required)")
	exportCmd.Flags().String("to", "", "fecha hasta, dd/mm/yyyy (required)")
	exportCmd.Flags().Bool("resume", false, "resume the most recent interrupted batch session")
	exportCmd.Flags().Bool("headless", true, "run the browser headless")
	exportCmd.Flags().String("cuit", "", "login CUIT (or RETEX_CREDENTIALS_CUIT)")
	exportCmd.Flags().String("target-cuit", "", "represented CUIT to export for (defaults to login CUIT)")
	exportCmd.Flags().String("output", "", "directory for downloaded files and checkpoints")
	_ = exportCmd.MarkFlagRequired("from")
	_ = exportCmd.MarkFlagRequired("to")

	return exportCmd
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	desde, _ := cmd.Flags().GetString("from")
	hasta, _ := cmd.Flags().GetString("to")
	dates := arca.DateRange{Desde: desde, Hasta: hasta}
	if err := dates.Validate(); err != nil {
		return err
	}

	if cfg.Credentials.CUIT == "" {
		return fmt.Errorf("no login CUIT: pass --cuit or set RETEX_CREDENTIALS_CUIT")
	}
	if cfg.Credentials.Clave == "" {
		return fmt.Errorf("no clave: set RETEX_CREDENTIALS_CLAVE")
	}
	if cfg.Credentials.TargetCUIT == "" {
		cfg.Credentials.TargetCUIT = cfg.Credentials.CUIT
	}

	all, _ := cmd.Flags().GetBool("all")
	taxFlags, _ := cmd.Flags().GetStringSlice("tax")
	kinds, err := selectKinds(all, taxFlags)
	if err != nil {
		return err
	}

	store, err := batch.NewStore(cfg.Output.Dir)
	if err != nil {
		return err
	}
	progress, err := sessionProgress(cmd, store, cfg, dates, logger)
	if err != nil {
		return err
	}

	mgr, err := browser.NewManager(ctx, cfg.Browser, cfg.Output.Dir, logger)
	if err != nil {
		return err
	}
	defer mgr.Close()

	tab := mgr.Tab()
	resolver := engine.NewResolver(tab, cfg.Engine.CandidateTimeout, logger)
	orch := engine.NewOrchestrator(
		tab,
		resolver,
		engine.NewVariantDetector(resolver, cfg.Engine.VariantProbeTimeout, logger),
		engine.NewFormFiller(tab, resolver, cfg.Engine.SettleDelay, logger),
		engine.NewResultPoller(tab, resolver, engine.PollerConfig{
			Interval:    cfg.Engine.PollInterval,
			MaxAttempts: cfg.Engine.MaxPollAttempts,
			GraceTicks:  cfg.Engine.RowGraceTicks,
			CellTimeout: cfg.Engine.CellTimeout,
		}, logger),
		mgr.Downloads(),
		cfg.Engine.RetryWait,
		logger,
	)
	portal := arca.NewPortal(tab, resolver, cfg.Portal.LoginURL, cfg.Engine.SettleDelay, logger)

	if err := portal.Login(ctx, cfg.Credentials.CUIT, cfg.Credentials.Clave); err != nil {
		return err
	}
	if err := portal.OpenService(ctx); err != nil {
		return err
	}
	if err := portal.SelectRepresentado(ctx, cfg.Credentials.TargetCUIT); err != nil {
		return err
	}

	runner := &exportRunner{
		portal: portal,
		orch:   orch,
		cfg:    cfg,
		dates:  dates,
		logger: logger,
	}
	driver := batch.NewDriver(store, kinds, logger)
	if err := driver.Run(ctx, runner, progress); err != nil {
		return err
	}

	for i, f := range progress.DownloadedFiles {
		logger.Info("Downloaded file.", zap.Int("n", i+1), zap.String("path", f))
	}
	return nil
}

func selectKinds(all bool, codes []string) ([]arca.TaxKind, error) {
	if all {
		if len(codes) > 0 {
			return nil, fmt.Errorf("--all and --tax are mutually exclusive")
		}
		return arca.TaxKinds, nil
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("pass --tax <code> (see 'retex taxes') or --all")
	}
	kinds := make([]arca.TaxKind, 0, len(codes))
	for _, code := range codes {
		kind, err := arca.TaxKindByCode(code)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func sessionProgress(cmd *cobra.Command, store *batch.Store, cfg *config.Config, dates arca.DateRange, logger *zap.Logger) (*batch.Progress, error) {
	if resume, _ := cmd.Flags().GetBool("resume"); resume {
		progress, err := store.FindLatest()
		if err != nil {
			return nil, err
		}
		if progress != nil {
			logger.Info("Resuming batch session.",
				zap.String("session", progress.SessionID),
				zap.Int("completed", len(progress.CompletedTaxCodes)))
			return progress, nil
		}
		logger.Warn("No interrupted session found, starting fresh.")
	}

	progress := batch.NewProgress(cfg.Credentials.CUIT, cfg.Credentials.TargetCUIT, dates.Desde, dates.Hasta)
	if err := store.Save(progress); err != nil {
		return nil, err
	}
	logger.Info("New batch session.", zap.String("session", progress.SessionID))
	return progress, nil
}

// exportRunner adapts one logged-in portal session to the batch driver.
type exportRunner struct {
	portal *arca.Portal
	orch   *engine.Orchestrator
	cfg    *config.Config
	dates  arca.DateRange
	logger *zap.Logger
}

func (r *exportRunner) ExportOne(ctx context.Context, kind arca.TaxKind, op arca.Operation) (string, error) {
	if err := r.portal.PrepareQuery(ctx, kind, op); err != nil {
		return "", err
	}
	if err := r.portal.Consultar(ctx); err != nil {
		return "", err
	}

	plan := arca.BuildCyclePlan(kind, r.dates, r.cfg.Engine.RowFreshness, nil)
	fd, err := r.orch.RunExportCycle(ctx, plan)
	if err != nil {
		return "", err
	}

	name := batch.ExportFileName(kind.Code, r.cfg.Credentials.TargetCUIT, r.dates.Desde, r.dates.Hasta, time.Now())
	dest := filepath.Join(r.cfg.Output.Dir, name)
	if err := moveFile(fd.Path, dest); err != nil {
		return "", fmt.Errorf("moving download into place: %w", err)
	}
	return dest, nil
}

func (r *exportRunner) NewQuery(ctx context.Context) error {
	return r.portal.NewQuery(ctx)
}

// moveFile renames src to dst, copying when the rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
