package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"PriceSentinel/internal/history"
	"PriceSentinel/internal/notifier"
	"PriceSentinel/internal/recorder"
)

func checkCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one check now and print the report",
		Long: "check runs a single manual cycle against every configured product and\n" +
			"prints the report. With --dry-run the stored history is read but never\n" +
			"written and nothing is archived. Telegram credentials are not needed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not persist the updated price history")
	return cmd
}

func runCheck(cmd *cobra.Command, dryRun bool) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateCatalog(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	file := history.NewFileStore(cfg.History.File, history.WithLogger(log))
	var store history.Store = file
	if dryRun {
		store = history.NewMemoryStore(file.Load(ctx))
	}

	rec := recorder.Recorder(recorder.NewNoopRecorder())
	if !dryRun {
		rec = buildRecorder(ctx, cfg, log)
	}
	defer rec.Close()

	mon, release, err := buildMonitor(cfg, log, store, rec)
	if err != nil {
		return err
	}
	defer release()
	res, err := mon.RunManual(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, notifier.FormatReport(res, loc))
	if len(res.Alerts) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, notifier.FormatAlerts(res.Alerts))
	}
	return nil
}
