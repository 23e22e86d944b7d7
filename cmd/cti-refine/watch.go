package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/swarmguard/cti-refine/core/otelinit"
	"github.com/swarmguard/cti-refine/internal/column"
	"github.com/swarmguard/cti-refine/internal/extract"
	"github.com/swarmguard/cti-refine/internal/inbox"
)

func newWatchCmd() *cobra.Command {
	var (
		dir, outDir string
		operation   string
		col         string
		mode        string
		defangRes   bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process CSV files dropped into an inbox directory",
		Long: `Watch runs a column job on every CSV file already present in, created in or
written to the inbox directory, writing the result under the same name in the
out directory. Defaults come from the inbox section of the config.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ic := cfg.Inbox
			fl := cmd.Flags()
			if fl.Changed("dir") {
				ic.Dir = dir
			}
			if fl.Changed("out") {
				ic.OutDir = outDir
			}
			if fl.Changed("operation") {
				ic.Operation = operation
			}
			if fl.Changed("column") {
				ic.Column = col
			}
			if fl.Changed("mode") {
				ic.Mode = mode
			}
			if fl.Changed("defang") {
				ic.Defang = defangRes
			}
			m, err := column.ParseMode(ic.Mode)
			if err != nil {
				return err
			}
			if _, err := extract.Default().Lookup(ic.Operation); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			shutdownMetrics, metrics := otelinit.InitMetrics(ctx, appName, otelOptions())
			defer func() { _ = shutdownMetrics(context.Background()) }()

			proc := column.NewProcessor(extract.Default(), column.Options{Workers: cfg.Batch.Workers, ShardPow: cfg.Batch.ShardPow}, metrics)
			w, err := inbox.New(proc, inbox.Options{
				Dir:      ic.Dir,
				OutDir:   ic.OutDir,
				Debounce: ic.Debounce,
				Job: column.Job{
					Operation:    ic.Operation,
					Column:       ic.Column,
					DefangResult: ic.Defang,
					Mode:         m,
				},
				OnDone: func(path string, res column.Result, err error) {
					if err != nil {
						colorRed.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
						return
					}
					colorGreen.Fprintf(cmd.ErrOrStderr(), "%s: %s -> %s (%d rows)\n", path, res.Column, res.Target, res.Rows)
				},
			})
			if err != nil {
				return err
			}
			slog.Info("watching inbox", "dir", ic.Dir, "out", ic.OutDir, "operation", ic.Operation)
			return w.Run(ctx)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&dir, "dir", "", "inbox directory")
	fl.StringVar(&outDir, "out", "", "output directory")
	fl.StringVar(&operation, "operation", "", "operation to apply")
	fl.StringVar(&col, "column", "", "source column header")
	fl.StringVar(&mode, "mode", "", "insert or replace")
	fl.BoolVarP(&defangRes, "defang", "d", false, "defang extracted indicators")
	return cmd
}
