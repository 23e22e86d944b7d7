package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/swarmguard/cti-refine/core/otelinit"
	"github.com/swarmguard/cti-refine/internal/column"
	"github.com/swarmguard/cti-refine/internal/extract"
)

func newColumnCmd() *cobra.Command {
	var (
		in, out string
		mode    string
		job     column.Job
	)
	cmd := &cobra.Command{
		Use:   "column",
		Short: "Apply an operation to every cell of a CSV column",
		Long: `Column reads a CSV table (first row is the header), runs the operation on
each distinct value of the chosen column and writes the table back with the
results in a new column, or in place for defang/fang.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := column.ParseMode(mode)
			if err != nil {
				return err
			}
			job.Mode = m

			var r io.Reader = cmd.InOrStdin()
			if in != "" && in != "-" {
				f, err := os.Open(in)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			t, err := column.ReadCSV(r)
			if err != nil {
				return err
			}

			proc := column.NewProcessor(extract.Default(), column.Options{
				Workers:  cfg.Batch.Workers,
				ShardPow: cfg.Batch.ShardPow,
			}, otelinit.NewMetrics())
			res, err := proc.Apply(cmd.Context(), t, job)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := column.WriteCSV(w, t); err != nil {
				return err
			}
			colorGreen.Fprintf(cmd.ErrOrStderr(), "%s: %s -> %s (%d rows, %d distinct, %d changed)\n",
				res.Operation, res.Column, res.Target, res.Rows, res.Distinct, res.Changed)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&in, "in", "i", "", "input CSV file (default stdin)")
	fl.StringVarP(&out, "out", "o", "", "output CSV file (default stdout)")
	fl.StringVar(&job.Operation, "operation", "", "operation to apply (see ops)")
	fl.StringVar(&job.Column, "column", "", "source column header")
	fl.BoolVarP(&job.DefangResult, "defang", "d", false, "defang extracted indicators")
	fl.StringVar(&job.NewColumn, "new-column", "", "name of the inserted column")
	fl.StringVar(&mode, "mode", "", "insert or replace (default depends on the operation)")
	_ = cmd.MarkFlagRequired("operation")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}
