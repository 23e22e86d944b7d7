package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/swarmguard/cti-refine/internal/extract"
)

func newOpsCmd() *cobra.Command {
	var outFormat string
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List the available operations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := parseFormat(outFormat)
			if err != nil {
				return err
			}
			ops := extract.Default().Operations()
			return render(cmd.OutOrStdout(), f, ops, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "OPERATION\tFAMILY\tDEFANG\tCOLUMN")
				for _, op := range ops {
					col := op.Column
					if op.InPlace() {
						col = "(in place)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", op.Name, op.Family, op.Defangable, col)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&outFormat, "format", "f", "text", "output format: text, json or yaml")
	return cmd
}
