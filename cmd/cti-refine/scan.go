package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/swarmguard/cti-refine/internal/extract"
	"github.com/swarmguard/cti-refine/internal/ioc"
)

func newScanCmd() *cobra.Command {
	var (
		outFormat string
		classes   []string
	)
	cmd := &cobra.Command{
		Use:   "scan [text...]",
		Short: "List every indicator found in the text, labelled by class",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(outFormat)
			if err != nil {
				return err
			}
			keep, err := classFilter(classes)
			if err != nil {
				return err
			}
			texts, err := inputs(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			found := scanAll(extract.Default(), texts, keep)
			return render(cmd.OutOrStdout(), f, found, func(w io.Writer) error {
				if len(found) == 0 {
					colorYellow.Fprintln(cmd.ErrOrStderr(), "no indicators found")
					return nil
				}
				for _, ind := range found {
					if _, err := fmt.Fprintf(w, "%s\t%s\n", colorCyan.Sprintf("%-18s", ind.Class), ind.Value); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outFormat, "format", "f", "text", "output format: text, json or yaml")
	cmd.Flags().StringSliceVarP(&classes, "class", "c", nil, "only report these classes (repeatable)")
	return cmd
}

func classFilter(names []string) (map[ioc.Class]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	keep := make(map[ioc.Class]bool, len(names))
	for _, n := range names {
		c, err := ioc.ParseClass(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		keep[c] = true
	}
	return keep, nil
}

// scanAll scans each text and returns the indicators in first-seen order
// with duplicates across texts removed.
func scanAll(reg *extract.Registry, texts []string, keep map[ioc.Class]bool) []ioc.Indicator {
	seen := make(map[ioc.Indicator]struct{})
	out := []ioc.Indicator{}
	for _, text := range texts {
		for _, ind := range reg.Scan(text) {
			if keep != nil && !keep[ind.Class] {
				continue
			}
			if _, dup := seen[ind]; dup {
				continue
			}
			seen[ind] = struct{}{}
			out = append(out, ind)
		}
	}
	return out
}
