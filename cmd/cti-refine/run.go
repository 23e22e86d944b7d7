package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/swarmguard/cti-refine/internal/bus"
	"github.com/swarmguard/cti-refine/internal/extract"
)

type runResult struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

func newRunCmd() *cobra.Command {
	var (
		defangResult bool
		outFormat    string
		remote       bool
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <operation> [text...]",
		Short: "Run one operation on text from the arguments or stdin",
		Long: `Run applies a single operation (see "ops") to its text arguments, or to
each non-empty line of stdin when no text is given. With --remote the work is
sent to a serving instance over NATS.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(outFormat)
			if err != nil {
				return err
			}
			texts, err := inputs(args[1:], cmd.InOrStdin())
			if err != nil {
				return err
			}
			run := localRunner(extract.Default())
			if remote {
				nc, err := bus.Connect(cmd.Context(), cfg.NATS.URL, cfg.NATS.ConnectAttempts, cfg.NATS.ConnectDelay)
				if err != nil {
					return err
				}
				defer nc.Close()
				client := bus.NewClient(nc, cfg.NATS.Subject)
				run = func(ctx context.Context, op, text string, d bool) (string, error) {
					ctx, cancel := context.WithTimeout(ctx, timeout)
					defer cancel()
					return client.Do(ctx, bus.Request{Operation: op, Text: text, Defang: d})
				}
			}
			results, err := runAll(cmd.Context(), run, args[0], texts, defangResult)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), f, results, func(w io.Writer) error {
				for _, r := range results {
					if _, err := fmt.Fprintln(w, r.Output); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	fl := cmd.Flags()
	fl.BoolVarP(&defangResult, "defang", "d", false, "defang extracted indicators")
	fl.StringVarP(&outFormat, "format", "f", "text", "output format: text, json or yaml")
	fl.BoolVar(&remote, "remote", false, "send requests to a serving instance over NATS")
	fl.DurationVar(&timeout, "timeout", 5*time.Second, "per-request timeout with --remote")
	return cmd
}

type runner func(ctx context.Context, op, text string, defangResult bool) (string, error)

func localRunner(reg *extract.Registry) runner {
	return func(_ context.Context, op, text string, defangResult bool) (string, error) {
		return reg.Run(op, text, defangResult)
	}
}

func runAll(ctx context.Context, run runner, op string, texts []string, defangResult bool) ([]runResult, error) {
	results := make([]runResult, 0, len(texts))
	for _, text := range texts {
		out, err := run(ctx, op, text, defangResult)
		if err != nil {
			return nil, err
		}
		results = append(results, runResult{Input: text, Output: out})
	}
	return results, nil
}
