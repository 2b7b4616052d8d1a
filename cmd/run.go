// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagecraft/internal/flow"
	"github.com/xkilldash9x/pagecraft/internal/observability"
	"github.com/xkilldash9x/pagecraft/pkg/pageobject"
)

type flowOutcome struct {
	report *flow.Report
	err    error
}

func newRunCmd() *cobra.Command {
	var (
		format   string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "run <flow.yaml>...",
		Short: "Run one or more YAML flows",
		Long: `Run loads every flow first, then runs each one in its own browser session
and prints a report per flow in argument order. The command fails if any
flow fails.`,
		Example: `  pagecraft run flows/sign-in.yaml
  pagecraft run --parallel 4 --format yaml flows/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return fmt.Errorf("unknown format %q (want text or yaml)", format)
			}
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1, got %d", parallel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			flows := make([]*flow.Flow, len(args))
			for i, path := range args {
				if flows[i], err = flow.Load(path); err != nil {
					return err
				}
			}

			outcomes := make([]flowOutcome, len(flows))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(parallel)
			for i, f := range flows {
				g.Go(func() error {
					// Flow failures are collected, only cancellation stops the group.
					if err := gctx.Err(); err != nil {
						return err
					}
					report, err := runFlow(gctx, newTestContext(cfg), cfg.Driver().Name, f)
					outcomes[i] = flowOutcome{report: report, err: err}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			var failed []error
			for i, o := range outcomes {
				if o.report != nil {
					if err := writeReport(cmd.OutOrStdout(), o.report, format); err != nil {
						return err
					}
				}
				if o.err != nil {
					failed = append(failed, fmt.Errorf("%s: %w", args[i], o.err))
				}
			}
			if len(failed) > 0 {
				observability.GetLogger().Warn("Flows failed.", zap.Int("failed", len(failed)), zap.Int("total", len(flows)))
			}
			return errors.Join(failed...)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "report format (text or yaml)")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 1, "number of flows to run at once")
	return cmd
}

// runFlow gives f a browser of its own and closes it before returning.
func runFlow(ctx context.Context, tc *pageobject.TestContext, driverName string, f *flow.Flow) (*flow.Report, error) {
	defer closeTestContext(tc)
	if _, err := tc.StartBrowser(ctx, driverName); err != nil {
		return nil, err
	}
	return flow.Run(ctx, tc, f)
}

func writeReport(w io.Writer, r *flow.Report, format string) error {
	if format == "yaml" {
		// Separate reports so the output stays a valid YAML stream.
		if _, err := io.WriteString(w, "---\n"); err != nil {
			return err
		}
		return r.WriteYAML(w)
	}
	return r.WriteText(w)
}
