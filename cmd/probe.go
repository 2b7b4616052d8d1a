// -- cmd/probe.go --
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagecraft/internal/observability"
	"github.com/xkilldash9x/pagecraft/pkg/pageobject"
)

func newProbeCmd() *cobra.Command {
	var selectors []string

	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Open a URL and report what the browser sees",
		Long: `Probe starts the configured driver, opens the URL as an ad hoc page and
prints the final location, the start of the body text and, for each
--selector, how many elements match and how many are displayed.`,
		Example: `  pagecraft probe https://example.com
  pagecraft probe --driver rod -s "form#login" -s ".error" https://app.local/login`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			tc := newTestContext(cfg)
			defer closeTestContext(tc)
			if _, err := tc.StartBrowser(ctx, cfg.Driver().Name); err != nil {
				return err
			}

			page, err := pageobject.As[*pageobject.Page](tc.Open(ctx, &pageobject.PageClass{Name: "Probe", URL: args[0]}))
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			return writeProbe(ctx, cmd.OutOrStdout(), page, tc.Settings().BodyTextLimit, selectors)
		},
	}

	cmd.Flags().StringArrayVarP(&selectors, "selector", "s", nil, "CSS selector to report on (repeatable)")
	return cmd
}

func writeProbe(ctx context.Context, w io.Writer, page *pageobject.Page, limit int, selectors []string) error {
	location, err := page.Location(ctx)
	if err != nil {
		return err
	}
	body, err := page.BodyText(ctx)
	if err != nil {
		return err
	}
	if r := []rune(body); len(r) > limit {
		body = string(r[:limit]) + "..."
	}

	fmt.Fprintf(w, "location: %s\n", location)
	fmt.Fprintf(w, "body:     %q\n", body)
	for _, sel := range selectors {
		fmt.Fprintf(w, "%s: %s\n", sel, probeSelector(ctx, page, sel))
	}
	return nil
}

func probeSelector(ctx context.Context, page *pageobject.Page, selector string) string {
	els, err := page.GetAllViaCSS(ctx, selector)
	if err != nil {
		return "error: " + err.Error()
	}
	if len(els) == 0 {
		return "missing"
	}
	visible := 0
	for _, el := range els {
		if ok, err := el.IsDisplayed(ctx); err == nil && ok {
			visible++
		}
	}
	return fmt.Sprintf("%d found, %d visible", len(els), visible)
}

func closeTestContext(tc *pageobject.TestContext) {
	if err := tc.Close(); err != nil {
		observability.GetLogger().Warn("Failed to close browser sessions.", zap.Error(err))
	}
}
