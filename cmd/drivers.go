// File: cmd/drivers.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagecraft/pkg/driver/launch"
)

func newDriversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List the browser drivers pagecraft can start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range launch.Names() {
				marker := " "
				if name == cfg.Driver().Name {
					marker = "*"
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
