package cli

import (
	"github.com/spf13/cobra"

	"github.com/LLIEPJIOK/hermes/internal/demo"
	"github.com/LLIEPJIOK/hermes/pkg/hermes"
)

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the add and echo example in process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := hermes.DefaultRouterConfig()
			cfg.Logger = a.logger

			return demo.Run(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
}
