package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrapetoapi/scrapetoapi/pkg/wire"
)

func newServeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long:  `The serve command starts the scrape API, the web form and the background cleanup workers. It stops gracefully on SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, cleanup, err := wire.InitializeApp(ctx, cfg, buildInfo())
			if err != nil {
				return fmt.Errorf("error initializing server: %w", err)
			}
			defer cleanup()

			if err := app.Run(ctx); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			app.Logger.Info().Msg("Server stopped gracefully")
			return nil
		},
	}
}
