package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"semlayer/internal/app"
	"semlayer/internal/config"
)

func newServeCmd() *cobra.Command {
	var (
		envFile    string
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  "Serves /v1/rewrite, /v1/query, /v1/explain, /v1/deploy, /v1/status and /v1/deployments. Configuration comes from the environment and an optional .env file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listenAddr
			}

			logger := app.NewLogger(cfg, cmd.ErrOrStderr())
			for _, w := range cfg.Warnings {
				logger.Warn(w)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Optional .env file")
	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}
