package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"songrelay/config"
	"songrelay/logger"
	"songrelay/server"
	"songrelay/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "songrelay",
	Short: "SongRelay forwards agent-discovered tracks to your music app.",
	Long: `SongRelay exposes a send_tracks_to_app tool to AI agents, forwards each batch
of tracks to the configured music app API and reports the outcome.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and brings up logging and tracing.
func bootstrap(ctx context.Context) (*config.Config, telemetry.Shutdown, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := logger.InitLogger(cfg.LoggerConfig()); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	shutdown, err := telemetry.Setup(ctx, "songrelay", server.Version, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("init tracing: %w", err)
	}
	return cfg, shutdown, nil
}

// flushTraces runs shutdown on a fresh context and logs any export failure.
func flushTraces(shutdown telemetry.Shutdown) error {
	err := shutdown(context.Background())
	if err != nil {
		logger.Warn("failed to flush traces", logger.ErrorField(err))
	}
	return err
}
