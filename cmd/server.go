package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"songrelay/logger"
	"songrelay/server"
)

var serverCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay HTTP server",
	Long:  `Start the HTTP server exposing /send-tracks, /health, /.well-known/mcp.json and the /mcp tool endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func runServer(ctx context.Context) error {
	cfg, shutdown, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer flushTraces(shutdown)

	if !cfg.MusicAppConfigured() {
		logger.Warn("MUSIC_APP_API_URL is empty, every delivery will fail")
	}
	return server.Start(ctx, cfg)
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
