package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"songrelay/config"
	"songrelay/core/musicapp"
	"songrelay/core/relay"
	"songrelay/logger"
	"songrelay/model"
)

var sendFile string

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a batch of tracks from a JSON file straight to the music app",
	Long: `Read a {"tracks": [...]} document, validate it the same way POST /send-tracks does
and deliver it to MUSIC_APP_API_URL without starting the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, shutdown, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer logger.Sync()
		defer flushTraces(shutdown)

		in := cmd.InOrStdin()
		if sendFile != "-" {
			f, err := os.Open(sendFile)
			if err != nil {
				return fmt.Errorf("open tracks file: %w", err)
			}
			defer f.Close()
			in = f
		}
		return runSend(cmd.Context(), cfg, in, cmd.OutOrStdout())
	},
}

func runSend(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read tracks: %w", err)
	}
	req, err := model.ParseSendTracksRequest(body)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		return err
	}

	client := musicapp.NewClient(cfg.MusicAppURL, cfg.MusicAppAPIKey, cfg.MusicAppTimeout)
	resp, err := relay.NewService(client).SendTracks(ctx, req.Tracks)
	if err != nil {
		return errors.New(relay.Describe(err))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "-", "JSON file with the tracks to send (- for stdin)")
	sendCmd.Example = `  # 从文件发送
  songrelay send -f tracks.json

  # 从标准输入发送
  echo '{"tracks":[{"artist":"Boards of Canada","title":"Roygbiv"}]}' | songrelay send`
}
