package cmd

import (
	"github.com/spf13/cobra"

	"songrelay/core/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print the tool manifest served at /.well-known/mcp.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if _, err := out.Write(manifest.JSON()); err != nil {
			return err
		}
		_, err := out.Write([]byte("\n"))
		return err
	},
}

func init() {
	rootCmd.AddCommand(manifestCmd)
}
