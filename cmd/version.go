package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	versionpkg "github.com/anders/showsync/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version and check for updates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("showsync %s\n", rootCmd.Version)

		if update := versionpkg.CheckCached(rootCmd.Version); update != nil {
			fmt.Printf("\nupdate available: %s -> %s\n", update.CurrentVersion, update.LatestVersion)
			if update.UpdateCommand != "" {
				fmt.Printf("  %s\n", update.UpdateCommand)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
