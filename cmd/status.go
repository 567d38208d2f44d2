package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check server reachability and pending work for this device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()

		health, err := client.HealthCheck(cmd.Context())
		if err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}
		fmt.Printf("server: %s\n", health.Status)

		if client.DeviceID == "" {
			fmt.Println("no device id configured; run register first")
			return nil
		}

		resp, err := client.PullPending(cmd.Context())
		if err != nil {
			return fmt.Errorf("pull pending: %w", err)
		}
		fmt.Printf("records pending for this device: %d\n", len(resp.Data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
