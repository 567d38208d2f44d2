package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anders/showsync/internal/config"
)

var registerCmd = &cobra.Command{
	Use:   "register <name>",
	Short: "Register this device (or rename it when an id is already saved)",
	Long: `Register this device under the given display name.

The assigned id is saved to the config file and used by all later commands.
New devices are read-only until promoted with "showsync-server admin
authorize". When a device id is already configured, the existing device is
renamed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		id, err := client.Register(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}

		dir := config.Dir()
		if err := config.SetDevice(dir, id, args[0]); err != nil {
			return fmt.Errorf("save device id: %w", err)
		}
		if serverURL != "" {
			if err := config.SetServerURL(dir, serverURL); err != nil {
				return fmt.Errorf("save server url: %w", err)
			}
		}

		fmt.Printf("device id: %s\n", id)
		return nil
	},
}

var deregisterCmd = &cobra.Command{
	Use:   "deregister",
	Short: "Deregister this device from the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if err := client.Deregister(cmd.Context()); err != nil {
			return fmt.Errorf("deregister: %w", err)
		}
		if err := config.ClearDevice(config.Dir()); err != nil {
			return fmt.Errorf("clear saved device id: %w", err)
		}
		fmt.Println("device deregistered")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(deregisterCmd)
}
