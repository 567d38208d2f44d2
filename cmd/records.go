package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anders/showsync/internal/syncclient"
)

var pushCmd = &cobra.Command{
	Use:   "push <record-id> <file>",
	Short: "Push a record body from a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		if !json.Valid(body) {
			return fmt.Errorf("%s is not valid JSON", args[1])
		}

		client := newClient()
		rec, err := client.PushRecord(cmd.Context(), args[0], body)
		if err != nil {
			return fmt.Errorf("push: %w", err)
		}
		fmt.Printf("pushed %s revision %s, pending for %d device(s)\n", rec.ID, rec.Revision, len(rec.Pending))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Delete (tombstone) a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if err := client.DeleteRecord(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull records pending for this device (or everything with --all)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		client := newClient()

		var resp *syncclient.PullResponse
		var err error
		if all {
			resp, err = client.PullAll(cmd.Context())
		} else {
			resp, err = client.PullPending(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}

		out := json.NewEncoder(os.Stdout)
		out.SetIndent("", "  ")
		return out.Encode(resp.Data)
	},
}

var ackCmd = &cobra.Command{
	Use:   "ack <record-id>",
	Short: "Acknowledge a pulled record as applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		if err := client.AcknowledgePending(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("acknowledge: %w", err)
		}
		fmt.Printf("acknowledged %s\n", args[0])
		return nil
	},
}

func init() {
	pullCmd.Flags().Bool("all", false, "pull every record instead of only pending ones")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(ackCmd)
}
