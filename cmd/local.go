package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anders/showsync/internal/outbox"
)

var setCmd = &cobra.Command{
	Use:   "set <record-id> <file>",
	Short: "Write a record body into the local cache and queue it for the next sync",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
		if !json.Valid(body) {
			return fmt.Errorf("%s is not valid JSON", args[1])
		}

		recordType, _ := cmd.Flags().GetString("type")

		local, ob, err := openLocal()
		if err != nil {
			return err
		}
		defer local.Close()
		defer ob.Close()

		if err := local.Set(cmd.Context(), recordType, args[0], body); err != nil {
			return err
		}
		if err := ob.MarkDirty(cmd.Context(), recordType, args[0], outbox.ActionModified); err != nil {
			return fmt.Errorf("queue record: %w", err)
		}

		fmt.Printf("queued %s for the next sync\n", args[0])
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <record-id>",
	Short: "Delete a record locally and queue the deletion for the next sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordType, _ := cmd.Flags().GetString("type")

		local, ob, err := openLocal()
		if err != nil {
			return err
		}
		defer local.Close()
		defer ob.Close()

		if err := local.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		if err := ob.MarkDirty(cmd.Context(), recordType, args[0], outbox.ActionDeleted); err != nil {
			return fmt.Errorf("queue deletion: %w", err)
		}

		fmt.Printf("queued deletion of %s for the next sync\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the records in the local cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		local, ob, err := openLocal()
		if err != nil {
			return err
		}
		defer local.Close()
		defer ob.Close()

		recs, err := local.List(cmd.Context())
		if err != nil {
			return err
		}

		dirty := make(map[string]outbox.Action)
		entries, err := ob.Drain(cmd.Context())
		if err != nil {
			return err
		}
		for _, e := range entries {
			dirty[e.RecordID] = e.Action
		}

		for _, rec := range recs {
			marker := " "
			if _, ok := dirty[rec.ID]; ok {
				marker = "*"
			}
			fmt.Printf("%s %s\t%s\t%s\n", marker, rec.ID, rec.RecordType, rec.Body)
		}
		for id, action := range dirty {
			if action == outbox.ActionDeleted {
				fmt.Printf("* %s\t(deletion queued)\n", id)
			}
		}
		return nil
	},
}

func init() {
	setCmd.Flags().String("type", "record", "record type tag kept in the local cache")
	rmCmd.Flags().String("type", "record", "record type tag of the queued deletion")
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(listCmd)
}
