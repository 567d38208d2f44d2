package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anders/showsync/internal/engine"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a full sync cycle: export dirty records, then import pending ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		local, ob, err := openLocal()
		if err != nil {
			return err
		}
		defer local.Close()
		defer ob.Close()

		eng := engine.New(newClient(), ob, local)
		exp, imp, err := eng.Sync(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}

		fmt.Printf("exported: %d pushed, %d deleted\n", exp.Pushed, exp.Deleted)
		for _, f := range exp.Failed {
			fmt.Printf("  failed %s: %v\n", f.Entry.RecordID, f.Err)
		}
		fmt.Printf("imported: %d applied, %d removed\n", imp.Applied, imp.Removed)
		return nil
	},
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Bulk first-time sync: pull every record on the server into the local cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		local, ob, err := openLocal()
		if err != nil {
			return err
		}
		defer local.Close()
		defer ob.Close()

		eng := engine.New(newClient(), ob, local)
		imp, err := eng.Bootstrap(cmd.Context())
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}

		fmt.Printf("bootstrapped: %d applied, %d removed\n", imp.Applied, imp.Removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(bootstrapCmd)
}
