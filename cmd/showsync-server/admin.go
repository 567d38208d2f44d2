package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/anders/showsync/internal/api"
	"github.com/anders/showsync/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "authorize":
		runAdminAuthorize(args[1:], true)
	case "revoke":
		runAdminAuthorize(args[1:], false)
	case "devices":
		runAdminDevices(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: showsync-server admin <command> [flags]

Commands:
  authorize   Grant write access to a device
  revoke      Revoke write access from a device (back to read-only)
  devices     List registered devices`)
}

func openDB(dbPath string) *serverdb.ServerDB {
	if dbPath == "" {
		cfg := api.LoadConfig()
		dbPath = cfg.DBPath
	}
	store, err := serverdb.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runAdminAuthorize(args []string, authorized bool) {
	name := "admin authorize"
	if !authorized {
		name = "admin revoke"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	deviceID := fs.String("device", "", "device id")
	dbPath := fs.String("db", "", "path to showsync.db (default: from SHOWSYNC_DB_PATH or ./data/showsync.db)")
	fs.Parse(args)

	if *deviceID == "" {
		fmt.Fprintln(os.Stderr, "error: --device is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	if err := store.Devices().SetAuthorized(context.Background(), *deviceID, authorized); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if authorized {
		fmt.Printf("device %s authorized\n", *deviceID)
	} else {
		fmt.Printf("device %s set to read-only\n", *deviceID)
	}
}

func runAdminDevices(args []string) {
	fs := flag.NewFlagSet("admin devices", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to showsync.db (default: from SHOWSYNC_DB_PATH or ./data/showsync.db)")
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	devices, err := store.Devices().List(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(devices) == 0 {
		fmt.Println("no devices registered")
		return
	}
	for _, d := range devices {
		access := "read-only"
		if d.Authorized {
			access = "authorized"
		}
		fmt.Printf("%s  %-20s %s  registered %s\n", d.ID, d.Name, access, d.CreatedAt.Format("2006-01-02"))
	}
}
