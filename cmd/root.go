package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/anders/showsync/internal/config"
	"github.com/anders/showsync/internal/localstore"
	"github.com/anders/showsync/internal/outbox"
	"github.com/anders/showsync/internal/syncclient"
)

var (
	version   string
	serverURL string
	deviceID  string
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "showsync",
	Short: "Multi-device record synchronization client",
	Long: `showsync - client for the showsync record synchronization server.

Registers this device, pushes locally changed records, pulls records other
devices changed, and acknowledges what it has applied. The device identity
and server address persist in ~/.showsync/config.json after register.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newClient builds a sync client. Precedence: flags, environment, then the
// saved config file.
func newClient() *syncclient.Client {
	cfg, err := config.Load(config.Dir())
	if err != nil {
		cfg = &config.Config{}
	}

	url := serverURL
	if url == "" {
		url = os.Getenv("SHOWSYNC_SERVER")
	}
	if url == "" {
		url = cfg.ServerURL
	}
	if url == "" {
		url = "http://localhost:8080"
	}

	dev := deviceID
	if dev == "" {
		dev = os.Getenv("SHOWSYNC_DEVICE_ID")
	}
	if dev == "" {
		dev = cfg.DeviceID
	}

	return syncclient.New(url, dev)
}

// openLocal opens the client's local record cache and outbox under the config
// directory. The caller closes both.
func openLocal() (*localstore.LocalStore, *outbox.SQLite, error) {
	dir := config.Dir()

	local, err := localstore.Open(filepath.Join(dir, "local.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open local store: %w", err)
	}

	ob, err := outbox.Open(filepath.Join(dir, "outbox.db"))
	if err != nil {
		local.Close()
		return nil, nil, fmt.Errorf("open outbox: %w", err)
	}

	return local, ob, nil
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default: $SHOWSYNC_SERVER or the saved config)")
	rootCmd.PersistentFlags().StringVar(&deviceID, "device", "", "device id (default: $SHOWSYNC_DEVICE_ID or the saved config)")
}
