// Package config persists the client's device identity and server address in
// a JSON file under the user's config directory.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
)

const configFile = "config.json"
const lockFile = "config.json.lock"

// Config is the client-side configuration.
type Config struct {
	ServerURL  string `json:"server_url,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
}

// Dir returns the directory holding the client's config and local databases.
// SHOWSYNC_HOME overrides the default ~/.showsync.
func Dir() string {
	if dir := os.Getenv("SHOWSYNC_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".showsync"
	}
	return filepath.Join(home, ".showsync")
}

// Load reads the config from disk. A missing file yields an empty config.
func Load(baseDir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to disk using atomic write (temp file + rename)
func Save(baseDir string, cfg *Config) error {
	configPath := filepath.Join(baseDir, configFile)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(configPath), "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, configPath)
}

// withConfigLock serializes access to config.json using flock
func withConfigLock(baseDir string, fn func() error) error {
	lockPath := filepath.Join(baseDir, lockFile)

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}

// SetDevice records the device identity assigned by the server.
func SetDevice(baseDir, id, name string) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		cfg.DeviceID = id
		cfg.DeviceName = name
		return Save(baseDir, cfg)
	})
}

// ClearDevice forgets the stored device identity after deregistration.
func ClearDevice(baseDir string) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		cfg.DeviceID = ""
		cfg.DeviceName = ""
		return Save(baseDir, cfg)
	})
}

// SetServerURL records the server base URL.
func SetServerURL(baseDir, url string) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		cfg.ServerURL = url
		return Save(baseDir, cfg)
	})
}
