// Package daemon manages the modelbay daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Downloads DownloadsConfig `toml:"downloads"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	EnableMetrics bool   `toml:"enable_metrics"`
}

// CatalogConfig controls the catalog sources and refresh behavior.
type CatalogConfig struct {
	Queries           []string `toml:"queries"`
	HubURL            string   `toml:"hub_url"`      // empty = default hub endpoint
	RegistryURL       string   `toml:"registry_url"` // empty = default registry endpoint
	RequestIntervalMS int      `toml:"request_interval_ms"`
	FanoutLimit       int      `toml:"fanout_limit"`
}

// RequestInterval is the per-adapter request spacing.
func (c CatalogConfig) RequestInterval() time.Duration {
	return time.Duration(c.RequestIntervalMS) * time.Millisecond
}

// DownloadsConfig controls artifact storage and the download scheduler.
type DownloadsConfig struct {
	Dir                string `toml:"dir"`
	MaxConcurrent      int    `toml:"max_concurrent"`
	MaxRetries         int    `toml:"max_retries"`
	ProgressIntervalMS int    `toml:"progress_interval_ms"`
}

// ProgressInterval is the progress persist/event coalescing window.
func (c DownloadsConfig) ProgressInterval() time.Duration {
	return time.Duration(c.ProgressIntervalMS) * time.Millisecond
}

// DefaultConfig returns the default configuration rooted at the modelbay
// home directory.
func DefaultConfig() Config {
	home := modelbayHome()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 11979,
		},
		Catalog: CatalogConfig{
			Queries:           []string{"trending", "owner:TheBloke"},
			RequestIntervalMS: 150,
			FanoutLimit:       4,
		},
		Downloads: DownloadsConfig{
			Dir:                filepath.Join(home, "models"),
			MaxConcurrent:      3,
			MaxRetries:         5,
			ProgressIntervalMS: 250,
		},
	}
}

// LoadConfig reads $MODELBAY_HOME/config.toml. On first run the file does
// not exist yet; it is created with defaults so users have something to edit.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(modelbayHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveConfig(cfg); err != nil {
			log.Printf("[daemon] write default config: %v", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $MODELBAY_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(modelbayHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// modelbayHome returns the modelbay data directory.
func modelbayHome() string {
	if env := os.Getenv("MODELBAY_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".modelbay")
}

// Home is the modelbay data directory, exported for other packages.
func Home() string {
	return modelbayHome()
}
