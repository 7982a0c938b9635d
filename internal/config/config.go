package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ExportsRoot string `toml:"exports_root"`
	DBPath      string `toml:"db_path"`
	ViewerName  string `toml:"viewer_name"`
	LogLevel    string `toml:"log_level"`
}

// environment overrides, applied after the config file
const (
	envExportsRoot = "WCV_EXPORTS_ROOT"
	envDBPath      = "WCV_DB_PATH"
	envViewer      = "WCV_VIEWER"
	envLogLevel    = "WCV_LOG_LEVEL"
)

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ExportsRoot: filepath.Join(home, "WhatsApp"),
		DBPath:      filepath.Join(home, ".config", "wcv", "wcv.db"),
		LogLevel:    "warn",
	}

	cfgPath := Path(home)
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	cfg.applyEnvOverrides()

	// expand ~ in paths
	cfg.ExportsRoot = expandHome(cfg.ExportsRoot, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)

	return cfg, nil
}

// Path returns the location of the config file under home.
func Path(home string) string {
	return filepath.Join(home, ".config", "wcv", "config.toml")
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envExportsRoot); v != "" {
		c.ExportsRoot = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(envViewer); v != "" {
		c.ViewerName = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = v
	}
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
