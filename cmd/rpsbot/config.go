package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type config struct {
	DataDir      string `toml:"data_dir"`
	ServerURL    string `toml:"server_url"`
	PrivKey      string `toml:"priv_key"`
	MaxWager     uint64 `toml:"max_wager"`
	PollInterval int    `toml:"poll_interval_seconds"`
	DebugLevel   string `toml:"debug_level"`
}

func defaultConfig() *config {
	home, _ := os.UserHomeDir()
	return &config{
		DataDir:      filepath.Join(home, ".rpsbot"),
		ServerURL:    "http://localhost:8090",
		MaxWager:     100_000_000,
		PollInterval: 2,
		DebugLevel:   "info",
	}
}

func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if cfg.PrivKey == "" {
		return nil, fmt.Errorf("config missing priv_key")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}
