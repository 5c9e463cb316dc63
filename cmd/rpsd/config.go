package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type poolConfig struct {
	Enabled      bool   `toml:"enabled"`
	Seed         uint64 `toml:"seed"`
	BotAuthority string `toml:"bot_authority"`
}

type config struct {
	DataDir    string `toml:"data_dir"`
	ListenAddr string `toml:"listen_addr"`
	Asset      string `toml:"asset"`
	MinWager   uint64 `toml:"min_wager"`
	Operator   string `toml:"operator"`
	Cleaner    string `toml:"cleaner"`
	DebugLevel string `toml:"debug_level"`

	Pool poolConfig `toml:"pool"`
}

func defaultConfig() *config {
	home, _ := os.UserHomeDir()
	return &config{
		DataDir:    filepath.Join(home, ".rpsd"),
		ListenAddr: ":8090",
		Asset:      "dcr",
		MinWager:   1000,
		DebugLevel: "info",
	}
}

// loadConfig reads the TOML config at path over the defaults. A missing
// file is fine; a missing operator is not, since cleanup and pool
// creation would be impossible.
func loadConfig(path string) (*config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if cfg.Operator == "" {
		return nil, fmt.Errorf("config missing operator identity")
	}
	if cfg.Pool.Enabled && cfg.Pool.BotAuthority == "" {
		return nil, fmt.Errorf("pool enabled but no bot_authority configured")
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}
