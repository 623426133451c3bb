package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port    string `toml:"port"`
	DBPath  string `toml:"db_path"`
	Workers int    `toml:"workers"`

	// PollInterval is how often idle workers re-check for pending jobs.
	PollInterval time.Duration `toml:"poll_interval"`

	HubSpot HubSpotConfig `toml:"hubspot"`
}

type HubSpotConfig struct {
	Endpoint string `toml:"endpoint"`
	Token    string `toml:"token"`
}

func Default() Config {
	return Config{
		Port:         "8080",
		DBPath:       "crmsync.db",
		Workers:      5,
		PollInterval: 5 * time.Second,
	}
}

// Load builds the configuration from defaults, an optional TOML file, and
// environment variable overrides, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("config file: %w", err)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.Workers = getEnvInt("WORKERS", cfg.Workers)
	cfg.HubSpot.Endpoint = getEnv("HUBSPOT_ENDPOINT", cfg.HubSpot.Endpoint)
	cfg.HubSpot.Token = getEnv("HUBSPOT_TOKEN", cfg.HubSpot.Token)

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
