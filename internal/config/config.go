package config

// #region imports
import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region config

// Config carries the engine's tunable parameters. Defaults come from the
// environment; an optional YAML file (SUGGESTD_CONFIG) overrides them.
type Config struct {
	ListenAddr     string `yaml:"listen_addr"`
	DBPath         string `yaml:"db_path"`
	LeadTimes      []int  `yaml:"lead_times"`
	MaxSearchNodes int    `yaml:"max_search_nodes"`
	EnableSearch   bool   `yaml:"enable_search"`
}

// #endregion

// #region from-env

// FromEnv builds a config from environment variables.
func FromEnv() Config {
	return Config{
		ListenAddr:     getenv("SUGGESTD_ADDR", ":8080"),
		DBPath:         getenv("SUGGESTD_DB", "scheduler.db"),
		LeadTimes:      nil, // timing.DefaultLeadTimes unless the file overrides
		MaxSearchNodes: getenvInt("SUGGESTD_MAX_SEARCH_NODES", 10000),
		EnableSearch:   getenvBool("SUGGESTD_ENABLE_SEARCH", true),
	}
}

// #endregion

// #region load

// Load resolves the effective config: environment defaults, then the YAML
// file named by SUGGESTD_CONFIG (or the explicit path), if present.
func Load(path string) (Config, error) {
	cfg := FromEnv()

	if path == "" {
		path = os.Getenv("SUGGESTD_CONFIG")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// #endregion

// #region env-helpers

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
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

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// #endregion
