package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	APIBaseURL        string `yaml:"apiBaseURL"`
	LogLevel          string `yaml:"logLevel"`
	DataDir           string `yaml:"dataDir"`
	RedisAddr         string `yaml:"redisAddr"`
	RedisPassword     string `yaml:"redisPassword"`
	SessionListMaxAge string `yaml:"sessionListMaxAge"`
	Voice             string `yaml:"voice"`
	RecordCommand     string `yaml:"recordCommand"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("MOCKMATE_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("MOCKMATE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("MOCKMATE_DATA_DIR"); v != "" {
		cfg.DataDir = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MOCKMATE_VOICE"); v != "" {
		cfg.Voice = strings.TrimSpace(v)
	}
	if v := os.Getenv("MOCKMATE_RECORD_COMMAND"); v != "" {
		cfg.RecordCommand = v
	}
	if cfg.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = filepath.Join(home, ".mockmate")
		}
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.APIBaseURL == "" {
		return errors.New("config: apiBaseURL is required (set in config.yaml or MOCKMATE_API_BASE_URL)")
	}
	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return errors.New("config: apiBaseURL must be an http(s) URL")
	}
	if cfg.DataDir == "" {
		return errors.New("config: dataDir is required when no home directory is available")
	}
	if cfg.SessionListMaxAge != "" {
		if _, err := time.ParseDuration(cfg.SessionListMaxAge); err != nil {
			return fmt.Errorf("config: invalid sessionListMaxAge: %w", err)
		}
	}
	return nil
}

// ParseSessionListMaxAge parses the optional session-list freshness window.
// Zero input falls back to the 5 minute default.
func ParseSessionListMaxAge(value string) (time.Duration, error) {
	if value == "" {
		return 5 * time.Minute, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionListMaxAge duration: %w", err)
	}
	return dur, nil
}
