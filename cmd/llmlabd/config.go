package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// config describes the llmlabd YAML configuration.
type config struct {
	Server struct {
		ListenAddr         string   `yaml:"listen_addr"`
		PollIntervalMillis int      `yaml:"poll_interval_millis"`
		RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
		CORSOrigins        []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Store struct {
		TTLHours     int    `yaml:"ttl_hours"`
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"store"`
	Workers struct {
		Count     int `yaml:"count"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"workers"`
}

// loadConfig reads the configuration file, filling defaults. A missing file
// means all defaults.
func loadConfig(path string) (config, error) {
	var cfg config
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8000"
	}
	if cfg.Server.PollIntervalMillis <= 0 {
		cfg.Server.PollIntervalMillis = 500
	}
	if cfg.Server.RateLimitPerMinute <= 0 {
		cfg.Server.RateLimitPerMinute = 30
	}
	if cfg.Store.TTLHours <= 0 {
		cfg.Store.TTLHours = 24
	}
	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = 3
	}
	if cfg.Workers.QueueSize <= 0 {
		cfg.Workers.QueueSize = 16
	}
	return cfg, nil
}

// pollInterval converts the millisecond config to a duration.
func pollInterval(cfg config) time.Duration {
	return time.Duration(cfg.Server.PollIntervalMillis) * time.Millisecond
}

// storeTTL converts the hour config to a duration.
func storeTTL(cfg config) time.Duration {
	return time.Duration(cfg.Store.TTLHours) * time.Hour
}
