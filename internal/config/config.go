package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AutoResponderConfig configures the Auto-Responder.
type AutoResponderConfig struct {
	Enabled            bool `yaml:"enabled"`
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
}

// HealthSweepConfig configures the Health Sweeper.
type HealthSweepConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

type Config struct {
	DBPath                 string              `yaml:"db_path"`
	MaxConcurrentSessions  int                 `yaml:"max_concurrent_sessions"`
	AssistantBin           string              `yaml:"assistant_bin"`
	AssistantArgs          []string            `yaml:"assistant_args"`
	DefaultBranchPrefix    string              `yaml:"default_branch_prefix"`
	DefaultMaxOutputBuffer int                 `yaml:"default_max_output_buffer"`
	LogLevel               string              `yaml:"log_level"`
	OTLPEndpoint           string              `yaml:"otlp_endpoint"`
	AutoResponder          AutoResponderConfig `yaml:"auto_responder"`
	HealthSweep            HealthSweepConfig   `yaml:"health_sweep"`
}

func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		DBPath:                 "./claudia.db",
		MaxConcurrentSessions:  8,
		AssistantBin:           "claude",
		DefaultBranchPrefix:    "session",
		DefaultMaxOutputBuffer: 10000,
		LogLevel:               "info",
		AutoResponder: AutoResponderConfig{
			Enabled:             false,
			PollIntervalSeconds: 2,
		},
		HealthSweep: HealthSweepConfig{
			IntervalSeconds: 30,
		},
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLAUDIA_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CLAUDIA_MAX_CONCURRENT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrentSessions = n
		}
	}
	if v := os.Getenv("CLAUDIA_ASSISTANT_BIN"); v != "" {
		cfg.AssistantBin = v
	}
	if v := os.Getenv("CLAUDIA_DEFAULT_BRANCH_PREFIX"); v != "" {
		cfg.DefaultBranchPrefix = v
	}
	if v := os.Getenv("CLAUDIA_DEFAULT_MAX_OUTPUT_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultMaxOutputBuffer = n
		}
	}
	if v := os.Getenv("CLAUDIA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CLAUDIA_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("CLAUDIA_AUTO_RESPONDER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoResponder.Enabled = b
		}
	}
	if v := os.Getenv("CLAUDIA_AUTO_RESPONDER_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AutoResponder.PollIntervalSeconds = n
		}
	}
	if v := os.Getenv("CLAUDIA_HEALTH_SWEEP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HealthSweep.IntervalSeconds = n
		}
	}
}
