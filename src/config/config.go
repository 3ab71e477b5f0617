package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"power-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Default returns a configuration with every optional field populated.
func Default() *Config {
	return &Config{MConfig: &models.MConfig{
		Name:     "power-observer",
		Host:     "127.0.0.1",
		Port:     8000,
		LogLevel: "INFO",
		GrpcHost: "127.0.0.1",
		GrpcPort: 50051,
		Storage: models.MStorageConfig{
			DBType:   "sqlite",
			DBPath:   "readings.db",
			Timezone: "UTC",
		},
		Network: models.MNetworkConfig{
			RequestTimeout:     10,
			MaxRetries:         2,
			ConcurrentRequests: 4,
			UserAgent:          "power-observer/1.0",
		},
		Cache: models.MCacheConfig{
			TTLSeconds: 3600,
			Invalidation: models.MInvalidationConfig{
				Topic:    "power/updates",
				ClientID: "power-observer",
			},
		},
		Fetch: models.MFetchConfig{
			DayTimeoutSeconds: 10,
			MaxParallelDays:   4,
			DefaultLimit:      50,
			LookbackDays:      3,
			FallbackNodes: []string{
				"C-1", "C-2", "C-3", "C-4", "C-5", "C-6", "C-7", "C-8", "C-9",
				"C-11", "C-13", "C-14", "C-15", "C-16", "C-17", "C-18", "C-19", "C-20",
			},
		},
		Analysis: models.MAnalysisConfig{
			PointBudget:           1000,
			SampleIntervalSeconds: 30,
			Calendar:              "xnys",
			Interruption: models.MInterruptionConfig{
				VoltageThreshold:   180,
				MinDurationSeconds: 30,
			},
		},
	}}
}

// -----------------------------------------------------------------------------

// NewConfig loads the YAML file on top of Default() and validates it
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal over defaults so omitted keys keep their default
	config := Default()
	if err := yaml.Unmarshal(data, config.MConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Validate performs configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	case "http":
		if !strings.HasPrefix(c.Storage.BaseURL, "http://") && !strings.HasPrefix(c.Storage.BaseURL, "https://") {
			return fmt.Errorf("base url must be an http(s) url for the http store, got %q", c.Storage.BaseURL)
		}
	case "":
		return fmt.Errorf("database type cannot be empty")
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}
	if c.Storage.DataRetentionDays < 0 {
		return fmt.Errorf("data retention days cannot be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Cache
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache ttl must be greater than 0")
	}
	if c.Cache.MaxMemoryMB < 0 {
		return fmt.Errorf("cache memory limit cannot be negative")
	}
	if c.Cache.Invalidation.Enabled && c.Cache.Invalidation.Broker == "" {
		return fmt.Errorf("cache invalidation requires a broker address")
	}

	// Fetch
	if c.Fetch.DayTimeoutSeconds <= 0 {
		return fmt.Errorf("day timeout must be greater than 0")
	}
	if c.Fetch.MaxParallelDays <= 0 {
		return fmt.Errorf("max parallel days must be greater than 0")
	}
	if c.Fetch.LookbackDays < 0 {
		return fmt.Errorf("lookback days cannot be negative")
	}
	for i, d := range c.Fetch.AnchorDates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("anchor date %d (%q) must be YYYY-MM-DD", i, d)
		}
	}

	// Analysis
	if c.Analysis.PointBudget <= 0 {
		return fmt.Errorf("point budget must be greater than 0")
	}
	if c.Analysis.SampleIntervalSeconds <= 0 {
		return fmt.Errorf("sample interval must be greater than 0")
	}
	if c.Analysis.Interruption.VoltageThreshold <= 0 {
		return fmt.Errorf("interruption voltage threshold must be greater than 0")
	}
	if c.Analysis.Interruption.MinDurationSeconds < 0 {
		return fmt.Errorf("interruption minimum duration cannot be negative")
	}
	for name, set := range c.Analysis.Thresholds {
		for _, p := range models.MonitoredParameters {
			band := set.Band(p)
			if band.Min > band.Max {
				return fmt.Errorf("threshold preset '%s': %s min %.3f exceeds max %.3f", name, p, band.Min, band.Max)
			}
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Location resolves the storage timezone used to build reading timestamps.
func (c *Config) Location() (*time.Location, error) {
	if c.Storage.Timezone == "" || c.Storage.Timezone == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Storage.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid storage timezone '%s': %w", c.Storage.Timezone, err)
	}
	return loc, nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
