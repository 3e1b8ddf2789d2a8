package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"proxywatch/internal/models"
)

// Config represents the main configuration structure
type Config struct {
	Elastic    ElasticConfig    `yaml:"elasticsearch"`
	Restricted RestrictedConfig `yaml:"restricted"`
	Detection  DetectionConfig  `yaml:"detection"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Clients    []models.Client  `yaml:"clients"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ElasticConfig contains log-store connection settings
type ElasticConfig struct {
	URL             string `yaml:"url"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Index           string `yaml:"index"`
	InsecureSkipTLS bool   `yaml:"insecure_skip_tls"`
}

// RestrictedConfig contains the restricted-domain list settings
type RestrictedConfig struct {
	CSVPath string `yaml:"csv_path"`
}

// DetectionConfig contains detection-loop parameters
type DetectionConfig struct {
	RestrictedInterval time.Duration `yaml:"restricted_interval"`
	OffHoursInterval   time.Duration `yaml:"offhours_interval"`
	LivenessInterval   time.Duration `yaml:"liveness_interval"`
	CooldownWindow     time.Duration `yaml:"cooldown_window"`
	LivenessWindow     time.Duration `yaml:"liveness_window"`
	BatchSize          int           `yaml:"batch_size"`
	WorkStartHour      int           `yaml:"work_start_hour"`
	WorkEndHour        int           `yaml:"work_end_hour"`
	BroadcastRate      float64       `yaml:"broadcast_rate"`  // broadcasts per second
	BroadcastBurst     int           `yaml:"broadcast_burst"` // burst allowance
}

// DashboardConfig contains web dashboard configuration
type DashboardConfig struct {
	ListenAddr       string        `yaml:"listen_addr"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PongTimeout      time.Duration `yaml:"pong_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Output string `yaml:"output"` // stdout, file
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Elastic: ElasticConfig{
			URL:             "https://localhost:9200",
			Username:        "elastic",
			Index:           "proxy-logs",
			InsecureSkipTLS: false,
		},
		Restricted: RestrictedConfig{
			CSVPath: "./configs/restricted_domains.csv",
		},
		Detection: DetectionConfig{
			RestrictedInterval: time.Second,
			OffHoursInterval:   5 * time.Minute,
			LivenessInterval:   10 * time.Second,
			CooldownWindow:     5 * time.Minute,
			LivenessWindow:     5 * time.Minute,
			BatchSize:          100,
			WorkStartHour:      9,
			WorkEndHour:        17,
			BroadcastRate:      10,
			BroadcastBurst:     50,
		},
		Dashboard: DashboardConfig{
			ListenAddr:       ":8000",
			SnapshotInterval: time.Minute,
			PingInterval:     30 * time.Second,
			PongTimeout:      5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Elastic.URL == "" {
		return fmt.Errorf("elasticsearch URL must not be empty")
	}

	if c.Elastic.Index == "" {
		return fmt.Errorf("elasticsearch index must not be empty")
	}

	if c.Detection.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d", c.Detection.BatchSize)
	}

	if c.Detection.WorkStartHour < 0 || c.Detection.WorkStartHour > 23 {
		return fmt.Errorf("invalid work start hour: %d", c.Detection.WorkStartHour)
	}

	if c.Detection.WorkEndHour < 0 || c.Detection.WorkEndHour > 23 {
		return fmt.Errorf("invalid work end hour: %d", c.Detection.WorkEndHour)
	}

	if c.Detection.WorkStartHour >= c.Detection.WorkEndHour {
		return fmt.Errorf("work start hour %d must precede end hour %d",
			c.Detection.WorkStartHour, c.Detection.WorkEndHour)
	}

	if c.Detection.CooldownWindow <= 0 {
		return fmt.Errorf("cooldown window must be positive")
	}

	if c.Detection.LivenessWindow <= 0 {
		return fmt.Errorf("liveness window must be positive")
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	seen := make(map[string]bool)
	for _, client := range c.Clients {
		if client.ID == "" {
			return fmt.Errorf("client with empty id in roster")
		}
		if seen[client.ID] {
			return fmt.Errorf("duplicate client id in roster: %s", client.ID)
		}
		seen[client.ID] = true
	}

	return nil
}
