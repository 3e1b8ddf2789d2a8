package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"proxywatch/internal/models"
	"proxywatch/pkg/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config must validate, got: %v", err)
	}
	if cfg.Detection.CooldownWindow != 5*time.Minute {
		t.Errorf("Expected 5m cooldown window, got %v", cfg.Detection.CooldownWindow)
	}
	if cfg.Detection.WorkStartHour != 9 || cfg.Detection.WorkEndHour != 17 {
		t.Errorf("Expected 9-17 working hours, got %d-%d",
			cfg.Detection.WorkStartHour, cfg.Detection.WorkEndHour)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
elasticsearch:
  url: "https://es.internal:9200"
  index: "proxy-logs"
detection:
  restricted_interval: 2s
  cooldown_window: 10m
clients:
  - id: "c1"
    name: "Client One"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Elastic.URL != "https://es.internal:9200" {
		t.Errorf("Unexpected URL: %s", cfg.Elastic.URL)
	}
	if cfg.Detection.RestrictedInterval != 2*time.Second {
		t.Errorf("Expected 2s restricted interval, got %v", cfg.Detection.RestrictedInterval)
	}
	if cfg.Detection.CooldownWindow != 10*time.Minute {
		t.Errorf("Expected 10m cooldown, got %v", cfg.Detection.CooldownWindow)
	}

	// Unset fields keep their defaults.
	if cfg.Detection.LivenessInterval != 10*time.Second {
		t.Errorf("Expected default liveness interval, got %v", cfg.Detection.LivenessInterval)
	}
	if len(cfg.Clients) != 1 || cfg.Clients[0].ID != "c1" {
		t.Errorf("Unexpected roster: %+v", cfg.Clients)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := config.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty url", func(c *config.Config) { c.Elastic.URL = "" }},
		{"empty index", func(c *config.Config) { c.Elastic.Index = "" }},
		{"zero batch size", func(c *config.Config) { c.Detection.BatchSize = 0 }},
		{"bad start hour", func(c *config.Config) { c.Detection.WorkStartHour = 25 }},
		{"bad end hour", func(c *config.Config) { c.Detection.WorkEndHour = -1 }},
		{"inverted hours", func(c *config.Config) {
			c.Detection.WorkStartHour = 17
			c.Detection.WorkEndHour = 9
		}},
		{"zero cooldown", func(c *config.Config) { c.Detection.CooldownWindow = 0 }},
		{"zero liveness window", func(c *config.Config) { c.Detection.LivenessWindow = 0 }},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "verbose" }},
		{"empty client id", func(c *config.Config) {
			c.Clients = []models.Client{{ID: "", Name: "x"}}
		}},
		{"duplicate client id", func(c *config.Config) {
			c.Clients = []models.Client{{ID: "a"}, {ID: "a"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := config.DefaultConfig()
	cfg.Dashboard.ListenAddr = ":9999"

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := config.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Dashboard.ListenAddr != ":9999" {
		t.Errorf("Round trip lost listen addr: %s", loaded.Dashboard.ListenAddr)
	}
}
