package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
store:
  backend: sqlite
  path: "/tmp/specs.db"
  sqlite:
    wal_mode: true
    busy_timeout: 7
registry:
  category: "devicespec"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
metrics:
  enabled: true
  listen: "127.0.0.1:9000"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendSQLite)
	}
	if cfg.Store.Path != "/tmp/specs.db" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "/tmp/specs.db")
	}
	if cfg.GetBusyTimeout() != 7*time.Second {
		t.Errorf("GetBusyTimeout() = %v, want 7s", cfg.GetBusyTimeout())
	}
	if cfg.Registry.Category != "devicespec" {
		t.Errorf("Registry.Category = %q, want devicespec", cfg.Registry.Category)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.Metrics.Listen != "127.0.0.1:9000" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "store:\n  backend: memory\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Table != "devices" {
		t.Errorf("Store.Table = %q, want devices", cfg.Store.Table)
	}
	if cfg.Registry.Table != "uids" {
		t.Errorf("Registry.Table = %q, want uids", cfg.Registry.Table)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled || cfg.Metrics.Enabled {
		t.Error("optional integrations enabled by default")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "store:\n  backend: memory\nsearch:\n  default_page_size: 100\n"))
	if err == nil || !strings.Contains(err.Error(), "search") {
		t.Errorf("Load() error = %v, want unknown key search rejected", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Backend != BackendPebble {
		t.Errorf("Store.Backend = %q, want default %q", cfg.Store.Backend, BackendPebble)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, "store:\n  backend: cassandra\n"))
	if err == nil {
		t.Fatal("Load() expected validation error for unknown backend, got nil")
	}
	if !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("Load() error = %v, want store.backend mentioned", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SPECSTORE_STORE_BACKEND", "pebble")
	t.Setenv("SPECSTORE_STORE_PATH", "/var/lib/specstore")
	t.Setenv("SPECSTORE_MQTT_HOST", "mqtt.example")
	t.Setenv("SPECSTORE_MQTT_PORT", "8883")
	t.Setenv("SPECSTORE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SPECSTORE_LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "store:\n  backend: memory\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != BackendPebble || cfg.Store.Path != "/var/lib/specstore" {
		t.Errorf("Store = %+v, want env overrides applied", cfg.Store)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example" || cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker = %+v", cfg.MQTT.Broker)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q", cfg.InfluxDB.Token)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"memory needs no path", func(c *Config) { c.Store.Backend = BackendMemory; c.Store.Path = "" }, false},
		{"pebble needs path", func(c *Config) { c.Store.Path = "" }, true},
		{"unknown backend", func(c *Config) { c.Store.Backend = "hbase" }, true},
		{"empty store table", func(c *Config) { c.Store.Table = "" }, true},
		{"empty category", func(c *Config) { c.Registry.Category = "" }, true},
		{"shared table", func(c *Config) { c.Registry.Table = c.Store.Table }, true},
		{"invalid qos", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"enabled mqtt bad port", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker.Port = 0 }, true},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "b" }, true},
		{"influx complete", func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = "http://localhost:8086"
			c.InfluxDB.Bucket = "specstore"
		}, false},
		{"metrics without listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
