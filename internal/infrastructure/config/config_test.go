package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.API.Port != 8790 {
		t.Errorf("API.Port = %d, want 8790", cfg.API.Port)
	}
	if cfg.Gateway.Driver != "loopback" {
		t.Errorf("Gateway.Driver = %q, want loopback", cfg.Gateway.Driver)
	}
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled = false, want true by default")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 9000
gateway:
  driver: mqtt
mqtt:
  broker:
    host: broker.local
    port: 8883
    tls: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Gateway.Driver != "mqtt" {
		t.Errorf("Gateway.Driver = %q, want mqtt", cfg.Gateway.Driver)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || !cfg.MQTT.Broker.TLS {
		t.Errorf("MQTT broker = %+v, want broker.local with TLS", cfg.MQTT.Broker)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOSTBRIDGE_API_PORT", "9999")
	t.Setenv("HOSTBRIDGE_GATEWAY_DRIVER", "loopback")

	path := writeConfig(t, "api:\n  port: 9000\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.API.Port != 9999 {
		t.Errorf("API.Port = %d, want env override 9999", cfg.API.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() = nil error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults valid",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "bad api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "unknown gateway driver",
			mutate:  func(c *Config) { c.Gateway.Driver = "carrier-pigeon" },
			wantErr: "gateway.driver",
		},
		{
			name: "mqtt driver without host",
			mutate: func(c *Config) {
				c.Gateway.Driver = "mqtt"
				c.MQTT.Broker.Host = ""
			},
			wantErr: "mqtt.broker.host",
		},
		{
			name: "journal without path",
			mutate: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Database.Path = ""
			},
			wantErr: "journal.database.path",
		},
		{
			name: "telemetry without url",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
			},
			wantErr: "telemetry.url",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "tooshort" },
			wantErr: "jwt.secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
