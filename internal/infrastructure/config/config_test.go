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
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "bar-test"
database:
  path: "/tmp/test.db"
audio:
  enabled: true
  host: "10.0.0.20"
  command_timeout: 2s
  meters:
    - param: "SourceMeter_0"
      interval: 500ms
matrix:
  enabled: true
  host: "10.0.0.30"
  protocol: "tcp"
  port: 23
  cec_input: 9
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "bar-test" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "bar-test")
	}
	if cfg.Audio.Host != "10.0.0.20" {
		t.Errorf("Audio.Host = %q, want %q", cfg.Audio.Host, "10.0.0.20")
	}
	if cfg.Audio.CommandTimeout != 2*time.Second {
		t.Errorf("Audio.CommandTimeout = %v, want 2s", cfg.Audio.CommandTimeout)
	}
	// Unset fields keep their defaults.
	if cfg.Audio.Port != 5321 {
		t.Errorf("Audio.Port = %d, want 5321", cfg.Audio.Port)
	}
	if cfg.Audio.KeepAliveInterval != 240*time.Second {
		t.Errorf("Audio.KeepAliveInterval = %v, want 240s", cfg.Audio.KeepAliveInterval)
	}
	if len(cfg.Audio.Meters) != 1 || cfg.Audio.Meters[0].Interval != 500*time.Millisecond {
		t.Errorf("Audio.Meters = %+v", cfg.Audio.Meters)
	}
	if cfg.Matrix.CECInput != 9 {
		t.Errorf("Matrix.CECInput = %d, want 9", cfg.Matrix.CECInput)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
site:
  id: "bar-test"
`)
	t.Setenv("SPORTSBAR_DATABASE_PATH", "/override/db.sqlite")
	t.Setenv("SPORTSBAR_AUDIO_HOST", "atlas.local")
	t.Setenv("SPORTSBAR_MATRIX_PORT", "5000")
	t.Setenv("SPORTSBAR_CEC_DEVICE", "/dev/ttyACM1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/override/db.sqlite" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Audio.Host != "atlas.local" {
		t.Errorf("Audio.Host = %q", cfg.Audio.Host)
	}
	if cfg.Matrix.Port != 5000 {
		t.Errorf("Matrix.Port = %d", cfg.Matrix.Port)
	}
	if cfg.CEC.Device != "/dev/ttyACM1" {
		t.Errorf("CEC.Device = %q", cfg.CEC.Device)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:    "missing site id",
			modify:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id is required",
		},
		{
			name:    "bad qos",
			modify:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "audio enabled without host",
			modify:  func(c *Config) { c.Audio.Enabled = true },
			wantErr: "audio.host is required",
		},
		{
			name: "audio meter without param",
			modify: func(c *Config) {
				c.Audio.Enabled = true
				c.Audio.Host = "atlas"
				c.Audio.Meters = []MeterConfig{{Interval: time.Second}}
			},
			wantErr: "audio.meters[0].param",
		},
		{
			name: "matrix bad protocol",
			modify: func(c *Config) {
				c.Matrix.Enabled = true
				c.Matrix.Host = "matrix"
				c.Matrix.Protocol = "serial"
			},
			wantErr: "matrix.protocol",
		},
		{
			name:    "ir enabled without url",
			modify:  func(c *Config) { c.IR.Enabled = true },
			wantErr: "ir.base_url",
		},
		{
			name: "file logging without path",
			modify: func(c *Config) {
				c.Logging.Output = "file"
				c.Logging.File.Path = ""
			},
			wantErr: "logging.file.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.ID = ""
	cfg.Database.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"site.id", "database.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
