package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
database:
  user: dispatch
  name: dispatch
jwt:
  secret_key: test-secret
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Errorf("database defaults = %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.HTTP.Port != 3000 || cfg.HTTP.MaxConcurrent != 256 {
		t.Errorf("http defaults = %d max %d", cfg.HTTP.Port, cfg.HTTP.MaxConcurrent)
	}
	if cfg.Dispatch.InitialStatus != "SEARCHING" || cfg.Dispatch.EarthRadiusKm != 6371 {
		t.Errorf("dispatch defaults = %s radius %v", cfg.Dispatch.InitialStatus, cfg.Dispatch.EarthRadiusKm)
	}
	if cfg.Dispatch.RecoveryOnStartup == nil || !*cfg.Dispatch.RecoveryOnStartup {
		t.Error("recovery_on_startup should default to true")
	}

	want := []Phase{{5, 15}, {5, 7}, {10, 12}}
	if len(cfg.Dispatch.Phases) != len(want) {
		t.Fatalf("phases = %d, want %d", len(cfg.Dispatch.Phases), len(want))
	}
	for i, p := range want {
		if cfg.Dispatch.Phases[i] != p {
			t.Errorf("phase %d = %+v, want %+v", i+1, cfg.Dispatch.Phases[i], p)
		}
	}
	if got := cfg.Dispatch.Phases[0].TTL(); got != 15*time.Second {
		t.Errorf("phase 1 TTL = %v", got)
	}
}

func TestLoadOverridesPhases(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
dispatch:
  phases:
    - radius_km: 2.5
      ttl_seconds: 30
  initial_status: open
`))
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(cfg.Dispatch.Phases) != 1 || cfg.Dispatch.Phases[0].RadiusKm != 2.5 {
		t.Errorf("phases = %+v", cfg.Dispatch.Phases)
	}
	if cfg.Dispatch.InitialStatus != "open" {
		t.Errorf("initial_status = %q", cfg.Dispatch.InitialStatus)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing jwt secret",
			body: "database:\n  user: u\n  name: n\n",
			want: "jwt.secret_key",
		},
		{
			name: "missing database user",
			body: "database:\n  name: n\njwt:\n  secret_key: s\n",
			want: "database.user",
		},
		{
			name: "zero-radius phase",
			body: minimalConfig + "dispatch:\n  phases:\n    - radius_km: 0\n      ttl_seconds: 10\n",
			want: "radius_km",
		},
		{
			name: "bad initial status",
			body: minimalConfig + "dispatch:\n  initial_status: PENDING\n",
			want: "initial_status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
