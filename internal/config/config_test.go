package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldvault/internal/config"
)

func TestLoadDefaultsUseEnvIntakeURLAndExpandPaths(t *testing.T) {
	t.Setenv("FIELDVAULT_INTAKE_URL", "https://intake.example.com/v1/claims")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "fieldvault")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LogDir != filepath.Join(wantData, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Capture.MinTiltDegrees != 45.0 {
		t.Fatalf("unexpected tilt threshold: %v", cfg.Capture.MinTiltDegrees)
	}
	if cfg.Capture.GeofenceRadiusMeters != 50.0 {
		t.Fatalf("unexpected geofence radius: %v", cfg.Capture.GeofenceRadiusMeters)
	}
	if cfg.Sync.MaxAttempts != 3 {
		t.Fatalf("unexpected attempt ceiling: %d", cfg.Sync.MaxAttempts)
	}
	if cfg.Intake.URL != "https://intake.example.com/v1/claims" {
		t.Fatalf("expected intake URL from env, got %q", cfg.Intake.URL)
	}
	if cfg.Network.ProbeAddress != "intake.example.com:443" {
		t.Fatalf("unexpected probe address: %q", cfg.Network.ProbeAddress)
	}
	if cfg.QueueDBPath() != filepath.Join(wantData, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", cfg.QueueDBPath())
	}
}

func TestLoadParsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := strings.Join([]string{
		`[paths]`,
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`[capture]`,
		`min_tilt_degrees = 50.0`,
		`geofence_radius_meters = 75.0`,
		`[intake]`,
		`url = "https://claims.example.org/intake"`,
		`[sync]`,
		`interval_minutes = 5`,
		`max_attempts = 2`,
	}, "\n")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be used, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Capture.MinTiltDegrees != 50.0 {
		t.Fatalf("unexpected tilt threshold: %v", cfg.Capture.MinTiltDegrees)
	}
	if cfg.Sync.IntervalMinutes != 5 || cfg.Sync.MaxAttempts != 2 {
		t.Fatalf("unexpected sync config: %+v", cfg.Sync)
	}
	// Unset sections keep defaults.
	if cfg.Classifier.TimeoutSeconds != 2 {
		t.Fatalf("unexpected classifier timeout: %d", cfg.Classifier.TimeoutSeconds)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing intake url", func(c *config.Config) { c.Intake.URL = "" }},
		{"negative radius", func(c *config.Config) { c.Capture.GeofenceRadiusMeters = -1 }},
		{"tilt over 90", func(c *config.Config) { c.Capture.MinTiltDegrees = 120 }},
		{"zero attempts", func(c *config.Config) { c.Sync.MaxAttempts = 0 }},
		{"backoff max below base", func(c *config.Config) {
			c.Sync.BackoffBaseSeconds = 60
			c.Sync.BackoffMaxSeconds = 30
		}},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Intake.URL = "https://intake.example.com"
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDerivedProbeAddressFollowsIntakeScheme(t *testing.T) {
	cases := []struct {
		name      string
		intakeURL string
		probe     string
		want      string
	}{
		{"https default port", "https://intake.example.com/v1/claims", "", "intake.example.com:443"},
		{"http default port", "http://intake.example.com/claims", "", "intake.example.com:80"},
		{"explicit port kept", "https://intake.example.com:8443/claims", "", "intake.example.com:8443"},
		{"configured address wins", "http://intake.example.com/claims", "probe.example.com:9", "probe.example.com:9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("FIELDVAULT_INTAKE_URL", "")
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			lines := []string{
				`[paths]`,
				`data_dir = "` + filepath.Join(dir, "data") + `"`,
				`[intake]`,
				`url = "` + tc.intakeURL + `"`,
			}
			if tc.probe != "" {
				lines = append(lines, `[network]`, `probe_address = "`+tc.probe+`"`)
			}
			if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}

			cfg, _, _, err := config.Load(path)
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if cfg.Network.ProbeAddress != tc.want {
				t.Fatalf("probe address = %q, want %q", cfg.Network.ProbeAddress, tc.want)
			}
		})
	}
}

func TestSampleConfigMentionsEverySection(t *testing.T) {
	sample := config.SampleConfig()
	for _, section := range []string{"[paths]", "[capture]", "[classifier]", "[intake]", "[sync]", "[network]", "[notifications]", "[logging]"} {
		if !strings.Contains(sample, section) {
			t.Fatalf("sample config missing section %s", section)
		}
	}
}
