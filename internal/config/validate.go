package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateIntake(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.KeyFilePath) == "" {
		return errors.New("paths.key_file_path must be set")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.MinTiltDegrees < 0 || c.Capture.MinTiltDegrees > 90 {
		return errors.New("capture.min_tilt_degrees must be between 0 and 90")
	}
	if c.Capture.GeofenceRadiusMeters <= 0 {
		return errors.New("capture.geofence_radius_meters must be positive")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if strings.TrimSpace(c.Classifier.Endpoint) == "" {
		return errors.New("classifier.endpoint must be set")
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		return errors.New("classifier.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateIntake() error {
	if strings.TrimSpace(c.Intake.URL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/fieldvault/config.toml"
		}
		return fmt.Errorf("intake.url is required. Set FIELDVAULT_INTAKE_URL env var or edit %s (create with 'fieldvault config init')", defaultPath)
	}
	if c.Intake.RequestTimeout <= 0 {
		return errors.New("intake.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.IntervalMinutes <= 0 {
		return errors.New("sync.interval_minutes must be positive")
	}
	if c.Sync.MaxAttempts <= 0 {
		return errors.New("sync.max_attempts must be positive")
	}
	if c.Sync.PacingSeconds < 0 {
		return errors.New("sync.pacing_seconds must not be negative")
	}
	if c.Sync.BackoffBaseSeconds <= 0 {
		return errors.New("sync.backoff_base_seconds must be positive")
	}
	if c.Sync.BackoffMaxSeconds < c.Sync.BackoffBaseSeconds {
		return errors.New("sync.backoff_max_seconds must be at least sync.backoff_base_seconds")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.ProbeIntervalSeconds <= 0 {
		return errors.New("network.probe_interval_seconds must be positive")
	}
	if c.Network.ProbeTimeoutSeconds <= 0 {
		return errors.New("network.probe_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
