// Package config loads, validates, and defaults fieldvault's TOML
// configuration.
package config
