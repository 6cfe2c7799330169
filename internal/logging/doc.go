// Package logging wraps log/slog with fieldvault's handler construction and
// shared attribute helpers.
package logging
