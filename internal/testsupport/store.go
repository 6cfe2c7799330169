package testsupport

import (
	"testing"

	"fieldvault/internal/config"
	"fieldvault/internal/envelope"
	"fieldvault/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup. Payloads
// are sealed with a real key derived under the test's temp directory.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, NewEnvelope(t, cfg))
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewEnvelope builds an envelope service backed by the config's key file.
func NewEnvelope(t testing.TB, cfg *config.Config) *envelope.Service {
	t.Helper()
	return envelope.NewService(envelope.NewFileKeyStore(cfg.Paths.KeyFilePath))
}
