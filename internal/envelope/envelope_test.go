package envelope_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"fieldvault/internal/envelope"
	"fieldvault/internal/services"
)

func newService(t *testing.T) *envelope.Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "master.key")
	return envelope.NewService(envelope.NewFileKeyStore(path))
}

func TestSealOpenRoundTrip(t *testing.T) {
	svc := newService(t)

	payloads := [][]byte{
		nil,
		[]byte(""),
		[]byte("a"),
		[]byte("field evidence payload"),
	}
	large := make([]byte, 1<<20+17)
	if _, err := io.ReadFull(rand.Reader, large); err != nil {
		t.Fatalf("generate payload: %v", err)
	}
	payloads = append(payloads, large)

	for _, plaintext := range payloads {
		blob, err := svc.Seal(plaintext)
		if err != nil {
			t.Fatalf("Seal(%d bytes): %v", len(plaintext), err)
		}
		got, err := svc.Open(blob)
		if err != nil {
			t.Fatalf("Open(%d bytes): %v", len(plaintext), err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("round trip mismatch for %d-byte payload", len(plaintext))
		}
	}
}

func TestSealUsesFreshNonces(t *testing.T) {
	svc := newService(t)
	first, err := svc.Seal([]byte("same payload"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	second, err := svc.Seal([]byte("same payload"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatal("expected distinct ciphertexts for identical plaintexts")
	}
}

func TestTamperingAnyByteFailsAuthentication(t *testing.T) {
	svc := newService(t)
	blob, err := svc.Seal([]byte("tamper target"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	for i := range blob {
		mutated := bytes.Clone(blob)
		mutated[i] ^= 0x01
		if _, err := svc.Open(mutated); !errors.Is(err, services.ErrAuthentication) {
			t.Fatalf("byte %d: expected authentication failure, got %v", i, err)
		}
	}
}

func TestOpenTruncatedBlobFails(t *testing.T) {
	svc := newService(t)
	if _, err := svc.Open([]byte{0x01, 0x02}); !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
}

func TestKeyPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.key")

	first := envelope.NewService(envelope.NewFileKeyStore(path))
	blob, err := first.Seal([]byte("survives reopen"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	second := envelope.NewService(envelope.NewFileKeyStore(path))
	got, err := second.Open(blob)
	if err != nil {
		t.Fatalf("Open after reopen: %v", err)
	}
	if string(got) != "survives reopen" {
		t.Fatalf("unexpected plaintext: %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat master secret: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 key file, got %v", info.Mode().Perm())
	}
}

func TestConcurrentSealOpen(t *testing.T) {
	svc := newService(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(n)}, 1024)
			for j := 0; j < 20; j++ {
				blob, err := svc.Seal(payload)
				if err != nil {
					t.Errorf("Seal: %v", err)
					return
				}
				got, err := svc.Open(blob)
				if err != nil {
					t.Errorf("Open: %v", err)
					return
				}
				if !bytes.Equal(got, payload) {
					t.Error("round trip mismatch")
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
