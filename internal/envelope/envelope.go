package envelope

import (
	"crypto/rand"
	"fmt"
	"io"

	"fieldvault/internal/services"
)

// Service encrypts and decrypts payloads with the managed key. Safe for
// concurrent use from multiple capture sessions: each Seal draws a fresh
// random nonce and no cipher state is shared mutably.
type Service struct {
	keys KeyStore
}

// NewService constructs a Service over the given key store.
func NewService(keys KeyStore) *Service {
	return &Service{keys: keys}
}

// Seal encrypts plaintext and returns nonce || ciphertext || tag so the blob
// is self-contained for decryption.
func (s *Service) Seal(plaintext []byte) ([]byte, error) {
	aead, err := s.keys.AEAD()
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. Tampering or corruption fails hard
// with services.ErrAuthentication; corrupted plaintext is never returned.
func (s *Service) Open(blob []byte) ([]byte, error) {
	aead, err := s.keys.AEAD()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	if len(blob) < aead.NonceSize() {
		return nil, services.Wrap(services.ErrAuthentication, "envelope", "open", "blob shorter than nonce", nil)
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrAuthentication, "envelope", "open", "tag verification failed", err)
	}
	return plaintext, nil
}
