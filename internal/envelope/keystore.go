package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// KeyStore supplies the managed AEAD primitive. Implementations generate key
// material on first use and never expose it raw; callers only ever receive
// the cipher capability.
type KeyStore interface {
	AEAD() (cipher.AEAD, error)
}

const masterSecretLen = 32

// FileKeyStore backs the managed key with a random master secret on disk,
// created once per installation with 0600 permissions. The AES-256-GCM key is
// derived from the secret via HKDF-SHA256 so the raw secret never doubles as
// a cipher key. On platforms with a hardware keystore this type is replaced
// by a binding to it; the interface stays the same.
type FileKeyStore struct {
	path string

	mu   sync.Mutex
	aead cipher.AEAD
}

var _ KeyStore = (*FileKeyStore)(nil)

// NewFileKeyStore creates a keystore persisting its master secret at path.
func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

// AEAD returns the managed cipher, generating the master secret if absent.
// The returned AEAD is safe for concurrent use.
func (s *FileKeyStore) AEAD() (cipher.AEAD, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aead != nil {
		return s.aead, nil
	}

	secret, err := s.loadOrGenerateSecret()
	if err != nil {
		return nil, err
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, secret, nil, []byte("fieldvault-payload-key"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive payload key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	s.aead = aead
	return aead, nil
}

func (s *FileKeyStore) loadOrGenerateSecret() ([]byte, error) {
	secret, err := os.ReadFile(s.path)
	if err == nil {
		if len(secret) != masterSecretLen {
			return nil, fmt.Errorf("master secret %s has unexpected length %d", s.path, len(secret))
		}
		return secret, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read master secret: %w", err)
	}

	secret = make([]byte, masterSecretLen)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("generate master secret: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("create keystore directory: %w", err)
	}
	// Write-then-rename so a crash never leaves a truncated secret behind.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, secret, 0o600); err != nil {
		return nil, fmt.Errorf("write master secret: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return nil, fmt.Errorf("persist master secret: %w", err)
	}
	return secret, nil
}
