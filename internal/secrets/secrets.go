// Package secrets encrypts small at-rest values — the configured
// vision-provider API key, the camera push-token signing key — so
// config.yaml never stores them in plaintext. It adapts the teacher's
// internal/crypto AES-256-GCM envelope (internal/crypto/keyring.go,
// aes_gcm.go) to a single local root key instead of a set of
// operator-managed master keys, deriving a distinct key per purpose
// with HKDF so compromising one derived key doesn't expose the others.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
)

// ErrDecryption mirrors the teacher's generic decryption failure: the
// caller learns the blob didn't decrypt, not why, to avoid leaking
// anything about the key material through error messages.
var ErrDecryption = errors.New("secrets: decryption failed")

const rootKeySize = 32

// Keyring holds the daemon's root key and derives a purpose-scoped
// AES-256 key from it on every Seal/Open rather than using the root
// key directly.
type Keyring struct {
	root []byte
}

// NewKeyring wraps an already-loaded 32-byte root key.
func NewKeyring(root []byte) (*Keyring, error) {
	if len(root) != rootKeySize {
		return nil, fmt.Errorf("secrets: root key must be %d bytes, got %d", rootKeySize, len(root))
	}
	return &Keyring{root: root}, nil
}

// LoadOrCreate reads a base64-encoded root key from keyPath, creating
// one with a random 32 bytes (mode 0600) the first time the daemon
// runs. This is the path cmd/physical-mcpd uses; tests construct a
// Keyring directly with NewKeyring instead.
func LoadOrCreate(keyPath string) (*Keyring, error) {
	data, err := os.ReadFile(keyPath)
	if err == nil {
		root, decErr := base64.StdEncoding.DecodeString(string(data))
		if decErr != nil {
			return nil, fmt.Errorf("secrets: malformed root key at %s: %w", keyPath, decErr)
		}
		return NewKeyring(root)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("secrets: read %s: %w", keyPath, err)
	}

	root := make([]byte, rootKeySize)
	if _, err := io.ReadFull(rand.Reader, root); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0o750); err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(root)
	if err := os.WriteFile(keyPath, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("secrets: write %s: %w", keyPath, err)
	}
	return NewKeyring(root)
}

// derive returns the AES-256 key for purpose, deterministic for a
// given root key so Open can re-derive the same key Seal used.
func (k *Keyring) derive(purpose string) ([]byte, error) {
	reader := hkdf.New(sha256.New, k.root, nil, []byte(purpose))
	key := make([]byte, rootKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts plaintext under purpose's derived key and returns a
// single base64 blob (nonce || ciphertext || tag) suitable for storing
// as a plain string in config.yaml.
func (k *Keyring) Seal(purpose string, plaintext []byte) (string, error) {
	key, err := k.derive(purpose)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, []byte(purpose))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob Seal produced under the same purpose.
func (k *Keyring) Open(purpose, blob string) ([]byte, error) {
	key, err := k.derive(purpose)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecryption
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrDecryption
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(purpose))
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// SealString/OpenString are the string-valued convenience wrappers
// every call site (provider API key, push-token signing key) actually
// wants.
func (k *Keyring) SealString(purpose, plaintext string) (string, error) {
	return k.Seal(purpose, []byte(plaintext))
}

func (k *Keyring) OpenString(purpose, blob string) (string, error) {
	plaintext, err := k.Open(purpose, blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Purpose constants scope derived keys so encrypting the provider key
// and the push-token signing key under the same root never shares a
// derived key between them.
const (
	PurposeProviderAPIKey  = "vision_provider_api_key_v1"
	PurposePushTokenSigner = "push_token_signing_key_v1"
)
