// Package secrets provides an encrypted credential vault and a reference
// AuthSessionBroker over it. Credential material reaches handlers only as
// opaque sessions; it never transits templates, events, or exports.
package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/idle-engine/idle/pkg/schema"
)

// CredentialStore is the minimal persistence interface the vault needs.
type CredentialStore interface {
	StoreCredential(ctx context.Context, name string, value []byte) error
	GetCredential(ctx context.Context, name string) ([]byte, error)
	DeleteCredential(ctx context.Context, name string) error
}

// MemoryStore is an in-process CredentialStore. Suitable for tests and for
// hosts that load credentials at startup from their own secret manager.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) StoreCredential(_ context.Context, name string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.mu.Lock()
	m.data[name] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetCredential(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.data[name]
	m.mu.RUnlock()
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "credential %q not found", name)
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *MemoryStore) DeleteCredential(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.data, name)
	m.mu.Unlock()
	return nil
}

// VaultConfig configures key derivation. Provide either MasterKey (raw 32
// bytes) or Passphrase + Salt.
type VaultConfig struct {
	MasterKey  []byte
	Passphrase string
	Salt       []byte
	Iterations int
}

// Vault encrypts credentials with AES-256-GCM before handing them to the
// store, so the store only ever sees ciphertext.
type Vault struct {
	store CredentialStore
	aead  cipher.AEAD
}

// NewVault creates a vault over the given store.
func NewVault(store CredentialStore, cfg VaultConfig) (*Vault, error) {
	if store == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "credential store is required")
	}
	key, err := deriveKey(cfg)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return &Vault{store: store, aead: aead}, nil
}

func deriveKey(cfg VaultConfig) ([]byte, error) {
	if len(cfg.MasterKey) > 0 {
		if len(cfg.MasterKey) != 32 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"master key must be 32 bytes, got %d", len(cfg.MasterKey))
		}
		return cfg.MasterKey, nil
	}
	if cfg.Passphrase == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "either master key or passphrase is required")
	}
	if len(cfg.Salt) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "salt is required with passphrase")
	}
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 100_000
	}
	return pbkdf2.Key([]byte(cfg.Passphrase), cfg.Salt, iterations, 32, sha256.New), nil
}

// Store encrypts and persists one credential.
func (v *Vault) Store(ctx context.Context, name string, value []byte) error {
	encrypted, err := v.encrypt(value)
	if err != nil {
		return err
	}
	return v.store.StoreCredential(ctx, name, encrypted)
}

// Resolve fetches and decrypts one credential. Plaintext exists only in
// memory, in the returned slice.
func (v *Vault) Resolve(ctx context.Context, name string) ([]byte, error) {
	encrypted, err := v.store.GetCredential(ctx, name)
	if err != nil {
		return nil, err
	}
	return v.decrypt(encrypted)
}

// Delete removes one credential.
func (v *Vault) Delete(ctx context.Context, name string) error {
	return v.store.DeleteCredential(ctx, name)
}

func (v *Vault) encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (v *Vault) decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := v.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, schema.NewError(schema.ErrCodeSecurity, "ciphertext too short")
	}
	nonce := ciphertext[:nonceSize]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeSecurity, "credential decrypt failed: %s", err.Error())
	}
	return plaintext, nil
}
