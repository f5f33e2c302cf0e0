package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idle-engine/idle/pkg/schema"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	v, err := NewVault(NewMemoryStore(), VaultConfig{
		Passphrase: "correct horse battery staple",
		Salt:       []byte("leaver-salt"),
		Iterations: 1000,
	})
	require.NoError(t, err)
	return v
}

func TestVault_StoreResolveRoundTrip(t *testing.T) {
	v := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "ad-service-account", []byte("p@ssw0rd")))

	got, err := v.Resolve(ctx, "ad-service-account")
	require.NoError(t, err)
	assert.Equal(t, []byte("p@ssw0rd"), got)
}

func TestVault_CiphertextAtRest(t *testing.T) {
	store := NewMemoryStore()
	v, err := NewVault(store, VaultConfig{Passphrase: "p", Salt: []byte("s"), Iterations: 1000})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, v.Store(ctx, "cred", []byte("plaintext")))

	raw, err := store.GetCredential(ctx, "cred")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plaintext")
}

func TestVault_ResolveMissing(t *testing.T) {
	v := testVault(t)
	_, err := v.Resolve(context.Background(), "absent")
	require.Error(t, err)

	var ee *schema.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, schema.ErrCodeNotFound, ee.Code)
}

func TestVault_WrongKeyFailsDecrypt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	v1, err := NewVault(store, VaultConfig{Passphrase: "one", Salt: []byte("s"), Iterations: 1000})
	require.NoError(t, err)
	require.NoError(t, v1.Store(ctx, "cred", []byte("value")))

	v2, err := NewVault(store, VaultConfig{Passphrase: "two", Salt: []byte("s"), Iterations: 1000})
	require.NoError(t, err)

	_, err = v2.Resolve(ctx, "cred")
	require.Error(t, err)
	var ee *schema.EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, schema.ErrCodeSecurity, ee.Code)
}

func TestVault_MasterKeyPath(t *testing.T) {
	key := make([]byte, 32)
	v, err := NewVault(NewMemoryStore(), VaultConfig{MasterKey: key})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, v.Store(ctx, "k", []byte("v")))
	got, err := v.Resolve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestNewVault_ConfigValidation(t *testing.T) {
	_, err := NewVault(nil, VaultConfig{MasterKey: make([]byte, 32)})
	assert.Error(t, err)

	_, err = NewVault(NewMemoryStore(), VaultConfig{MasterKey: make([]byte, 16)})
	assert.Error(t, err, "master key must be exactly 32 bytes")

	_, err = NewVault(NewMemoryStore(), VaultConfig{})
	assert.Error(t, err)

	_, err = NewVault(NewMemoryStore(), VaultConfig{Passphrase: "p"})
	assert.Error(t, err, "passphrase without salt is rejected")
}

func TestVault_Delete(t *testing.T) {
	v := testVault(t)
	ctx := context.Background()
	require.NoError(t, v.Store(ctx, "gone", []byte("x")))
	require.NoError(t, v.Delete(ctx, "gone"))

	_, err := v.Resolve(ctx, "gone")
	assert.Error(t, err)
}
