package secrets

import (
	"context"

	"github.com/idle-engine/idle/pkg/schema"
)

// Broker is a reference AuthSessionBroker backed by a Vault. Each acquisition
// decrypts the named credential and wraps it in an opaque session; the engine
// never looks inside.
type Broker struct {
	vault *Vault
}

// NewBroker creates a Broker over the given vault.
func NewBroker(vault *Vault) (*Broker, error) {
	if vault == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "vault is required")
	}
	return &Broker{vault: vault}, nil
}

// AcquireAuthSession resolves the named credential into a session. Options
// are carried through to the session for handler use but do not influence
// resolution.
func (b *Broker) AcquireAuthSession(ctx context.Context, name string, options map[string]any) (schema.AuthSession, error) {
	material, err := b.vault.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	return &session{name: name, material: material, options: options}, nil
}

// session is the opaque credentialed handle handed to step handlers. It is
// Sensitive: templates refuse it and redaction replaces it wholesale.
type session struct {
	name     string
	material []byte
	options  map[string]any
}

func (s *session) SensitiveValue() {}

// Name reports which credential the session was minted from.
func (s *session) Name() string { return s.name }

// Material returns the decrypted credential bytes.
func (s *session) Material() []byte { return s.material }

// Options returns the acquisition options as supplied.
func (s *session) Options() map[string]any { return s.options }
