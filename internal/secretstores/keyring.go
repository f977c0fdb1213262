package secretstores

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// KeyringStore publishes credentials to the OS keyring (macOS Keychain,
// Secret Service on Linux, Windows Credential Manager). Meant for developer
// workstations; the keyring keeps a single current value per path and has no
// version history.
type KeyringStore struct {
	name    string
	service string
	logger  *logging.Logger
}

// NewKeyringStore creates a new OS keyring store
func NewKeyringStore(name string, storeConfig map[string]interface{}, logger *logging.Logger) (*KeyringStore, error) {
	service := "keyrot"
	if s, ok := storeConfig["service"].(string); ok && s != "" {
		service = s
	}

	return &KeyringStore{
		name:    name,
		service: service,
		logger:  logger,
	}, nil
}

// Name returns the store name
func (s *KeyringStore) Name() string {
	return s.name
}

// Publish overwrites the keyring entry at path with the new payload.
func (s *KeyringStore) Publish(ctx context.Context, path string, payload Payload) (SecretVersion, error) {
	doc, err := payload.Marshal()
	if err != nil {
		return SecretVersion{}, err
	}

	if err := keyring.Set(s.service, path, doc); err != nil {
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "publish",
			Err:       err,
		}
	}

	return SecretVersion{CredentialID: payload.CredentialID}, nil
}

// ReadCurrent reads back the keyring entry at path.
func (s *KeyringStore) ReadCurrent(ctx context.Context, path string) (SecretVersion, error) {
	raw, err := keyring.Get(s.service, path)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return SecretVersion{}, dserrors.NotFoundError{Kind: "secret", Name: path}
		}
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "read",
			Err:       err,
		}
	}

	version := SecretVersion{Material: raw}
	if payload, perr := ParsePayload(raw); perr == nil {
		version.CredentialID = payload.CredentialID
		version.Material = payload.Material
	}
	return version, nil
}

// Capabilities returns the store capabilities
func (s *KeyringStore) Capabilities() Capabilities {
	return Capabilities{
		SupportsVersioning: false,
		RequiresAuth:       false,
	}
}

// Validate checks the keyring backend is usable by probing a well-known key.
func (s *KeyringStore) Validate(ctx context.Context) error {
	_, err := keyring.Get(s.service, "keyrot-validate")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "validate",
			Err:       err,
		}
	}
	return nil
}
