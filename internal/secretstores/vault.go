package secretstores

import (
	"context"
	"strconv"
	"time"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// VaultStore publishes credentials to a HashiCorp Vault KV v2 mount.
type VaultStore struct {
	name   string
	config VaultConfig
	client VaultClient
	logger *logging.Logger
}

// VaultOption is a functional option for configuring the store
type VaultOption func(*VaultStore)

// WithVaultClient sets a custom Vault client (for testing)
func WithVaultClient(client VaultClient) VaultOption {
	return func(s *VaultStore) {
		s.client = client
	}
}

// NewVaultStore creates a new Vault KV v2 store
func NewVaultStore(name string, storeConfig map[string]interface{}, logger *logging.Logger, opts ...VaultOption) (*VaultStore, error) {
	config := VaultConfig{
		AuthMethod: "token",
		Mount:      "secret",
	}

	if addr, ok := storeConfig["address"].(string); ok {
		config.Address = addr
	}
	if token, ok := storeConfig["token"].(string); ok {
		config.Token = token
	}
	if authMethod, ok := storeConfig["auth_method"].(string); ok {
		config.AuthMethod = authMethod
	}
	if namespace, ok := storeConfig["namespace"].(string); ok {
		config.Namespace = namespace
	}
	if mount, ok := storeConfig["mount"].(string); ok && mount != "" {
		config.Mount = mount
	}
	if username, ok := storeConfig["userpass_username"].(string); ok {
		config.UserpassUsername = username
	}
	if password, ok := storeConfig["userpass_password"].(string); ok {
		config.UserpassPassword = password
	}
	if tlsSkip, ok := storeConfig["tls_skip"].(bool); ok {
		config.TLSSkip = tlsSkip
	}

	if config.Address == "" {
		return nil, dserrors.ConfigError{
			Field:      "address",
			Message:    "address is required for Vault",
			Suggestion: "Provide the Vault server address (e.g., https://vault.internal:8200)",
		}
	}

	s := &VaultStore{
		name:   name,
		config: config,
		logger: logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = NewHTTPVaultClient(config)
	}

	return s, nil
}

// Name returns the store name
func (s *VaultStore) Name() string {
	return s.name
}

// Publish writes the payload as a new KV v2 version at path.
func (s *VaultStore) Publish(ctx context.Context, path string, payload Payload) (SecretVersion, error) {
	if err := s.client.Authenticate(ctx); err != nil {
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "publish",
			Err:       err,
		}
	}

	meta, err := s.client.WriteKV(ctx, s.config.Mount, path, map[string]interface{}{
		"principal":     payload.Principal,
		"credential_id": payload.CredentialID,
		"material":      payload.Material,
	})
	if err != nil {
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "publish",
			Err:       err,
		}
	}

	version := SecretVersion{CredentialID: payload.CredentialID}
	if meta != nil {
		version.Version = strconv.Itoa(meta.Version)
		if t, perr := time.Parse(time.RFC3339Nano, meta.CreatedTime); perr == nil {
			version.PublishedAt = t
		}
	}
	return version, nil
}

// ReadCurrent reads back the current KV v2 version at path.
func (s *VaultStore) ReadCurrent(ctx context.Context, path string) (SecretVersion, error) {
	if err := s.client.Authenticate(ctx); err != nil {
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "read",
			Err:       err,
		}
	}

	secret, err := s.client.ReadKV(ctx, s.config.Mount, path)
	if err != nil {
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "read",
			Err:       err,
		}
	}
	if secret == nil {
		return SecretVersion{}, dserrors.NotFoundError{Kind: "secret", Name: path}
	}

	version := SecretVersion{
		Version: strconv.Itoa(secret.Metadata.Version),
	}
	if t, perr := time.Parse(time.RFC3339Nano, secret.Metadata.CreatedTime); perr == nil {
		version.PublishedAt = t
	}
	if id, ok := secret.Data["credential_id"].(string); ok {
		version.CredentialID = id
	}
	if material, ok := secret.Data["material"].(string); ok {
		version.Material = material
	}
	return version, nil
}

// Capabilities returns the store capabilities
func (s *VaultStore) Capabilities() Capabilities {
	return Capabilities{
		SupportsVersioning: true,
		RequiresAuth:       true,
		AuthMethods:        []string{"token", "userpass"},
	}
}

// Validate checks the Vault server is reachable and the auth works.
func (s *VaultStore) Validate(ctx context.Context) error {
	if err := s.client.Health(ctx); err != nil {
		return dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "validate",
			Err:       err,
		}
	}
	if err := s.client.Authenticate(ctx); err != nil {
		return dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "validate",
			Err:       err,
		}
	}
	return nil
}
