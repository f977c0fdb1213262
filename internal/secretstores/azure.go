package secretstores

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// AzureKeyVaultClientAPI defines the interface for Azure Key Vault operations
// This allows for mocking in tests
type AzureKeyVaultClientAPI interface {
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureKeyVaultStore publishes credentials to Azure Key Vault. Each publish
// creates a new secret version; Key Vault serves the newest enabled version.
type AzureKeyVaultStore struct {
	name     string
	client   AzureKeyVaultClientAPI
	logger   *logging.Logger
	vaultURL string
}

// AzureOption is a functional option for configuring the store
type AzureOption func(*AzureKeyVaultStore)

// WithAzureKeyVaultClient sets a custom Key Vault client (for testing)
func WithAzureKeyVaultClient(client AzureKeyVaultClientAPI) AzureOption {
	return func(s *AzureKeyVaultStore) {
		s.client = client
	}
}

// NewAzureKeyVaultStore creates a new Azure Key Vault store
func NewAzureKeyVaultStore(name string, storeConfig map[string]interface{}, logger *logging.Logger, opts ...AzureOption) (*AzureKeyVaultStore, error) {
	vaultURL, _ := storeConfig["vault_url"].(string)
	if vaultURL == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Provide the Key Vault URL (e.g., https://my-vault.vault.azure.net/)",
		}
	}
	if _, err := url.Parse(vaultURL); err != nil {
		return nil, dserrors.ConfigError{
			Field:      "vault_url",
			Message:    "Invalid vault_url format",
			Suggestion: "Use format: https://vault-name.vault.azure.net/",
		}
	}

	s := &AzureKeyVaultStore{
		name:     name,
		logger:   logger,
		vaultURL: vaultURL,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var cred azcore.TokenCredential
		var err error

		tenantID, _ := storeConfig["tenant_id"].(string)
		clientID, _ := storeConfig["client_id"].(string)
		clientSecret, _ := storeConfig["client_secret"].(string)

		if tenantID != "" && clientID != "" && clientSecret != "" {
			cred, err = azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
		} else {
			cred, err = azidentity.NewDefaultAzureCredential(nil)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}

		client, err := azsecrets.NewClient(vaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
		}
		s.client = client
	}

	return s, nil
}

// Name returns the store name
func (s *AzureKeyVaultStore) Name() string {
	return s.name
}

// Publish writes the payload as a new version of the secret at path.
func (s *AzureKeyVaultStore) Publish(ctx context.Context, path string, payload Payload) (SecretVersion, error) {
	doc, err := payload.Marshal()
	if err != nil {
		return SecretVersion{}, err
	}

	out, err := s.client.SetSecret(ctx, path, azsecrets.SetSecretParameters{
		Value: to.Ptr(doc),
	}, nil)
	if err != nil {
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "publish",
			Err:       err,
		}
	}

	version := SecretVersion{CredentialID: payload.CredentialID}
	if out.ID != nil {
		version.Version = out.ID.Version()
	}
	if out.Attributes != nil && out.Attributes.Created != nil {
		version.PublishedAt = *out.Attributes.Created
	}
	return version, nil
}

// ReadCurrent reads back the newest version of the secret at path.
func (s *AzureKeyVaultStore) ReadCurrent(ctx context.Context, path string) (SecretVersion, error) {
	out, err := s.client.GetSecret(ctx, path, "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return SecretVersion{}, dserrors.NotFoundError{Kind: "secret", Name: path}
		}
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "read",
			Err:       err,
		}
	}

	var raw string
	if out.Value != nil {
		raw = *out.Value
	}

	version := SecretVersion{Material: raw}
	if out.ID != nil {
		version.Version = out.ID.Version()
	}
	if out.Attributes != nil && out.Attributes.Created != nil {
		version.PublishedAt = *out.Attributes.Created
	}
	if payload, perr := ParsePayload(raw); perr == nil {
		version.CredentialID = payload.CredentialID
		version.Material = payload.Material
	}
	return version, nil
}

// Capabilities returns the store capabilities
func (s *AzureKeyVaultStore) Capabilities() Capabilities {
	return Capabilities{
		SupportsVersioning: true,
		RequiresAuth:       true,
		AuthMethods:        []string{"iam", "api_key", "cli"},
	}
}

// Validate checks connectivity by fetching a probe secret. A 404 means the
// vault answered; anything else transport-shaped is a failure.
func (s *AzureKeyVaultStore) Validate(ctx context.Context) error {
	_, err := s.client.GetSecret(ctx, "keyrot-validate", "", nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil
		}
		return dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "validate",
			Err:       err,
		}
	}
	return nil
}
