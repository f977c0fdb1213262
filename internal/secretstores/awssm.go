package secretstores

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// SecretsManagerClientAPI defines the interface for AWS Secrets Manager operations
// This allows for mocking in tests
type SecretsManagerClientAPI interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// AWSSecretsManagerStore publishes credentials to AWS Secrets Manager.
// Each publish writes a new secret version staged AWSCURRENT.
type AWSSecretsManagerStore struct {
	name   string
	client SecretsManagerClientAPI
	logger *logging.Logger
	region string
}

// SecretsManagerOption is a functional option for configuring the store
type SecretsManagerOption func(*AWSSecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerOption {
	return func(s *AWSSecretsManagerStore) {
		s.client = client
	}
}

// NewAWSSecretsManagerStore creates a new AWS Secrets Manager store
func NewAWSSecretsManagerStore(name string, storeConfig map[string]interface{}, logger *logging.Logger, opts ...SecretsManagerOption) (*AWSSecretsManagerStore, error) {
	region := "us-east-1"
	if r, ok := storeConfig["region"].(string); ok && r != "" {
		region = r
	}

	// Optional endpoint and static credentials for LocalStack/testing
	var endpoint string
	if e, ok := storeConfig["endpoint"].(string); ok && e != "" {
		endpoint = e
	}
	var accessKeyID, secretAccessKey string
	if ak, ok := storeConfig["access_key_id"].(string); ok && ak != "" {
		accessKeyID = ak
	}
	if sk, ok := storeConfig["secret_access_key"].(string); ok && sk != "" {
		secretAccessKey = sk
	}

	s := &AWSSecretsManagerStore{
		name:   name,
		logger: logger,
		region: region,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var configOpts []func(*config.LoadOptions) error
		configOpts = append(configOpts, config.WithRegion(region))

		if accessKeyID != "" && secretAccessKey != "" {
			configOpts = append(configOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
			))
		}

		cfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return s, nil
}

// Name returns the store name
func (s *AWSSecretsManagerStore) Name() string {
	return s.name
}

// Publish writes the payload as a new AWSCURRENT version, creating the secret
// on first publish.
func (s *AWSSecretsManagerStore) Publish(ctx context.Context, path string, payload Payload) (SecretVersion, error) {
	doc, err := payload.Marshal()
	if err != nil {
		return SecretVersion{}, err
	}

	out, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(path),
		SecretString: aws.String(doc),
	})
	if err != nil {
		var rnf *smtypes.ResourceNotFoundException
		if errors.As(err, &rnf) {
			created, cerr := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
				Name:         aws.String(path),
				SecretString: aws.String(doc),
			})
			if cerr != nil {
				return SecretVersion{}, dserrors.StoreUnavailableError{
					Store:     s.name,
					Operation: "publish",
					Err:       cerr,
				}
			}
			s.logger.Debug("Created secret %s in Secrets Manager", path)
			return SecretVersion{
				CredentialID: payload.CredentialID,
				Version:      aws.ToString(created.VersionId),
			}, nil
		}
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "publish",
			Err:       err,
		}
	}

	return SecretVersion{
		CredentialID: payload.CredentialID,
		Version:      aws.ToString(out.VersionId),
	}, nil
}

// ReadCurrent reads back the AWSCURRENT version at path.
func (s *AWSSecretsManagerStore) ReadCurrent(ctx context.Context, path string) (SecretVersion, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		var rnf *smtypes.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return SecretVersion{}, dserrors.NotFoundError{Kind: "secret", Name: path}
		}
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "read",
			Err:       err,
		}
	}

	var raw string
	if out.SecretString != nil {
		raw = *out.SecretString
	} else if out.SecretBinary != nil {
		raw = string(out.SecretBinary)
	}

	version := SecretVersion{
		Version:  aws.ToString(out.VersionId),
		Material: raw,
	}
	if out.CreatedDate != nil {
		version.PublishedAt = *out.CreatedDate
	}
	if payload, perr := ParsePayload(raw); perr == nil {
		version.CredentialID = payload.CredentialID
		version.Material = payload.Material
	}
	return version, nil
}

// Capabilities returns the store capabilities
func (s *AWSSecretsManagerStore) Capabilities() Capabilities {
	return Capabilities{
		SupportsVersioning: true,
		RequiresAuth:       true,
		AuthMethods:        []string{"iam", "cli"},
	}
}

// Validate checks connectivity by listing secrets.
func (s *AWSSecretsManagerStore) Validate(ctx context.Context) error {
	_, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "validate",
			Err:       err,
		}
	}
	return nil
}
