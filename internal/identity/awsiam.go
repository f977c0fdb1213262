package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// IAMClientAPI defines the interface for AWS IAM operations.
// This allows for mocking in tests.
type IAMClientAPI interface {
	CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
}

// STSClientAPI defines the interface for the STS calls used during validation.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSIAMProvider mints and revokes IAM user access keys. The principal is the
// IAM user name; the credential id is the access key id and the material is
// the secret access key.
type AWSIAMProvider struct {
	name   string
	client IAMClientAPI
	stsc   STSClientAPI
	logger *logging.Logger
	region string
}

// AWSIAMOption is a functional option for configuring the provider.
type AWSIAMOption func(*AWSIAMProvider)

// WithIAMClient sets a custom IAM client (for testing).
func WithIAMClient(client IAMClientAPI) AWSIAMOption {
	return func(p *AWSIAMProvider) {
		p.client = client
	}
}

// WithSTSClient sets a custom STS client (for testing).
func WithSTSClient(client STSClientAPI) AWSIAMOption {
	return func(p *AWSIAMProvider) {
		p.stsc = client
	}
}

// NewAWSIAMProvider creates a new AWS IAM identity provider.
func NewAWSIAMProvider(name string, providerConfig map[string]interface{}, logger *logging.Logger, opts ...AWSIAMOption) (*AWSIAMProvider, error) {
	region := "us-east-1"
	if r, ok := providerConfig["region"].(string); ok && r != "" {
		region = r
	}

	// Optional static credentials for LocalStack/testing
	var accessKeyID, secretAccessKey string
	if ak, ok := providerConfig["access_key_id"].(string); ok && ak != "" {
		accessKeyID = ak
	}
	if sk, ok := providerConfig["secret_access_key"].(string); ok && sk != "" {
		secretAccessKey = sk
	}

	var endpoint string
	if e, ok := providerConfig["endpoint"].(string); ok && e != "" {
		endpoint = e
	}

	p := &AWSIAMProvider{
		name:   name,
		logger: logger,
		region: region,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
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

		var iamOpts []func(*iam.Options)
		var stsOpts []func(*sts.Options)
		if endpoint != "" {
			iamOpts = append(iamOpts, func(o *iam.Options) { o.BaseEndpoint = &endpoint })
			stsOpts = append(stsOpts, func(o *sts.Options) { o.BaseEndpoint = &endpoint })
		}
		p.client = iam.NewFromConfig(cfg, iamOpts...)
		p.stsc = sts.NewFromConfig(cfg, stsOpts...)
	}

	return p, nil
}

// Name returns the provider name
func (p *AWSIAMProvider) Name() string {
	return p.name
}

// Mint creates a new access key for the IAM user.
func (p *AWSIAMProvider) Mint(ctx context.Context, principal string) (Credential, error) {
	out, err := p.client.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{
		UserName: aws.String(principal),
	})
	if err != nil {
		var nse *iamtypes.NoSuchEntityException
		if errors.As(err, &nse) {
			return Credential{}, dserrors.NotFoundError{Kind: "principal", Name: principal}
		}
		return Credential{}, dserrors.ProviderUnavailableError{
			Provider:  p.name,
			Operation: "mint",
			Err:       err,
		}
	}

	key := out.AccessKey
	cred := Credential{
		ID:       aws.ToString(key.AccessKeyId),
		Material: aws.ToString(key.SecretAccessKey),
		Status:   StatusActive,
	}
	if key.CreateDate != nil {
		cred.CreatedAt = *key.CreateDate
	}

	p.logger.Debug("Minted access key %s for IAM user %s", cred.ID, principal)
	return cred, nil
}

// ListActive returns the active access keys for the IAM user, oldest first.
func (p *AWSIAMProvider) ListActive(ctx context.Context, principal string) ([]Credential, error) {
	out, err := p.client.ListAccessKeys(ctx, &iam.ListAccessKeysInput{
		UserName: aws.String(principal),
	})
	if err != nil {
		var nse *iamtypes.NoSuchEntityException
		if errors.As(err, &nse) {
			return nil, dserrors.NotFoundError{Kind: "principal", Name: principal}
		}
		return nil, dserrors.ProviderUnavailableError{
			Provider:  p.name,
			Operation: "list",
			Err:       err,
		}
	}

	var creds []Credential
	for _, md := range out.AccessKeyMetadata {
		if md.Status != iamtypes.StatusTypeActive {
			continue
		}
		cred := Credential{
			ID:     aws.ToString(md.AccessKeyId),
			Status: StatusActive,
		}
		if md.CreateDate != nil {
			cred.CreatedAt = *md.CreateDate
		}
		creds = append(creds, cred)
	}

	sort.Slice(creds, func(i, j int) bool {
		return creds[i].CreatedAt.Before(creds[j].CreatedAt)
	})
	return creds, nil
}

// Revoke deletes the access key. Deleting an already-deleted key is a no-op.
func (p *AWSIAMProvider) Revoke(ctx context.Context, principal, credentialID string) error {
	_, err := p.client.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
		UserName:    aws.String(principal),
		AccessKeyId: aws.String(credentialID),
	})
	if err != nil {
		var nse *iamtypes.NoSuchEntityException
		if errors.As(err, &nse) {
			// Already gone; a retried revoke must converge.
			return nil
		}
		return dserrors.ProviderUnavailableError{
			Provider:  p.name,
			Operation: "revoke",
			Err:       err,
		}
	}

	p.logger.Debug("Revoked access key %s for IAM user %s", credentialID, principal)
	return nil
}

// Validate checks that the configured AWS credentials work.
func (p *AWSIAMProvider) Validate(ctx context.Context) error {
	if p.stsc == nil {
		return nil
	}
	if _, err := p.stsc.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return dserrors.ProviderUnavailableError{
			Provider:  p.name,
			Operation: "validate",
			Err:       err,
		}
	}
	return nil
}
