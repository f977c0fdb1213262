package secretstores

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// SSMClientAPI defines the interface for AWS SSM Parameter Store operations
// This allows for mocking in tests
type SSMClientAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
}

// AWSSSMStore publishes credentials to AWS SSM Parameter Store as
// SecureString parameters.
type AWSSSMStore struct {
	name   string
	client SSMClientAPI
	logger *logging.Logger
	region string
	kmsKey string
}

// SSMOption is a functional option for configuring the store
type SSMOption func(*AWSSSMStore)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client SSMClientAPI) SSMOption {
	return func(s *AWSSSMStore) {
		s.client = client
	}
}

// NewAWSSSMStore creates a new AWS SSM Parameter Store backend
func NewAWSSSMStore(name string, storeConfig map[string]interface{}, logger *logging.Logger, opts ...SSMOption) (*AWSSSMStore, error) {
	region := "us-east-1"
	if r, ok := storeConfig["region"].(string); ok && r != "" {
		region = r
	}

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

	s := &AWSSSMStore{
		name:   name,
		logger: logger,
		region: region,
	}
	if k, ok := storeConfig["kms_key_id"].(string); ok && k != "" {
		s.kmsKey = k
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

		var clientOpts []func(*ssm.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *ssm.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = ssm.NewFromConfig(cfg, clientOpts...)
	}

	return s, nil
}

// Name returns the store name
func (s *AWSSSMStore) Name() string {
	return s.name
}

// Publish overwrites the parameter at path with the new payload.
func (s *AWSSSMStore) Publish(ctx context.Context, path string, payload Payload) (SecretVersion, error) {
	doc, err := payload.Marshal()
	if err != nil {
		return SecretVersion{}, err
	}

	input := &ssm.PutParameterInput{
		Name:      aws.String(path),
		Value:     aws.String(doc),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	}
	if s.kmsKey != "" {
		input.KeyId = aws.String(s.kmsKey)
	}

	out, err := s.client.PutParameter(ctx, input)
	if err != nil {
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "publish",
			Err:       err,
		}
	}

	return SecretVersion{
		CredentialID: payload.CredentialID,
		Version:      strconv.FormatInt(out.Version, 10),
	}, nil
}

// ReadCurrent reads back the latest parameter version at path.
func (s *AWSSSMStore) ReadCurrent(ctx context.Context, path string) (SecretVersion, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var pnf *ssmtypes.ParameterNotFound
		if errors.As(err, &pnf) {
			return SecretVersion{}, dserrors.NotFoundError{Kind: "secret", Name: path}
		}
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "read",
			Err:       err,
		}
	}

	param := out.Parameter
	version := SecretVersion{
		Version:  strconv.FormatInt(param.Version, 10),
		Material: aws.ToString(param.Value),
	}
	if param.LastModifiedDate != nil {
		version.PublishedAt = *param.LastModifiedDate
	}
	if payload, perr := ParsePayload(aws.ToString(param.Value)); perr == nil {
		version.CredentialID = payload.CredentialID
		version.Material = payload.Material
	}
	return version, nil
}

// Capabilities returns the store capabilities
func (s *AWSSSMStore) Capabilities() Capabilities {
	return Capabilities{
		SupportsVersioning: true,
		RequiresAuth:       true,
		AuthMethods:        []string{"iam", "cli"},
	}
}

// Validate checks connectivity by describing parameters.
func (s *AWSSSMStore) Validate(ctx context.Context) error {
	_, err := s.client.DescribeParameters(ctx, &ssm.DescribeParametersInput{
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
