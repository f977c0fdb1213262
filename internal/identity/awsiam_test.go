package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// mockIAMClient implements IAMClientAPI with per-call hooks.
type mockIAMClient struct {
	createFunc func(ctx context.Context, params *iam.CreateAccessKeyInput) (*iam.CreateAccessKeyOutput, error)
	listFunc   func(ctx context.Context, params *iam.ListAccessKeysInput) (*iam.ListAccessKeysOutput, error)
	deleteFunc func(ctx context.Context, params *iam.DeleteAccessKeyInput) (*iam.DeleteAccessKeyOutput, error)
}

func (m *mockIAMClient) CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	return m.createFunc(ctx, params)
}

func (m *mockIAMClient) ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	return m.listFunc(ctx, params)
}

func (m *mockIAMClient) DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error) {
	return m.deleteFunc(ctx, params)
}

type mockSTSClient struct {
	err error
}

func (m *mockSTSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &sts.GetCallerIdentityOutput{Arn: aws.String("arn:aws:iam::123456789012:user/test")}, nil
}

func newTestIAMProvider(t *testing.T, client IAMClientAPI) *AWSIAMProvider {
	t.Helper()
	p, err := NewAWSIAMProvider("aws", map[string]interface{}{"region": "eu-west-1"},
		logging.New(false, true), WithIAMClient(client), WithSTSClient(&mockSTSClient{}))
	require.NoError(t, err)
	return p
}

func TestAWSIAMMint(t *testing.T) {
	created := time.Now()
	client := &mockIAMClient{
		createFunc: func(ctx context.Context, params *iam.CreateAccessKeyInput) (*iam.CreateAccessKeyOutput, error) {
			assert.Equal(t, "ci-deployer", aws.ToString(params.UserName))
			return &iam.CreateAccessKeyOutput{
				AccessKey: &iamtypes.AccessKey{
					AccessKeyId:     aws.String("AKIAEXAMPLE1"),
					SecretAccessKey: aws.String("topsecret"),
					CreateDate:      &created,
					Status:          iamtypes.StatusTypeActive,
				},
			}, nil
		},
	}
	p := newTestIAMProvider(t, client)

	cred, err := p.Mint(context.Background(), "ci-deployer")
	require.NoError(t, err)
	assert.Equal(t, "AKIAEXAMPLE1", cred.ID)
	assert.Equal(t, "topsecret", cred.Material)
	assert.Equal(t, StatusActive, cred.Status)
	assert.Equal(t, created, cred.CreatedAt)
}

func TestAWSIAMMintUnknownUser(t *testing.T) {
	client := &mockIAMClient{
		createFunc: func(ctx context.Context, params *iam.CreateAccessKeyInput) (*iam.CreateAccessKeyOutput, error) {
			return nil, &iamtypes.NoSuchEntityException{Message: aws.String("user not found")}
		},
	}
	p := newTestIAMProvider(t, client)

	_, err := p.Mint(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, dserrors.IsNotFound(err))
	assert.False(t, dserrors.IsRetryable(err))
}

func TestAWSIAMMintTransientFailureIsRetryable(t *testing.T) {
	client := &mockIAMClient{
		createFunc: func(ctx context.Context, params *iam.CreateAccessKeyInput) (*iam.CreateAccessKeyOutput, error) {
			return nil, errors.New("api error")
		},
	}
	p := newTestIAMProvider(t, client)

	_, err := p.Mint(context.Background(), "ci-deployer")
	require.Error(t, err)
	var pu dserrors.ProviderUnavailableError
	assert.ErrorAs(t, err, &pu)
	assert.True(t, dserrors.IsRetryable(err))
}

func TestAWSIAMListActiveFiltersAndSorts(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	client := &mockIAMClient{
		listFunc: func(ctx context.Context, params *iam.ListAccessKeysInput) (*iam.ListAccessKeysOutput, error) {
			return &iam.ListAccessKeysOutput{
				AccessKeyMetadata: []iamtypes.AccessKeyMetadata{
					{AccessKeyId: aws.String("AKIA_NEW"), Status: iamtypes.StatusTypeActive, CreateDate: &newer},
					{AccessKeyId: aws.String("AKIA_DEAD"), Status: iamtypes.StatusTypeInactive, CreateDate: &older},
					{AccessKeyId: aws.String("AKIA_OLD"), Status: iamtypes.StatusTypeActive, CreateDate: &older},
				},
			}, nil
		},
	}
	p := newTestIAMProvider(t, client)

	creds, err := p.ListActive(context.Background(), "ci-deployer")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "AKIA_OLD", creds[0].ID)
	assert.Equal(t, "AKIA_NEW", creds[1].ID)
	for _, cred := range creds {
		assert.Empty(t, cred.Material)
	}
}

func TestAWSIAMRevokeAlreadyDeletedConverges(t *testing.T) {
	client := &mockIAMClient{
		deleteFunc: func(ctx context.Context, params *iam.DeleteAccessKeyInput) (*iam.DeleteAccessKeyOutput, error) {
			return nil, &iamtypes.NoSuchEntityException{Message: aws.String("key not found")}
		},
	}
	p := newTestIAMProvider(t, client)

	assert.NoError(t, p.Revoke(context.Background(), "ci-deployer", "AKIA_GONE"))
}

func TestAWSIAMValidate(t *testing.T) {
	p, err := NewAWSIAMProvider("aws", map[string]interface{}{},
		logging.New(false, true),
		WithIAMClient(&mockIAMClient{}),
		WithSTSClient(&mockSTSClient{}))
	require.NoError(t, err)
	assert.NoError(t, p.Validate(context.Background()))

	failing, err := NewAWSIAMProvider("aws", map[string]interface{}{},
		logging.New(false, true),
		WithIAMClient(&mockIAMClient{}),
		WithSTSClient(&mockSTSClient{err: errors.New("no credentials")}))
	require.NoError(t, err)
	assert.Error(t, failing.Validate(context.Background()))
}
