package secretstores

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// fakeSMClient is an in-memory Secrets Manager that tracks secret documents
// by name.
type fakeSMClient struct {
	secrets map[string]string
	version int

	putErr  error
	getErr  error
	listErr error
}

func newFakeSMClient() *fakeSMClient {
	return &fakeSMClient{secrets: make(map[string]string)}
}

func (f *fakeSMClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	name := aws.ToString(params.Name)
	f.secrets[name] = aws.ToString(params.SecretString)
	f.version++
	return &secretsmanager.CreateSecretOutput{VersionId: aws.String("v1")}, nil
}

func (f *fakeSMClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	name := aws.ToString(params.SecretId)
	if _, ok := f.secrets[name]; !ok {
		return nil, &smtypes.ResourceNotFoundException{Message: aws.String("secret not found")}
	}
	f.secrets[name] = aws.ToString(params.SecretString)
	f.version++
	return &secretsmanager.PutSecretValueOutput{VersionId: aws.String("v2")}, nil
}

func (f *fakeSMClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	name := aws.ToString(params.SecretId)
	doc, ok := f.secrets[name]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{Message: aws.String("secret not found")}
	}
	return &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(doc),
		VersionId:    aws.String("v2"),
	}, nil
}

func (f *fakeSMClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &secretsmanager.ListSecretsOutput{}, nil
}

func newTestSMStore(t *testing.T, client SecretsManagerClientAPI) *AWSSecretsManagerStore {
	t.Helper()
	store, err := NewAWSSecretsManagerStore("sm", map[string]interface{}{"region": "eu-west-1"},
		logging.New(false, true), WithSecretsManagerClient(client))
	require.NoError(t, err)
	return store
}

func TestSecretsManagerPublishCreatesOnFirstUse(t *testing.T) {
	client := newFakeSMClient()
	store := newTestSMStore(t, client)

	payload := Payload{Principal: "app", CredentialID: "AKIA1", Material: "s3cret"}
	version, err := store.Publish(context.Background(), "prod/app", payload)
	require.NoError(t, err)
	assert.Equal(t, "v1", version.Version)
	assert.Equal(t, "AKIA1", version.CredentialID)

	// Round trip through the stored document.
	current, err := store.ReadCurrent(context.Background(), "prod/app")
	require.NoError(t, err)
	assert.Equal(t, "AKIA1", current.CredentialID)
	assert.Equal(t, "s3cret", current.Material)
}

func TestSecretsManagerPublishUpdatesExisting(t *testing.T) {
	client := newFakeSMClient()
	client.secrets["prod/app"] = `{"principal":"app","credential_id":"AKIA0","material":"old"}`
	store := newTestSMStore(t, client)

	version, err := store.Publish(context.Background(), "prod/app",
		Payload{Principal: "app", CredentialID: "AKIA1", Material: "new"})
	require.NoError(t, err)
	assert.Equal(t, "v2", version.Version)

	current, err := store.ReadCurrent(context.Background(), "prod/app")
	require.NoError(t, err)
	assert.Equal(t, "AKIA1", current.CredentialID)
}

func TestSecretsManagerPublishFailureIsRetryable(t *testing.T) {
	client := newFakeSMClient()
	client.putErr = errors.New("throttling: rate exceeded")
	store := newTestSMStore(t, client)

	_, err := store.Publish(context.Background(), "prod/app", Payload{CredentialID: "AKIA1"})
	require.Error(t, err)
	var su dserrors.StoreUnavailableError
	assert.ErrorAs(t, err, &su)
	assert.True(t, dserrors.IsRetryable(err))
}

func TestSecretsManagerReadCurrentNotFound(t *testing.T) {
	store := newTestSMStore(t, newFakeSMClient())

	_, err := store.ReadCurrent(context.Background(), "prod/missing")
	require.Error(t, err)
	assert.True(t, dserrors.IsNotFound(err))
}

func TestSecretsManagerReadCurrentForeignDocument(t *testing.T) {
	client := newFakeSMClient()
	client.secrets["prod/app"] = "not-a-keyrot-document"
	store := newTestSMStore(t, client)

	// Documents written by other tools read back without a credential id.
	current, err := store.ReadCurrent(context.Background(), "prod/app")
	require.NoError(t, err)
	assert.Empty(t, current.CredentialID)
	assert.Equal(t, "not-a-keyrot-document", current.Material)
}

func TestSecretsManagerValidate(t *testing.T) {
	client := newFakeSMClient()
	store := newTestSMStore(t, client)
	assert.NoError(t, store.Validate(context.Background()))

	client.listErr = errors.New("access denied")
	assert.Error(t, store.Validate(context.Background()))
}
