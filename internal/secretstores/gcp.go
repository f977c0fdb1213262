package secretstores

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// GCPSecretManagerClientAPI defines the Secret Manager operations used by the
// store. Satisfied by *secretmanager.Client; allows for mocking in tests.
type GCPSecretManagerClientAPI interface {
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
}

// GCPSecretManagerStore publishes credentials to Google Cloud Secret Manager.
// The path is the plain secret id; the store expands it to the full resource
// name under the configured project.
type GCPSecretManagerStore struct {
	name      string
	client    GCPSecretManagerClientAPI
	logger    *logging.Logger
	projectID string
}

// GCPOption is a functional option for configuring the store
type GCPOption func(*GCPSecretManagerStore)

// WithGCPClient sets a custom Secret Manager client (for testing)
func WithGCPClient(client GCPSecretManagerClientAPI) GCPOption {
	return func(s *GCPSecretManagerStore) {
		s.client = client
	}
}

// NewGCPSecretManagerStore creates a new GCP Secret Manager store
func NewGCPSecretManagerStore(name string, storeConfig map[string]interface{}, logger *logging.Logger, opts ...GCPOption) (*GCPSecretManagerStore, error) {
	projectID, _ := storeConfig["project_id"].(string)
	if projectID == "" {
		projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if projectID == "" {
		return nil, dserrors.ConfigError{
			Field:      "project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set project_id in config or GOOGLE_CLOUD_PROJECT environment variable",
		}
	}

	s := &GCPSecretManagerStore{
		name:      name,
		logger:    logger,
		projectID: projectID,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var clientOptions []option.ClientOption
		if keyPath, ok := storeConfig["service_account_key_path"].(string); ok && keyPath != "" {
			if strings.HasPrefix(keyPath, "~/") {
				home, err := os.UserHomeDir()
				if err != nil {
					return nil, fmt.Errorf("failed to get home directory: %w", err)
				}
				keyPath = filepath.Join(home, keyPath[2:])
			}
			clientOptions = append(clientOptions, option.WithCredentialsFile(keyPath))
		}

		client, err := secretmanager.NewClient(context.Background(), clientOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		s.client = client
	}

	return s, nil
}

// Name returns the store name
func (s *GCPSecretManagerStore) Name() string {
	return s.name
}

func (s *GCPSecretManagerStore) secretName(path string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, path)
}

// Publish adds a new version to the secret at path, creating the secret on
// first publish.
func (s *GCPSecretManagerStore) Publish(ctx context.Context, path string, payload Payload) (SecretVersion, error) {
	doc, err := payload.Marshal()
	if err != nil {
		return SecretVersion{}, err
	}

	addVersion := func() (*secretmanagerpb.SecretVersion, error) {
		return s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
			Parent: s.secretName(path),
			Payload: &secretmanagerpb.SecretPayload{
				Data: []byte(doc),
			},
		})
	}

	out, err := addVersion()
	if status.Code(err) == codes.NotFound {
		_, cerr := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", s.projectID),
			SecretId: path,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		})
		if cerr != nil && status.Code(cerr) != codes.AlreadyExists {
			return SecretVersion{}, dserrors.StoreUnavailableError{
				Store:     s.name,
				Operation: "publish",
				Err:       cerr,
			}
		}
		s.logger.Debug("Created secret %s in GCP Secret Manager", path)
		out, err = addVersion()
	}
	if err != nil {
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "publish",
			Err:       err,
		}
	}

	version := SecretVersion{CredentialID: payload.CredentialID}
	// Resource name ends in /versions/N; the numeric part is the version.
	if idx := strings.LastIndex(out.GetName(), "/"); idx != -1 {
		version.Version = out.GetName()[idx+1:]
	}
	if created := out.GetCreateTime(); created != nil {
		version.PublishedAt = created.AsTime()
	}
	return version, nil
}

// ReadCurrent reads back the latest version at path.
func (s *GCPSecretManagerStore) ReadCurrent(ctx context.Context, path string) (SecretVersion, error) {
	out, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretName(path) + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return SecretVersion{}, dserrors.NotFoundError{Kind: "secret", Name: path}
		}
		return SecretVersion{}, dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "read",
			Err:       err,
		}
	}

	raw := string(out.GetPayload().GetData())
	version := SecretVersion{Material: raw}
	if idx := strings.LastIndex(out.GetName(), "/"); idx != -1 {
		version.Version = out.GetName()[idx+1:]
	}
	if payload, perr := ParsePayload(raw); perr == nil {
		version.CredentialID = payload.CredentialID
		version.Material = payload.Material
	}
	return version, nil
}

// Capabilities returns the store capabilities
func (s *GCPSecretManagerStore) Capabilities() Capabilities {
	return Capabilities{
		SupportsVersioning: true,
		RequiresAuth:       true,
		AuthMethods:        []string{"iam", "cli"},
	}
}

// Validate checks the configured project is reachable.
func (s *GCPSecretManagerStore) Validate(ctx context.Context) error {
	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: s.secretName("keyrot-validate"),
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return dserrors.StoreUnavailableError{
			Store:     s.name,
			Operation: "validate",
			Err:       err,
		}
	}
	return nil
}
