// Package secretstores implements the distribution side of a rotation: the
// systems that consumers read live credentials from.
//
// A store holds exactly one current credential per path. Publish writes a new
// payload as the current version; ReadCurrent reads it back. Stores never see
// provider-side lifecycle state, only the payload keyrot publishes.
package secretstores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the document keyrot publishes to a store path. The credential id
// travels with the material so a later read can identify which provider-side
// credential the store currently serves.
type Payload struct {
	Principal    string `json:"principal"`
	CredentialID string `json:"credential_id"`
	Material     string `json:"material"`
}

// Marshal encodes the payload as the canonical JSON document.
func (p Payload) Marshal() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode secret payload: %w", err)
	}
	return string(data), nil
}

// ParsePayload decodes a stored document. Documents written by other tools may
// not be valid payloads; callers should treat a parse failure as "unknown
// current credential", not as a hard error.
func ParsePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode secret payload: %w", err)
	}
	return p, nil
}

// SecretVersion describes one published version of a store path.
type SecretVersion struct {
	// CredentialID is the provider credential the version carries.
	// Empty if the stored document was not written by keyrot.
	CredentialID string

	// Version is the store-native version identifier: an AWS version id,
	// a Vault KV version number, an SSM parameter version. Empty for stores
	// without versioning.
	Version string

	// PublishedAt is when the version was written, if the store reports it.
	PublishedAt time.Time

	// Material is the secret material. Populated only by ReadCurrent;
	// Publish returns it empty.
	Material string
}

// Capabilities describes what a store backend supports.
type Capabilities struct {
	// SupportsVersioning indicates the store keeps prior versions and
	// reports a native version identifier on publish.
	SupportsVersioning bool

	// RequiresAuth indicates the store needs credentials of its own.
	RequiresAuth bool

	// AuthMethods lists the supported authentication methods, e.g.
	// "iam", "token", "userpass", "cli".
	AuthMethods []string
}

// Store publishes and reads back current credentials.
//
// Implementations must be thread-safe and must never log payload material.
type Store interface {
	// Name returns the store's configured name.
	Name() string

	// Publish writes payload as the new current version at path, replacing
	// whatever was current before. Old versions are kept where the backend
	// supports versioning. Publish must be atomic from a reader's point of
	// view: readers see either the previous document or the new one, never
	// a partial write.
	Publish(ctx context.Context, path string, payload Payload) (SecretVersion, error)

	// ReadCurrent returns the current version at path, material included.
	// Returns errors.NotFoundError when nothing has been published yet.
	ReadCurrent(ctx context.Context, path string) (SecretVersion, error)

	// Capabilities returns the backend's supported features.
	Capabilities() Capabilities

	// Validate checks connectivity and permissions.
	Validate(ctx context.Context) error
}
