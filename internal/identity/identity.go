// Package identity defines the identity provider abstraction used by the
// rotation coordinator.
//
// An identity provider is the system of record for credentials: it can mint a
// new credential for a principal, enumerate the credentials currently active,
// and revoke a credential by identifier. AWS IAM access keys are the canonical
// example; the static provider backs development and tests.
//
// Implementations must be thread-safe: rotations for different principals run
// concurrently and may call provider methods at the same time.
package identity

import (
	"context"
	"time"
)

// Status describes the lifecycle state of a credential at the provider.
type Status string

const (
	// StatusActive means the credential is usable by callers.
	StatusActive Status = "active"

	// StatusRetiring means the credential is scheduled for revocation but
	// still valid. Both an old and a new credential may be active during a
	// rotation; that overlap is the safety margin, not a defect.
	StatusRetiring Status = "retiring"

	// StatusRevoked means the credential has been invalidated.
	StatusRevoked Status = "revoked"
)

// Credential is a mintable, revocable secret artifact tied to a principal.
type Credential struct {
	// ID is the provider-assigned identifier, e.g. an AWS access key id.
	// Safe to log and to persist.
	ID string

	// Material is the secret part. Never logged, never persisted by keyrot.
	// Empty on credentials returned from ListActive.
	Material string

	// CreatedAt is the provider's creation timestamp for the credential.
	CreatedAt time.Time

	// Status is the provider-side lifecycle state.
	Status Status
}

// Provider mints, lists, and revokes credentials for principals.
type Provider interface {
	// Name returns the provider's unique identifier as used in configuration,
	// e.g. "aws.iam" or "static".
	Name() string

	// Mint creates a fresh credential for the principal. The returned
	// Credential carries the secret material; the caller owns its lifetime.
	Mint(ctx context.Context, principal string) (Credential, error)

	// ListActive returns all credentials currently active for the principal,
	// without secret material, ordered oldest first.
	ListActive(ctx context.Context, principal string) ([]Credential, error)

	// Revoke invalidates the credential with the given id. Revoking an id
	// that does not exist is a no-op, so a retried revoke converges.
	Revoke(ctx context.Context, principal, credentialID string) error

	// Validate checks connectivity and permissions. Called by `keyrot providers`
	// and before the first rotation of a run.
	Validate(ctx context.Context) error
}
