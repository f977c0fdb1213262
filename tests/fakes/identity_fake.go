package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/systmms/keyrot/internal/identity"
)

// FakeProvider is an in-memory identity.Provider with failure injection.
//
// Errors are injected as queues: each call pops the next entry, a nil entry
// means success. An empty queue always succeeds. This makes "fail twice then
// succeed" scripts trivial.
type FakeProvider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "fake".
	ProviderName string

	// MintErrs is popped on each Mint call.
	MintErrs []error

	// ListErr fails every ListActive call while set.
	ListErr error

	// RevokeErrs is popped on each Revoke call.
	RevokeErrs []error

	// RevokeErrByID fails Revoke for specific credential ids, overriding
	// RevokeErrs.
	RevokeErrByID map[string]error

	// ValidateErr is returned by Validate.
	ValidateErr error

	// Clock replaces time.Now for CreatedAt stamps.
	Clock func() time.Time

	creds map[string][]identity.Credential
	seq   int

	// Call records, for asserting interaction counts.
	MintCalls   int
	ListCalls   int
	RevokeCalls []string
}

// NewFakeProvider creates an empty fake provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		ProviderName: "fake",
		creds:        make(map[string][]identity.Credential),
	}
}

// Seed installs pre-existing active credentials for a principal and returns
// their ids, oldest first.
func (p *FakeProvider) Seed(principal string, count int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		cred := p.newCredentialLocked(principal)
		p.creds[principal] = append(p.creds[principal], cred)
		ids = append(ids, cred.ID)
	}
	return ids
}

// ActiveIDs returns the ids of the principal's active credentials, oldest
// first.
func (p *FakeProvider) ActiveIDs(principal string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ids []string
	for _, cred := range p.creds[principal] {
		ids = append(ids, cred.ID)
	}
	return ids
}

// Material returns the secret material minted for a credential id, or "".
func (p *FakeProvider) Material(principal, credentialID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cred := range p.creds[principal] {
		if cred.ID == credentialID {
			return cred.Material
		}
	}
	return ""
}

func (p *FakeProvider) Name() string {
	if p.ProviderName == "" {
		return "fake"
	}
	return p.ProviderName
}

func (p *FakeProvider) Mint(ctx context.Context, principal string) (identity.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.MintCalls++
	if err := pop(&p.MintErrs); err != nil {
		return identity.Credential{}, err
	}

	cred := p.newCredentialLocked(principal)
	p.creds[principal] = append(p.creds[principal], cred)
	return cred, nil
}

func (p *FakeProvider) ListActive(ctx context.Context, principal string) ([]identity.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ListCalls++
	if p.ListErr != nil {
		return nil, p.ListErr
	}

	out := make([]identity.Credential, 0, len(p.creds[principal]))
	for _, cred := range p.creds[principal] {
		cred.Material = ""
		out = append(out, cred)
	}
	return out, nil
}

func (p *FakeProvider) Revoke(ctx context.Context, principal, credentialID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.RevokeCalls = append(p.RevokeCalls, credentialID)
	if err, ok := p.RevokeErrByID[credentialID]; ok && err != nil {
		return err
	}
	if err := pop(&p.RevokeErrs); err != nil {
		return err
	}

	creds := p.creds[principal]
	for i, cred := range creds {
		if cred.ID == credentialID {
			p.creds[principal] = append(creds[:i], creds[i+1:]...)
			return nil
		}
	}
	// Revoking an unknown id converges, matching real providers.
	return nil
}

func (p *FakeProvider) Validate(ctx context.Context) error {
	return p.ValidateErr
}

func (p *FakeProvider) newCredentialLocked(principal string) identity.Credential {
	p.seq++
	now := time.Now()
	if p.Clock != nil {
		now = p.Clock()
	}
	id := fmt.Sprintf("%s-key-%d", principal, p.seq)
	return identity.Credential{
		ID:        id,
		Material:  "secret-" + id,
		CreatedAt: now,
		Status:    identity.StatusActive,
	}
}

// pop removes and returns the head of an error queue; an empty queue yields
// nil.
func pop(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}
