package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	dserrors "github.com/systmms/keyrot/internal/errors"
)

// StaticProvider is an in-memory identity provider for development and local
// trials. Credentials are generated with crypto/rand and exist only for the
// lifetime of the process.
type StaticProvider struct {
	name string

	mu      sync.Mutex
	serial  int
	byOwner map[string]map[string]Credential
}

// NewStaticProvider creates a new in-memory identity provider.
func NewStaticProvider(name string) *StaticProvider {
	return &StaticProvider{
		name:    name,
		byOwner: make(map[string]map[string]Credential),
	}
}

// Name returns the provider name
func (p *StaticProvider) Name() string {
	return p.name
}

// Mint generates a new random credential for the principal.
func (p *StaticProvider) Mint(ctx context.Context, principal string) (Credential, error) {
	material, err := randomString(40)
	if err != nil {
		return Credential{}, dserrors.ProviderUnavailableError{
			Provider:  p.name,
			Operation: "mint",
			Err:       err,
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.serial++
	cred := Credential{
		ID:        fmt.Sprintf("static-%s-%d", principal, p.serial),
		Material:  material,
		CreatedAt: time.Now(),
		Status:    StatusActive,
	}

	if p.byOwner[principal] == nil {
		p.byOwner[principal] = make(map[string]Credential)
	}
	p.byOwner[principal][cred.ID] = cred
	return cred, nil
}

// ListActive returns active credentials for the principal, oldest first,
// without secret material.
func (p *StaticProvider) ListActive(ctx context.Context, principal string) ([]Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var creds []Credential
	for _, cred := range p.byOwner[principal] {
		if cred.Status != StatusActive {
			continue
		}
		cred.Material = ""
		creds = append(creds, cred)
	}
	sort.Slice(creds, func(i, j int) bool {
		if creds[i].CreatedAt.Equal(creds[j].CreatedAt) {
			return creds[i].ID < creds[j].ID
		}
		return creds[i].CreatedAt.Before(creds[j].CreatedAt)
	})
	return creds, nil
}

// Revoke marks the credential revoked. Unknown ids are a no-op.
func (p *StaticProvider) Revoke(ctx context.Context, principal, credentialID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	creds, ok := p.byOwner[principal]
	if !ok {
		return nil
	}
	cred, ok := creds[credentialID]
	if !ok {
		return nil
	}
	cred.Status = StatusRevoked
	cred.Material = ""
	creds[credentialID] = cred
	return nil
}

// Validate always succeeds for the static provider.
func (p *StaticProvider) Validate(ctx context.Context) error {
	return nil
}

func randomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = charset[randomBytes[i]%byte(len(charset))]
	}
	return string(out), nil
}
