package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProviderLifecycle(t *testing.T) {
	p := NewStaticProvider("static")
	ctx := context.Background()

	cred1, err := p.Mint(ctx, "app")
	require.NoError(t, err)
	assert.NotEmpty(t, cred1.ID)
	assert.Len(t, cred1.Material, 40)
	assert.Equal(t, StatusActive, cred1.Status)

	cred2, err := p.Mint(ctx, "app")
	require.NoError(t, err)
	assert.NotEqual(t, cred1.ID, cred2.ID)
	assert.NotEqual(t, cred1.Material, cred2.Material)

	active, err := p.ListActive(ctx, "app")
	require.NoError(t, err)
	require.Len(t, active, 2)
	// Oldest first, material stripped.
	assert.Equal(t, cred1.ID, active[0].ID)
	assert.Equal(t, cred2.ID, active[1].ID)
	for _, cred := range active {
		assert.Empty(t, cred.Material)
	}

	require.NoError(t, p.Revoke(ctx, "app", cred1.ID))
	active, err = p.ListActive(ctx, "app")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, cred2.ID, active[0].ID)
}

func TestStaticProviderRevokeUnknownIsNoop(t *testing.T) {
	p := NewStaticProvider("static")
	ctx := context.Background()

	assert.NoError(t, p.Revoke(ctx, "app", "no-such-id"))
	assert.NoError(t, p.Revoke(ctx, "no-such-principal", "no-such-id"))

	// Revoking the same id twice converges.
	cred, err := p.Mint(ctx, "app")
	require.NoError(t, err)
	require.NoError(t, p.Revoke(ctx, "app", cred.ID))
	assert.NoError(t, p.Revoke(ctx, "app", cred.ID))
}

func TestStaticProviderIsolatesPrincipals(t *testing.T) {
	p := NewStaticProvider("static")
	ctx := context.Background()

	_, err := p.Mint(ctx, "alpha")
	require.NoError(t, err)

	active, err := p.ListActive(ctx, "beta")
	require.NoError(t, err)
	assert.Empty(t, active)
}
