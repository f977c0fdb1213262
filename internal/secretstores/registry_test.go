package secretstores

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyrot/internal/logging"
)

func TestRegistryBuiltinTypes(t *testing.T) {
	registry := NewRegistry(logging.New(false, true))

	types := registry.Types()
	sort.Strings(types)
	assert.Equal(t, []string{
		"aws.secretsmanager",
		"aws.ssm",
		"azure.keyvault",
		"gcp.secretmanager",
		"keyring",
		"vault",
	}, types)
}

func TestRegistryCreateUnknownType(t *testing.T) {
	registry := NewRegistry(logging.New(false, true))

	_, err := registry.Create("s", "s3", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3")
}

func TestRegistryCreateKeyring(t *testing.T) {
	registry := NewRegistry(logging.New(false, true))

	store, err := registry.Create("local", "keyring", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "local", store.Name())
}

func TestRegistryCreateVaultPropagatesConfigError(t *testing.T) {
	registry := NewRegistry(logging.New(false, true))

	// Vault requires an address.
	_, err := registry.Create("v", "vault", map[string]interface{}{})
	assert.Error(t, err)
}

func TestRegistryCustomFactory(t *testing.T) {
	registry := NewRegistry(logging.New(false, true))
	registry.RegisterFactory("memory", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Store, error) {
		return &KeyringStore{name: name, service: "test"}, nil
	})

	store, err := registry.Create("m", "memory", nil)
	require.NoError(t, err)
	assert.Equal(t, "m", store.Name())
}
