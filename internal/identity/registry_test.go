package identity

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
	assert.Equal(t, []string{"aws.iam", "static"}, types)
}

func TestRegistryCreateStatic(t *testing.T) {
	registry := NewRegistry(logging.New(false, true))

	provider, err := registry.Create("dev", "static", nil)
	require.NoError(t, err)
	assert.Equal(t, "dev", provider.Name())
}

func TestRegistryCreateUnknownType(t *testing.T) {
	registry := NewRegistry(logging.New(false, true))

	_, err := registry.Create("p", "ldap", map[string]interface{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ldap")
}

func TestRegistryCustomFactory(t *testing.T) {
	registry := NewRegistry(logging.New(false, true))
	registry.RegisterFactory("memory", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Provider, error) {
		return NewStaticProvider(name), nil
	})

	provider, err := registry.Create("m", "memory", nil)
	require.NoError(t, err)
	assert.Equal(t, "m", provider.Name())
}
