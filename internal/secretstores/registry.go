package secretstores

import (
	"fmt"

	"github.com/systmms/keyrot/internal/logging"
)

// Registry manages secret store creation and registration
type Registry struct {
	factories map[string]Factory
	logger    *logging.Logger
}

// Factory creates a secret store instance from configuration
type Factory func(name string, config map[string]interface{}, logger *logging.Logger) (Store, error)

// NewRegistry creates a new secret store registry with built-in backends
func NewRegistry(logger *logging.Logger) *Registry {
	registry := &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}

	registry.RegisterFactory("aws.secretsmanager", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Store, error) {
		return NewAWSSecretsManagerStore(name, cfg, logger)
	})
	registry.RegisterFactory("aws.ssm", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Store, error) {
		return NewAWSSSMStore(name, cfg, logger)
	})
	registry.RegisterFactory("gcp.secretmanager", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Store, error) {
		return NewGCPSecretManagerStore(name, cfg, logger)
	})
	registry.RegisterFactory("azure.keyvault", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Store, error) {
		return NewAzureKeyVaultStore(name, cfg, logger)
	})
	registry.RegisterFactory("vault", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Store, error) {
		return NewVaultStore(name, cfg, logger)
	})
	registry.RegisterFactory("keyring", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Store, error) {
		return NewKeyringStore(name, cfg, logger)
	})

	return registry
}

// RegisterFactory registers a secret store factory for a given type
func (r *Registry) RegisterFactory(storeType string, factory Factory) {
	r.factories[storeType] = factory
}

// Create creates a secret store instance from configuration
func (r *Registry) Create(name, storeType string, config map[string]interface{}) (Store, error) {
	factory, exists := r.factories[storeType]
	if !exists {
		return nil, fmt.Errorf("unknown secret store type: %s", storeType)
	}
	return factory(name, config, r.logger)
}

// Types returns the registered secret store types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}
