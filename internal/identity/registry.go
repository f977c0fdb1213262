package identity

import (
	"fmt"

	"github.com/systmms/keyrot/internal/logging"
)

// Registry manages identity provider creation and registration
type Registry struct {
	factories map[string]Factory
	logger    *logging.Logger
}

// Factory creates an identity provider instance from configuration
type Factory func(name string, config map[string]interface{}, logger *logging.Logger) (Provider, error)

// NewRegistry creates a new identity provider registry with built-in providers
func NewRegistry(logger *logging.Logger) *Registry {
	registry := &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}

	registry.RegisterFactory("aws.iam", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Provider, error) {
		return NewAWSIAMProvider(name, cfg, logger)
	})
	registry.RegisterFactory("static", func(name string, cfg map[string]interface{}, logger *logging.Logger) (Provider, error) {
		return NewStaticProvider(name), nil
	})

	return registry
}

// RegisterFactory registers an identity provider factory for a given type
func (r *Registry) RegisterFactory(providerType string, factory Factory) {
	r.factories[providerType] = factory
}

// Create creates an identity provider instance from configuration
func (r *Registry) Create(name, providerType string, config map[string]interface{}) (Provider, error) {
	factory, exists := r.factories[providerType]
	if !exists {
		return nil, fmt.Errorf("unknown identity provider type: %s", providerType)
	}
	return factory(name, config, r.logger)
}

// Types returns the registered identity provider types.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}
