// Package config loads and validates the keyrot.yaml configuration file.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the keyrot.yaml structure
type Definition struct {
	Version           int                               `yaml:"version"`
	IdentityProviders map[string]IdentityProviderConfig `yaml:"identityProviders"`
	SecretStores      map[string]SecretStoreConfig      `yaml:"secretStores"`
	Principals        map[string]PrincipalConfig        `yaml:"principals"`
	Defaults          DefaultsConfig                    `yaml:"defaults,omitempty"`
}

// IdentityProviderConfig holds identity provider-specific configuration
type IdentityProviderConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:",inline"`
}

// SecretStoreConfig holds secret store-specific configuration
type SecretStoreConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:",inline"`
}

// PrincipalConfig binds a principal to its provider, store path, and
// rotation policy.
type PrincipalConfig struct {
	IdentityProvider string        `yaml:"identityProvider"`
	Store            string        `yaml:"store"`
	Path             string        `yaml:"path"`
	Schedule         string        `yaml:"schedule,omitempty"` // cron expression for serve mode
	MaxActive        int           `yaml:"maxActive,omitempty"`
	GracePeriod      Duration      `yaml:"gracePeriod,omitempty"`
	Verify           []ProbeConfig `yaml:"verify,omitempty"`
}

// ProbeConfig configures an extra verification probe
type ProbeConfig struct {
	Type   string `yaml:"type"`           // "sql"
	Driver string `yaml:"driver,omitempty"` // "postgres" or "mysql"
	DSN    string `yaml:"dsn,omitempty"`    // template with {principal} and {material}
}

// DefaultsConfig holds cross-principal defaults
type DefaultsConfig struct {
	RetryBudget int           `yaml:"retryBudget,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	Backoff     BackoffConfig `yaml:"backoff,omitempty"`
}

// BackoffConfig holds retry pacing configuration
type BackoffConfig struct {
	Initial Duration `yaml:"initial,omitempty"`
	Max     Duration `yaml:"max,omitempty"`
	Factor  float64  `yaml:"factor,omitempty"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the keyrot.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a keyrot.yaml or pass --config with the file's location",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	if err := ValidateSchema(data); err != nil {
		return err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 1 {
		return dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 1' at the top of your keyrot.yaml file",
		}
	}

	if err := validateReferences(&def); err != nil {
		return err
	}

	c.Definition = &def
	return nil
}

// validateReferences checks that every principal names a configured provider
// and store.
func validateReferences(def *Definition) error {
	for name, principal := range def.Principals {
		if _, ok := def.IdentityProviders[principal.IdentityProvider]; !ok {
			return dserrors.ConfigError{
				Field:      fmt.Sprintf("principals.%s.identityProvider", name),
				Value:      principal.IdentityProvider,
				Message:    "identity provider not found in configuration",
				Suggestion: availableSuggestion("identityProviders", keysOf(def.IdentityProviders)),
			}
		}
		if _, ok := def.SecretStores[principal.Store]; !ok {
			return dserrors.ConfigError{
				Field:      fmt.Sprintf("principals.%s.store", name),
				Value:      principal.Store,
				Message:    "secret store not found in configuration",
				Suggestion: availableSuggestion("secretStores", keysOf(def.SecretStores)),
			}
		}
		if principal.Path == "" {
			return dserrors.ConfigError{
				Field:      fmt.Sprintf("principals.%s.path", name),
				Message:    "path is required",
				Suggestion: "Set the store path the rotated credential publishes to",
			}
		}
	}
	return nil
}

// GetPrincipal returns the configuration for a specific principal
func (c *Config) GetPrincipal(name string) (PrincipalConfig, error) {
	if c.Definition == nil {
		return PrincipalConfig{}, dserrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	principal, ok := c.Definition.Principals[name]
	if !ok {
		suggestion := "Add the principal to the 'principals:' section of your keyrot.yaml"
		if available := keysOf(c.Definition.Principals); len(available) > 0 {
			suggestion = fmt.Sprintf("Available principals: %s. %s", strings.Join(available, ", "), suggestion)
		}
		return PrincipalConfig{}, dserrors.ConfigError{
			Field:      "principal",
			Value:      name,
			Message:    "principal not found in configuration",
			Suggestion: suggestion,
		}
	}

	return principal, nil
}

// PrincipalNames returns the configured principals, sorted.
func (c *Config) PrincipalNames() []string {
	if c.Definition == nil {
		return nil
	}
	return keysOf(c.Definition.Principals)
}

// RetryBudget returns the configured retry budget, or 0 if unset.
func (c *Config) RetryBudget() int {
	if c.Definition == nil {
		return 0
	}
	return c.Definition.Defaults.RetryBudget
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func availableSuggestion(section string, available []string) string {
	if len(available) == 0 {
		return fmt.Sprintf("Add an entry to the '%s:' section of your keyrot.yaml", section)
	}
	return fmt.Sprintf("Available entries: %s", strings.Join(available, ", "))
}
