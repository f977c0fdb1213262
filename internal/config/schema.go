package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/keyrot/internal/errors"
)

// configSchema validates keyrot.yaml structure before field-level parsing.
// The schema catches shape errors (wrong types, unknown probe kinds) with
// positions the yaml parser would report less clearly.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "identityProviders", "secretStores", "principals"],
  "properties": {
    "version": {"type": "integer"},
    "identityProviders": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string"}
        }
      }
    },
    "secretStores": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string"}
        }
      }
    },
    "principals": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["identityProvider", "store", "path"],
        "properties": {
          "identityProvider": {"type": "string"},
          "store": {"type": "string"},
          "path": {"type": "string"},
          "schedule": {"type": "string"},
          "maxActive": {"type": "integer", "minimum": 0},
          "gracePeriod": {"type": "string"},
          "verify": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["type"],
              "properties": {
                "type": {"type": "string", "enum": ["sql"]},
                "driver": {"type": "string", "enum": ["postgres", "mysql"]},
                "dsn": {"type": "string"}
              }
            }
          }
        }
      }
    },
    "defaults": {
      "type": "object",
      "properties": {
        "retryBudget": {"type": "integer", "minimum": 1},
        "concurrency": {"type": "integer", "minimum": 1},
        "backoff": {
          "type": "object",
          "properties": {
            "initial": {"type": "string"},
            "max": {"type": "string"},
            "factor": {"type": "number"}
          }
        }
      }
    }
  }
}`

// ValidateSchema checks raw keyrot.yaml bytes against the configuration schema.
func ValidateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to validate configuration: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return dserrors.ConfigError{
			Message:    fmt.Sprintf("configuration does not match the expected structure: %s", strings.Join(problems, "; ")),
			Suggestion: "Compare your keyrot.yaml against the documented structure",
		}
	}

	return nil
}
