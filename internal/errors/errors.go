package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ProviderUnavailableError indicates a mint or revoke call to the identity
// provider failed for transient reasons. Retryable with backoff.
type ProviderUnavailableError struct {
	Provider  string
	Operation string
	Err       error
}

func (e ProviderUnavailableError) Error() string {
	return fmt.Sprintf("identity provider %s unavailable during %s: %v", e.Provider, e.Operation, e.Err)
}

func (e ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// StoreUnavailableError indicates a publish or read against the secret store
// failed for transient reasons. Retryable with backoff; the coordinator must
// never proceed to retirement while the store is unavailable.
type StoreUnavailableError struct {
	Store     string
	Operation string
	Err       error
}

func (e StoreUnavailableError) Error() string {
	return fmt.Sprintf("secret store %s unavailable during %s: %v", e.Store, e.Operation, e.Err)
}

func (e StoreUnavailableError) Unwrap() error {
	return e.Err
}

// VerificationMismatchError indicates the store's read-back did not match what
// was just published. Treated exactly like StoreUnavailableError by callers.
type VerificationMismatchError struct {
	Store    string
	Expected string
	Got      string
}

func (e VerificationMismatchError) Error() string {
	return fmt.Sprintf("verification mismatch in store %s: published credential %s but read back %s",
		e.Store, e.Expected, e.Got)
}

// ConcurrentRotationError indicates a rotation lease for the principal is held
// by another in-flight rotation.
type ConcurrentRotationError struct {
	Principal string
}

func (e ConcurrentRotationError) Error() string {
	return fmt.Sprintf("rotation already in progress for principal %s", e.Principal)
}

// CleanupError indicates a best-effort revoke of an abandoned mint failed.
// Not fatal; the orphan is left for periodic reconciliation.
type CleanupError struct {
	Principal    string
	CredentialID string
	Err          error
}

func (e CleanupError) Error() string {
	return fmt.Sprintf("failed to clean up orphaned credential %s for principal %s: %v",
		e.CredentialID, e.Principal, e.Err)
}

func (e CleanupError) Unwrap() error {
	return e.Err
}

// NotFoundError indicates a principal, credential, or published secret does not exist.
type NotFoundError struct {
	Kind string // "principal", "credential", "secret"
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pu ProviderUnavailableError
	var su StoreUnavailableError
	var vm VerificationMismatchError
	if errors.As(err, &pu) || errors.As(err, &su) || errors.As(err, &vm) {
		return true
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"connection refused",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(strings.ToLower(errStr), pattern) {
			return true
		}
	}

	return false
}
