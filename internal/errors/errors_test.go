package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		ProviderUnavailableError{Provider: "aws", Operation: "mint", Err: stderrors.New("500")},
		StoreUnavailableError{Store: "vault", Operation: "publish", Err: stderrors.New("503")},
		VerificationMismatchError{Store: "vault", Expected: "a", Got: "b"},
		stderrors.New("dial tcp: connection refused"),
		stderrors.New("Throttling: Rate exceeded"),
		fmt.Errorf("wrapped: %w", StoreUnavailableError{Store: "s", Operation: "read", Err: stderrors.New("x")}),
	}
	for _, err := range retryable {
		assert.True(t, IsRetryable(err), "expected retryable: %v", err)
	}

	permanent := []error{
		nil,
		stderrors.New("access denied"),
		ConcurrentRotationError{Principal: "app"},
		NotFoundError{Kind: "principal", Name: "ghost"},
		ConfigError{Field: "path", Message: "required"},
	}
	for _, err := range permanent {
		assert.False(t, IsRetryable(err), "expected not retryable: %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFoundError{Kind: "secret", Name: "apps/ci"}))
	assert.True(t, IsNotFound(fmt.Errorf("read failed: %w", NotFoundError{Kind: "secret", Name: "x"})))
	assert.False(t, IsNotFound(stderrors.New("secret not found"))) // plain text is not enough
	assert.False(t, IsNotFound(nil))
}

func TestCleanupErrorUnwraps(t *testing.T) {
	cause := stderrors.New("api down")
	err := CleanupError{Principal: "app", CredentialID: "AKIA1", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "AKIA1")
	assert.Contains(t, err.Error(), "app")
}

func TestUserErrorFormatting(t *testing.T) {
	err := UserError{
		Message:    "No principals specified",
		Suggestion: "Pass --all to rotate everything",
	}
	msg := err.Error()
	assert.Contains(t, msg, "No principals specified")
	assert.Contains(t, msg, "💡")
	assert.Contains(t, msg, "Pass --all")
}

func TestConfigErrorFormatting(t *testing.T) {
	err := ConfigError{
		Field:      "principals.app.store",
		Value:      "missing",
		Message:    "secret store not found in configuration",
		Suggestion: "Available entries: prod-vault",
	}
	msg := err.Error()
	assert.Contains(t, msg, "principals.app.store")
	assert.Contains(t, msg, "missing")
	assert.Contains(t, msg, "prod-vault")
}
