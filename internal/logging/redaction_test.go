package logging_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/keyrot/internal/logging"
)

func TestSecretRedactionInLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false, true)

	material := "wJalrXUtnFEMI/K7MDENG/bPxRfiCY"
	logger.Info("Published credential with material %s", logging.Secret(material))

	output := buf.String()
	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, material)
	assert.Contains(t, output, "Published credential")
}

func TestSecretRedactionInGoStringFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, true, true)

	material := "super-secret-token"
	logger.Debug("payload: %#v", logging.Secret(material))

	output := buf.String()
	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, material)
}

func TestDebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false, true)

	logger.Debug("internal detail")
	assert.Empty(t, buf.String())

	verbose := logging.NewWithWriter(&buf, true, true)
	verbose.Debug("internal detail")
	assert.Contains(t, buf.String(), "internal detail")
}

func TestRedactReplacesKnownSecrets(t *testing.T) {
	out := logging.Redact("dsn is postgres://app:hunter22@db/app", []string{"hunter22"})
	assert.Equal(t, "dsn is postgres://app:[REDACTED]@db/app", out)

	// Trivially short values stay, to avoid mangling unrelated text.
	out = logging.Redact("code ab in message", []string{"ab"})
	assert.Equal(t, "code ab in message", out)
}
