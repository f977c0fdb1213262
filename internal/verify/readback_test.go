package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/secretstores"
	"github.com/systmms/keyrot/tests/fakes"
)

func TestReadbackProbeMatch(t *testing.T) {
	store := fakes.NewFakeStore()
	store.SetCurrent("prod/app", secretstores.Payload{
		Principal:    "app",
		CredentialID: "cred-1",
		Material:     "m",
	})

	probe := NewReadbackProbe(store, "prod/app")
	assert.Equal(t, "readback", probe.Name())
	assert.NoError(t, probe.Verify(context.Background(), "app", "cred-1", "m"))
}

func TestReadbackProbeMismatch(t *testing.T) {
	store := fakes.NewFakeStore()
	store.SetCurrent("prod/app", secretstores.Payload{
		Principal:    "app",
		CredentialID: "cred-stale",
		Material:     "m",
	})

	probe := NewReadbackProbe(store, "prod/app")
	err := probe.Verify(context.Background(), "app", "cred-1", "m")
	require.Error(t, err)

	var vm dserrors.VerificationMismatchError
	require.ErrorAs(t, err, &vm)
	assert.Equal(t, "cred-1", vm.Expected)
	assert.Equal(t, "cred-stale", vm.Got)
}

func TestReadbackProbeMissingSecret(t *testing.T) {
	probe := NewReadbackProbe(fakes.NewFakeStore(), "prod/missing")
	err := probe.Verify(context.Background(), "app", "cred-1", "m")
	require.Error(t, err)
	assert.True(t, dserrors.IsNotFound(err))
}
