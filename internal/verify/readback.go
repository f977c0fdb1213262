package verify

import (
	"context"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/secretstores"
)

// ReadbackProbe verifies a publish by reading the store's current version and
// comparing credential ids. A store that serves a different credential than
// the one just published has either lost the write or been written over.
type ReadbackProbe struct {
	store secretstores.Store
	path  string
}

// NewReadbackProbe creates a read-back probe against a store path.
func NewReadbackProbe(store secretstores.Store, path string) *ReadbackProbe {
	return &ReadbackProbe{store: store, path: path}
}

// Name identifies the probe kind
func (p *ReadbackProbe) Name() string {
	return "readback"
}

// Verify reads the current version at the path and compares credential ids.
func (p *ReadbackProbe) Verify(ctx context.Context, principal, credentialID, material string) error {
	current, err := p.store.ReadCurrent(ctx, p.path)
	if err != nil {
		return err
	}

	if current.CredentialID != credentialID {
		return dserrors.VerificationMismatchError{
			Store:    p.store.Name(),
			Expected: credentialID,
			Got:      current.CredentialID,
		}
	}

	return nil
}
