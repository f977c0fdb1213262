// Package verify implements post-publish verification probes.
//
// A rotation only retires old credentials once verification proves the new
// credential is the one consumers will fetch. The read-back probe is always
// run; an optional SQL probe additionally proves the new credential works
// against a live database.
package verify

import (
	"context"
)

// Probe checks that a freshly published credential is live and usable.
type Probe interface {
	// Name identifies the probe kind, e.g. "readback" or "sql".
	Name() string

	// Verify returns nil when the credential identified by credentialID,
	// with the given material, is confirmed live. A non-nil error means the
	// rotation must not proceed to retirement.
	Verify(ctx context.Context, principal, credentialID, material string) error
}
