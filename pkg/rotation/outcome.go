package rotation

import (
	"time"
)

// Outcome classifies how a rotation attempt ended.
type Outcome string

const (
	// OutcomeRotated means the new credential is live and all old
	// credentials were retired.
	OutcomeRotated Outcome = "rotated"

	// OutcomeRetirePending means the new credential is live but one or more
	// old credentials could not be retired yet. Consumers are unaffected;
	// the reconciler finishes retirement later.
	OutcomeRetirePending Outcome = "rotated_retire_pending"

	// OutcomeRejected means another rotation for the same principal was
	// already in flight. Nothing was changed.
	OutcomeRejected Outcome = "rejected"

	// OutcomeFailed means the rotation gave up before the new credential
	// was verified. The previously published credential is still live.
	OutcomeFailed Outcome = "failed"

	// OutcomeDryRun means the plan was logged without changing anything.
	OutcomeDryRun Outcome = "dry_run"
)

// Result describes a finished rotation attempt for one principal.
type Result struct {
	Principal string
	Outcome   Outcome

	// Phase is the furthest phase reached, useful when Outcome is failed.
	Phase string

	// NewCredentialID is the minted credential, when one became live.
	NewCredentialID string

	// RetiredCredentialIDs lists old credentials revoked during this attempt.
	RetiredCredentialIDs []string

	// PendingRetireIDs lists old credentials still awaiting revocation.
	PendingRetireIDs []string

	// StoreVersion is the store-native version id of the published secret.
	StoreVersion string

	Duration time.Duration

	// Err is the terminal error for rejected and failed outcomes.
	Err error
}

// Succeeded reports whether consumers now fetch the new credential.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeRotated || r.Outcome == OutcomeRetirePending
}
