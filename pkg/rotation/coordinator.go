package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/identity"
	"github.com/systmms/keyrot/internal/logging"
	"github.com/systmms/keyrot/internal/rotation/health"
	rotationstorage "github.com/systmms/keyrot/internal/rotation/storage"
	"github.com/systmms/keyrot/internal/secretstores"
	"github.com/systmms/keyrot/internal/secure"
	"github.com/systmms/keyrot/internal/verify"
)

// DefaultRetryBudget is the number of publish attempts before a rotation
// gives up and cleans up the minted credential.
const DefaultRetryBudget = 5

// Target binds a principal to its identity provider, secret store path, and
// verification probes.
type Target struct {
	// Principal is the identity whose credential rotates, e.g. an IAM user.
	Principal string

	// Provider mints and revokes the principal's credentials.
	Provider identity.Provider

	// Store is where consumers fetch the live credential.
	Store secretstores.Store

	// Path addresses the secret within the store.
	Path string

	// Probes run after the read-back check. Optional.
	Probes []verify.Probe

	// MaxActive caps concurrent provider-side credentials (AWS IAM allows
	// two access keys per user). 0 means no cap.
	MaxActive int

	// GracePeriod delays retirement of old credentials after a verified
	// publish, giving slow consumers time to re-fetch.
	GracePeriod time.Duration
}

// Coordinator drives the rotation protocol: mint, publish, verify, retire,
// in that order, with durable phase markers between steps.
//
// The ordering is what makes rotation safe. A credential is minted before
// anything is retired, published before it is relied on, and verified before
// anything old is revoked. At every intermediate point at least one valid
// credential remains published.
type Coordinator struct {
	records rotationstorage.RecordStore
	leases  *LeaseRegistry
	metrics *health.RotationMetrics
	logger  *logging.Logger

	retryBudget int
	backoff     Backoff
	dryRun      bool
	force       bool
	now         func() time.Time
}

// Option is a functional option for configuring the coordinator
type Option func(*Coordinator)

// WithRetryBudget sets the number of publish attempts per rotation.
func WithRetryBudget(budget int) Option {
	return func(c *Coordinator) {
		if budget > 0 {
			c.retryBudget = budget
		}
	}
}

// WithBackoff sets the retry pacing.
func WithBackoff(b Backoff) Option {
	return func(c *Coordinator) {
		c.backoff = b
	}
}

// WithLeaseRegistry shares a lease registry across coordinators.
func WithLeaseRegistry(leases *LeaseRegistry) Option {
	return func(c *Coordinator) {
		c.leases = leases
	}
}

// WithDryRun logs the rotation plan without minting, publishing, or revoking.
func WithDryRun(dryRun bool) Option {
	return func(c *Coordinator) {
		c.dryRun = dryRun
	}
}

// WithForce retires old credentials immediately, ignoring the grace period.
func WithForce(force bool) Option {
	return func(c *Coordinator) {
		c.force = force
	}
}

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a rotation coordinator backed by the given record
// store.
func NewCoordinator(records rotationstorage.RecordStore, logger *logging.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		records:     records,
		leases:      NewLeaseRegistry(),
		metrics:     health.NewRotationMetrics(),
		logger:      logger,
		retryBudget: DefaultRetryBudget,
		backoff:     DefaultBackoff(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rotate runs one rotation attempt for the target's principal. It acquires
// the principal's lease, resumes any unfinished rotation found on disk, and
// otherwise performs a fresh mint-publish-verify-retire cycle.
func (c *Coordinator) Rotate(ctx context.Context, target Target) Result {
	start := c.now()

	release, err := c.leases.Acquire(target.Principal)
	if err != nil {
		c.logger.Warn("Rotation rejected for %s: already in progress", target.Principal)
		return c.finish(Result{
			Principal: target.Principal,
			Outcome:   OutcomeRejected,
			Duration:  c.now().Sub(start),
			Err:       err,
		}, "rotate")
	}
	defer release()

	c.metrics.RecordRotationStarted(target.Principal, target.Provider.Name())

	record, err := c.records.GetRecord(target.Principal)
	if err != nil {
		return c.finish(Result{
			Principal: target.Principal,
			Outcome:   OutcomeFailed,
			Phase:     "load",
			Duration:  c.now().Sub(start),
			Err:       err,
		}, "rotate")
	}

	if record != nil && c.needsResume(record) {
		c.logger.Info("Found unfinished rotation for %s in phase %s, resuming", target.Principal, record.Phase)
		return c.finish(c.resume(ctx, target, record, start), "resume")
	}

	return c.finish(c.freshRotation(ctx, target, start), "rotate")
}

// needsResume reports whether a stored record still has work attached.
func (c *Coordinator) needsResume(record *rotationstorage.RotationRecord) bool {
	if !record.Phase.Terminal() {
		return true
	}
	// An aborted record that still names a credential is an orphan whose
	// cleanup failed.
	return record.Phase == rotationstorage.PhaseAborted && record.NewCredentialID != ""
}

// freshRotation performs a complete rotation cycle from scratch.
func (c *Coordinator) freshRotation(ctx context.Context, target Target, start time.Time) Result {
	fail := func(phase string, err error) Result {
		c.metrics.RecordPhaseFailure(target.Principal, phase)
		return Result{
			Principal: target.Principal,
			Outcome:   OutcomeFailed,
			Phase:     phase,
			Duration:  c.now().Sub(start),
			Err:       err,
		}
	}

	// Enumerate existing credentials and the store's current credential
	// before touching anything. A store outage aborts here, before a mint
	// could create an orphan.
	active, err := target.Provider.ListActive(ctx, target.Principal)
	if err != nil {
		return fail("list", err)
	}

	currentID := ""
	var previous *secretstores.Payload
	current, err := target.Store.ReadCurrent(ctx, target.Path)
	switch {
	case err == nil:
		currentID = current.CredentialID
		if currentID != "" {
			// Kept so an abort can put the working credential back if the
			// failed replacement already overwrote it in the store.
			previous = &secretstores.Payload{
				Principal:    target.Principal,
				CredentialID: currentID,
				Material:     current.Material,
			}
		}
	case dserrors.IsNotFound(err):
		// First rotation for this path.
	default:
		return fail("read", err)
	}

	if len(active) == 0 && currentID == "" {
		c.logger.Info("No existing credentials for %s, bootstrapping", target.Principal)
	}

	if c.dryRun {
		c.logger.Info("Dry run for %s: would mint via %s, publish to %s/%s, retire %d old credential(s)",
			target.Principal, target.Provider.Name(), target.Store.Name(), target.Path, len(active))
		return Result{
			Principal: target.Principal,
			Outcome:   OutcomeDryRun,
			Duration:  c.now().Sub(start),
		}
	}

	// Respect the provider-side credential cap. Old credentials that are
	// not the store's current one are safe to retire early; the current
	// one must survive until the replacement is verified.
	if target.MaxActive > 0 && len(active) >= target.MaxActive {
		active, err = c.makeRoom(ctx, target, active, currentID)
		if err != nil {
			return fail("capacity", err)
		}
	}

	cred, err := c.mint(ctx, target)
	if err != nil {
		return fail("mint", err)
	}

	material := secure.NewMaterial(cred.Material)
	defer material.Destroy()
	cred.Material = ""

	record := &rotationstorage.RotationRecord{
		Principal:       target.Principal,
		Provider:        target.Provider.Name(),
		Store:           target.Store.Name(),
		Path:            target.Path,
		Phase:           rotationstorage.PhaseMinted,
		NewCredentialID: cred.ID,
		StartedAt:       start,
	}
	if err := c.records.SaveRecord(record); err != nil {
		// Without a durable marker the mint would be untracked; revoke it
		// rather than leave an invisible orphan.
		c.cleanupOrphan(ctx, target, cred.ID)
		return fail("record", err)
	}

	c.logger.Info("Minted credential %s for %s", cred.ID, target.Principal)

	verified, lastErr := c.publishAndVerify(ctx, target, record, material)
	if !verified {
		return c.abort(ctx, target, record, start, lastErr, previous)
	}

	// All provider credentials that predate the new one are retirement
	// candidates, whether or not the store ever served them.
	var pending []string
	for _, old := range active {
		if old.ID != cred.ID {
			pending = append(pending, old.ID)
		}
	}

	return c.completeRetirement(ctx, target, record, pending, start)
}

// resume continues an unfinished rotation from its durable record.
func (c *Coordinator) resume(ctx context.Context, target Target, record *rotationstorage.RotationRecord, start time.Time) Result {
	fail := func(phase string, err error) Result {
		c.metrics.RecordPhaseFailure(target.Principal, phase)
		return Result{
			Principal: target.Principal,
			Outcome:   OutcomeFailed,
			Phase:     phase,
			Duration:  c.now().Sub(start),
			Err:       err,
		}
	}

	switch record.Phase {
	case rotationstorage.PhaseMinted, rotationstorage.PhasePublished:
		// The crash window spans publish: the store may or may not be
		// serving the minted credential. The store is the authority.
		current, err := target.Store.ReadCurrent(ctx, target.Path)
		if err != nil && !dserrors.IsNotFound(err) {
			return fail("read", err)
		}

		if err == nil && current.CredentialID == record.NewCredentialID {
			// Publish landed before the crash. Re-verify with the
			// material recovered from the store and finish the cycle.
			c.logger.Info("Publish for %s already landed, finishing rotation", target.Principal)

			record.Phase = rotationstorage.PhasePublished
			record.StoreVersion = current.Version
			if err := c.records.SaveRecord(record); err != nil {
				return fail("record", err)
			}

			// No pre-rotation payload survives the crash; if the probes
			// reject the landed credential it stays published.
			if err := c.runProbes(ctx, target, record.NewCredentialID, current.Material); err != nil {
				return c.abort(ctx, target, record, start, err, nil)
			}

			pending, err := c.pendingFromProvider(ctx, target, record.NewCredentialID)
			if err != nil {
				return fail("list", err)
			}
			return c.completeRetirement(ctx, target, record, pending, start)
		}

		// Publish never landed. The minted credential's material is gone
		// with the crashed process, so it cannot be republished: revoke
		// the orphan and run a fresh cycle.
		c.logger.Info("Publish for %s never landed, cleaning up orphan %s", target.Principal, record.NewCredentialID)
		if err := c.cleanupOrphan(ctx, target, record.NewCredentialID); err != nil {
			record.Phase = rotationstorage.PhaseAborted
			record.LastError = err.Error()
			_ = c.records.SaveRecord(record)
			return fail("cleanup", err)
		}

		record.Phase = rotationstorage.PhaseAborted
		record.NewCredentialID = ""
		if err := c.records.SaveRecord(record); err != nil {
			return fail("record", err)
		}
		return c.freshRotation(ctx, target, start)

	case rotationstorage.PhaseVerified, rotationstorage.PhaseRetirePending:
		pending := record.PendingRetire
		if len(pending) == 0 {
			var err error
			pending, err = c.pendingFromProvider(ctx, target, record.NewCredentialID)
			if err != nil {
				return fail("list", err)
			}
		}
		return c.completeRetirement(ctx, target, record, pending, start)

	case rotationstorage.PhaseAborted:
		// Terminal, but an orphan is still awaiting revocation.
		current, err := target.Store.ReadCurrent(ctx, target.Path)
		if err != nil && !dserrors.IsNotFound(err) {
			return fail("read", err)
		}
		if err == nil && current.CredentialID == record.NewCredentialID {
			// The aborted credential is still what consumers fetch, so it
			// cannot be revoked. Only a fresh publish displaces it; the
			// orphan then falls out as a retirement candidate.
			return c.freshRotation(ctx, target, start)
		}
		if err := c.cleanupOrphan(ctx, target, record.NewCredentialID); err != nil {
			return fail("cleanup", err)
		}
		record.NewCredentialID = ""
		if err := c.records.SaveRecord(record); err != nil {
			return fail("record", err)
		}
		return c.freshRotation(ctx, target, start)

	default:
		return fail("resume", fmt.Errorf("unknown rotation phase %q for %s", record.Phase, target.Principal))
	}
}

// mint creates the replacement credential, retrying transient failures.
func (c *Coordinator) mint(ctx context.Context, target Target) (identity.Credential, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryBudget; attempt++ {
		if attempt > 0 {
			if err := c.backoff.Wait(ctx, attempt-1); err != nil {
				return identity.Credential{}, err
			}
		}
		cred, err := target.Provider.Mint(ctx, target.Principal)
		if err == nil {
			return cred, nil
		}
		lastErr = err
		if !dserrors.IsRetryable(err) {
			break
		}
		c.logger.Warn("Mint attempt %d for %s failed: %v", attempt+1, target.Principal, err)
	}
	return identity.Credential{}, lastErr
}

// publishAndVerify pushes the minted credential to the store and confirms it
// became the current version. Publish and verify share the retry budget: a
// verification mismatch is treated exactly like a failed publish, and the
// retry reuses the already-minted credential rather than minting again.
func (c *Coordinator) publishAndVerify(ctx context.Context, target Target, record *rotationstorage.RotationRecord, material *secure.Material) (bool, error) {
	secretMaterial, err := material.Reveal()
	if err != nil {
		return false, fmt.Errorf("failed to access credential material: %w", err)
	}

	payload := secretstores.Payload{
		Principal:    target.Principal,
		CredentialID: record.NewCredentialID,
		Material:     secretMaterial,
	}

	var lastErr error
	for attempt := 0; attempt < c.retryBudget; attempt++ {
		if attempt > 0 {
			if err := c.backoff.Wait(ctx, attempt-1); err != nil {
				return false, err
			}
		}

		version, err := target.Store.Publish(ctx, target.Path, payload)
		if err != nil {
			lastErr = err
			c.metrics.RecordPhaseFailure(target.Principal, "publish")
			c.logger.Warn("Publish attempt %d for %s failed: %v", attempt+1, target.Principal, err)
			if !dserrors.IsRetryable(err) {
				break
			}
			continue
		}

		record.Phase = rotationstorage.PhasePublished
		record.StoreVersion = version.Version
		if err := c.records.SaveRecord(record); err != nil {
			return false, err
		}

		if err := c.verifyPublish(ctx, target, record.NewCredentialID, secretMaterial); err != nil {
			lastErr = err
			c.metrics.RecordPhaseFailure(target.Principal, "verify")
			c.logger.Warn("Verification attempt %d for %s failed: %v", attempt+1, target.Principal, err)
			continue
		}

		record.Phase = rotationstorage.PhaseVerified
		if err := c.records.SaveRecord(record); err != nil {
			return false, err
		}
		c.logger.Info("Published and verified credential %s for %s (store version %s)",
			record.NewCredentialID, target.Principal, record.StoreVersion)
		return true, nil
	}

	return false, lastErr
}

// verifyPublish runs the read-back check and any configured probes.
func (c *Coordinator) verifyPublish(ctx context.Context, target Target, credentialID, material string) error {
	verifyStart := c.now()

	current, err := target.Store.ReadCurrent(ctx, target.Path)
	if err != nil {
		c.metrics.RecordVerify(target.Principal, "readback", false, c.now().Sub(verifyStart).Seconds())
		return err
	}
	if current.CredentialID != credentialID {
		c.metrics.RecordVerify(target.Principal, "readback", false, c.now().Sub(verifyStart).Seconds())
		return dserrors.VerificationMismatchError{
			Store:    target.Store.Name(),
			Expected: credentialID,
			Got:      current.CredentialID,
		}
	}
	c.metrics.RecordVerify(target.Principal, "readback", true, c.now().Sub(verifyStart).Seconds())

	return c.runProbes(ctx, target, credentialID, material)
}

// runProbes runs the target's extra verification probes.
func (c *Coordinator) runProbes(ctx context.Context, target Target, credentialID, material string) error {
	for _, probe := range target.Probes {
		probeStart := c.now()
		err := probe.Verify(ctx, target.Principal, credentialID, material)
		c.metrics.RecordVerify(target.Principal, probe.Name(), err == nil, c.now().Sub(probeStart).Seconds())
		if err != nil {
			return err
		}
	}
	return nil
}

// completeRetirement retires old credentials after a verified publish and
// writes the terminal record. Runs detached from ctx cancellation: once the
// new credential is live, a half-done retirement is worse than a slow one.
func (c *Coordinator) completeRetirement(ctx context.Context, target Target, record *rotationstorage.RotationRecord, pending []string, start time.Time) Result {
	result := Result{
		Principal:       target.Principal,
		NewCredentialID: record.NewCredentialID,
		StoreVersion:    record.StoreVersion,
	}

	record.PendingRetire = pending

	if len(pending) == 0 {
		record.Phase = rotationstorage.PhaseComplete
		if err := c.records.SaveRecord(record); err != nil {
			c.logger.Warn("Failed to finalize rotation record for %s: %v", target.Principal, err)
		}
		c.metrics.SetRetirePending(target.Principal, false)
		result.Outcome = OutcomeRotated
		result.Phase = string(rotationstorage.PhaseComplete)
		result.Duration = c.now().Sub(start)
		return result
	}

	// Honor the grace period unless forced. The credentials stay valid;
	// the reconciler retires them once the window passes.
	if target.GracePeriod > 0 && !c.force {
		notBefore := c.now().Add(target.GracePeriod)
		if record.RetireNotBefore.IsZero() {
			record.RetireNotBefore = notBefore
		}
		if c.now().Before(record.RetireNotBefore) {
			record.Phase = rotationstorage.PhaseRetirePending
			if err := c.records.SaveRecord(record); err != nil {
				c.logger.Warn("Failed to save rotation record for %s: %v", target.Principal, err)
			}
			c.metrics.SetRetirePending(target.Principal, true)
			c.logger.Info("Deferring retirement of %d credential(s) for %s until %s",
				len(pending), target.Principal, record.RetireNotBefore.Format(time.RFC3339))
			result.Outcome = OutcomeRetirePending
			result.Phase = string(rotationstorage.PhaseRetirePending)
			result.PendingRetireIDs = pending
			result.Duration = c.now().Sub(start)
			return result
		}
	}

	retireCtx := context.WithoutCancel(ctx)
	var remaining []string
	var retireErr error
	for _, id := range pending {
		if err := target.Provider.Revoke(retireCtx, target.Principal, id); err != nil {
			c.logger.Warn("Failed to retire credential %s for %s: %v", id, target.Principal, err)
			c.metrics.RecordPhaseFailure(target.Principal, "retire")
			remaining = append(remaining, id)
			retireErr = err
			continue
		}
		c.logger.Info("Retired credential %s for %s", id, target.Principal)
		result.RetiredCredentialIDs = append(result.RetiredCredentialIDs, id)
	}

	record.PendingRetire = remaining
	if len(remaining) == 0 {
		record.Phase = rotationstorage.PhaseComplete
		result.Outcome = OutcomeRotated
		c.metrics.SetRetirePending(target.Principal, false)
	} else {
		record.Phase = rotationstorage.PhaseRetirePending
		record.LastError = retireErr.Error()
		result.Outcome = OutcomeRetirePending
		result.PendingRetireIDs = remaining
		result.Err = retireErr
		c.metrics.SetRetirePending(target.Principal, true)
	}
	if err := c.records.SaveRecord(record); err != nil {
		c.logger.Warn("Failed to save rotation record for %s: %v", target.Principal, err)
	}

	result.Phase = string(record.Phase)
	result.Duration = c.now().Sub(start)
	return result
}

// abort gives up on a rotation whose new credential never verified. If the
// failed credential already became the store's current version, the previous
// payload is restored before the orphan is revoked; when no restore is
// possible the credential stays active and published, because revoking the
// only credential consumers can fetch would lock them out.
func (c *Coordinator) abort(ctx context.Context, target Target, record *rotationstorage.RotationRecord, start time.Time, cause error, previous *secretstores.Payload) Result {
	record.Phase = rotationstorage.PhaseAborted
	if cause != nil {
		record.LastError = cause.Error()
	}

	current, readErr := target.Store.ReadCurrent(ctx, target.Path)
	if readErr == nil && record.NewCredentialID != "" && current.CredentialID == record.NewCredentialID {
		restored := false
		if previous != nil {
			if _, err := target.Store.Publish(ctx, target.Path, *previous); err == nil {
				c.logger.Info("Restored credential %s as current for %s", previous.CredentialID, target.Principal)
				restored = true
			} else {
				c.logger.Error("Failed to restore previous credential for %s: %v", target.Principal, err)
				cause = errors.Join(cause, err)
			}
		}
		if !restored {
			c.logger.Warn("Credential %s for %s failed verification but remains published; leaving it active",
				record.NewCredentialID, target.Principal)
			if cause != nil {
				record.LastError = cause.Error()
			}
			if saveErr := c.records.SaveRecord(record); saveErr != nil {
				c.logger.Warn("Failed to save aborted rotation record for %s: %v", target.Principal, saveErr)
			}
			return Result{
				Principal: target.Principal,
				Outcome:   OutcomeFailed,
				Phase:     string(rotationstorage.PhaseAborted),
				Duration:  c.now().Sub(start),
				Err:       cause,
			}
		}
	}

	err := c.cleanupOrphan(ctx, target, record.NewCredentialID)
	if err == nil {
		record.NewCredentialID = ""
	} else {
		cause = errors.Join(cause, err)
	}

	if saveErr := c.records.SaveRecord(record); saveErr != nil {
		c.logger.Warn("Failed to save aborted rotation record for %s: %v", target.Principal, saveErr)
	}

	return Result{
		Principal: target.Principal,
		Outcome:   OutcomeFailed,
		Phase:     string(rotationstorage.PhaseAborted),
		Duration:  c.now().Sub(start),
		Err:       cause,
	}
}

// cleanupOrphan revokes a minted credential that never became live. It
// refuses to revoke a credential the store currently serves, and refuses to
// revoke blind when the store cannot be read: a revoked-but-published
// credential would lock consumers out.
func (c *Coordinator) cleanupOrphan(ctx context.Context, target Target, credentialID string) error {
	if credentialID == "" {
		return nil
	}

	current, err := target.Store.ReadCurrent(ctx, target.Path)
	switch {
	case err == nil && current.CredentialID == credentialID:
		err = errors.New("credential is still the store's current version")
	case err == nil || dserrors.IsNotFound(err):
		err = nil
	}
	if err != nil {
		c.metrics.RecordOrphanCleanup(target.Principal, false)
		return dserrors.CleanupError{
			Principal:    target.Principal,
			CredentialID: credentialID,
			Err:          err,
		}
	}

	err = target.Provider.Revoke(context.WithoutCancel(ctx), target.Principal, credentialID)
	c.metrics.RecordOrphanCleanup(target.Principal, err == nil)
	if err != nil {
		c.logger.Error("Failed to revoke orphaned credential %s for %s: %v", credentialID, target.Principal, err)
		return dserrors.CleanupError{
			Principal:    target.Principal,
			CredentialID: credentialID,
			Err:          err,
		}
	}

	c.logger.Info("Revoked orphaned credential %s for %s", credentialID, target.Principal)
	return nil
}

// pendingFromProvider computes retirement candidates from the provider's
// active set: everything except the credential that just went live.
func (c *Coordinator) pendingFromProvider(ctx context.Context, target Target, newCredentialID string) ([]string, error) {
	active, err := target.Provider.ListActive(ctx, target.Principal)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, cred := range active {
		if cred.ID != newCredentialID {
			pending = append(pending, cred.ID)
		}
	}
	return pending, nil
}

// makeRoom retires old credentials down to below the provider cap, never
// touching the store's current credential.
func (c *Coordinator) makeRoom(ctx context.Context, target Target, active []identity.Credential, currentID string) ([]identity.Credential, error) {
	remaining := make([]identity.Credential, 0, len(active))
	remaining = append(remaining, active...)

	for len(remaining) >= target.MaxActive {
		victim := -1
		for i, cred := range remaining {
			if cred.ID != currentID {
				victim = i
				break
			}
		}
		if victim == -1 {
			return nil, dserrors.UserError{
				Message:    fmt.Sprintf("cannot mint for %s: provider credential limit reached and only the live credential remains", target.Principal),
				Suggestion: "Raise the provider's credential limit or lower maxActive",
			}
		}

		id := remaining[victim].ID
		if err := target.Provider.Revoke(ctx, target.Principal, id); err != nil {
			return nil, err
		}
		c.logger.Info("Retired credential %s for %s to make room", id, target.Principal)
		remaining = append(remaining[:victim], remaining[victim+1:]...)
	}

	return remaining, nil
}

// finish records history and status bookkeeping for a result.
func (c *Coordinator) finish(result Result, action string) Result {
	c.metrics.RecordRotationCompleted(result.Principal, string(result.Outcome), result.Duration.Seconds())

	entry := &rotationstorage.HistoryEntry{
		Timestamp:        c.now(),
		Principal:        result.Principal,
		Action:           action,
		Status:           string(result.Outcome),
		Phase:            result.Phase,
		Duration:         result.Duration,
		NewCredentialID:  result.NewCredentialID,
		OldCredentialIDs: result.RetiredCredentialIDs,
		StoreVersion:     result.StoreVersion,
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
	}
	if err := c.records.SaveHistory(entry); err != nil {
		c.logger.Warn("Failed to save rotation history for %s: %v", result.Principal, err)
	}

	if result.Outcome != OutcomeRejected && result.Outcome != OutcomeDryRun {
		c.updateStatus(result)
	}

	return result
}

func (c *Coordinator) updateStatus(result Result) {
	status, err := c.records.GetStatus(result.Principal)
	if err != nil || status == nil {
		status = &rotationstorage.RotationStatus{Principal: result.Principal}
	}

	status.RotationCount++
	status.LastResult = string(result.Outcome)
	if result.Succeeded() {
		status.SuccessCount++
		status.LastRotation = c.now()
		status.LastError = ""
		status.Status = string(result.Outcome)
	} else {
		status.FailureCount++
		status.Status = "failed"
		if result.Err != nil {
			status.LastError = result.Err.Error()
		}
	}

	if err := c.records.SaveStatus(status); err != nil {
		c.logger.Warn("Failed to save rotation status for %s: %v", result.Principal, err)
	}
}
