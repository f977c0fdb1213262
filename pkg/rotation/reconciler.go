package rotation

import (
	"context"

	"github.com/systmms/keyrot/internal/logging"
	rotationstorage "github.com/systmms/keyrot/internal/rotation/storage"
)

// Reconciler sweeps the record store for rotations that stopped short of a
// clean finish: crashed mid-phase, waiting out a grace period, or carrying an
// orphan whose revocation failed. Each sweep re-drives the affected
// principals through the coordinator, which resumes them idempotently.
type Reconciler struct {
	coordinator *Coordinator
	records     rotationstorage.RecordStore
	targets     map[string]Target
	logger      *logging.Logger
}

// NewReconciler creates a reconciler over the configured targets.
func NewReconciler(coordinator *Coordinator, records rotationstorage.RecordStore, targets []Target, logger *logging.Logger) *Reconciler {
	byPrincipal := make(map[string]Target, len(targets))
	for _, t := range targets {
		byPrincipal[t.Principal] = t
	}
	return &Reconciler{
		coordinator: coordinator,
		records:     records,
		targets:     byPrincipal,
		logger:      logger,
	}
}

// Sweep finds unfinished rotations and resumes each one. Records whose
// grace period has not yet elapsed are skipped without a log entry; records
// for principals no longer in the configuration are reported and skipped.
func (r *Reconciler) Sweep(ctx context.Context) []Result {
	unfinished, err := r.records.ListUnfinished()
	if err != nil {
		r.logger.Error("Reconciler failed to list unfinished rotations: %v", err)
		return nil
	}

	var results []Result
	for _, record := range unfinished {
		if ctx.Err() != nil {
			break
		}

		if record.Phase == rotationstorage.PhaseRetirePending && !r.coordinator.force &&
			!record.RetireNotBefore.IsZero() && r.coordinator.now().Before(record.RetireNotBefore) {
			continue
		}

		target, ok := r.targets[record.Principal]
		if !ok {
			r.logger.Warn("Unfinished rotation for unconfigured principal %s (phase %s), skipping",
				record.Principal, record.Phase)
			continue
		}

		r.logger.Info("Reconciling %s (phase %s)", record.Principal, record.Phase)
		results = append(results, r.coordinator.Rotate(ctx, target))
	}

	return results
}
