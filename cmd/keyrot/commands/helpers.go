package commands

import (
	"fmt"

	"github.com/systmms/keyrot/internal/config"
	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/identity"
	rotationstorage "github.com/systmms/keyrot/internal/rotation/storage"
	"github.com/systmms/keyrot/internal/secretstores"
	"github.com/systmms/keyrot/internal/verify"
	"github.com/systmms/keyrot/pkg/rotation"
)

// runtime holds the wired-up components every rotation command needs.
type runtime struct {
	cfg         *config.Config
	records     rotationstorage.RecordStore
	providers   map[string]identity.Provider
	stores      map[string]secretstores.Store
	targets     []rotation.Target
	coordinator *rotation.Coordinator
	handler     *rotation.Handler
	reconciler  *rotation.Reconciler
}

// runtimeOptions carries the per-invocation coordinator flags.
type runtimeOptions struct {
	dryRun bool
	force  bool
}

// buildRuntime loads the configuration and instantiates providers, stores,
// probes, and the coordinator stack.
func buildRuntime(cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	logger := cfg.Logger

	identityRegistry := identity.NewRegistry(logger)
	storeRegistry := secretstores.NewRegistry(logger)

	providers := make(map[string]identity.Provider)
	for name, providerCfg := range cfg.Definition.IdentityProviders {
		instance, err := identityRegistry.Create(name, providerCfg.Type, providerCfg.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to create identity provider %s: %w", name, err)
		}
		providers[name] = instance
	}

	stores := make(map[string]secretstores.Store)
	for name, storeCfg := range cfg.Definition.SecretStores {
		instance, err := storeRegistry.Create(name, storeCfg.Type, storeCfg.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to create secret store %s: %w", name, err)
		}
		stores[name] = instance
	}

	var targets []rotation.Target
	for principal, principalCfg := range cfg.Definition.Principals {
		probes, err := buildProbes(principalCfg.Verify)
		if err != nil {
			return nil, fmt.Errorf("failed to configure probes for %s: %w", principal, err)
		}
		targets = append(targets, rotation.Target{
			Principal:   principal,
			Provider:    providers[principalCfg.IdentityProvider],
			Store:       stores[principalCfg.Store],
			Path:        principalCfg.Path,
			Probes:      probes,
			MaxActive:   principalCfg.MaxActive,
			GracePeriod: principalCfg.GracePeriod.Std(),
		})
	}

	records := rotationstorage.NewFileStorage(rotationstorage.DefaultStorageDir())

	coordinatorOpts := []rotation.Option{
		rotation.WithDryRun(opts.dryRun),
		rotation.WithForce(opts.force),
	}
	defaults := cfg.Definition.Defaults
	if defaults.RetryBudget > 0 {
		coordinatorOpts = append(coordinatorOpts, rotation.WithRetryBudget(defaults.RetryBudget))
	}
	if defaults.Backoff.Initial > 0 {
		backoff := rotation.DefaultBackoff()
		backoff.Initial = defaults.Backoff.Initial.Std()
		if defaults.Backoff.Max > 0 {
			backoff.Max = defaults.Backoff.Max.Std()
		}
		if defaults.Backoff.Factor > 0 {
			backoff.Factor = defaults.Backoff.Factor
		}
		coordinatorOpts = append(coordinatorOpts, rotation.WithBackoff(backoff))
	}

	coordinator := rotation.NewCoordinator(records, logger, coordinatorOpts...)

	var handlerOpts []rotation.HandlerOption
	if defaults.Concurrency > 0 {
		handlerOpts = append(handlerOpts, rotation.WithConcurrency(defaults.Concurrency))
	}

	return &runtime{
		cfg:         cfg,
		records:     records,
		providers:   providers,
		stores:      stores,
		targets:     targets,
		coordinator: coordinator,
		handler:     rotation.NewHandler(coordinator, targets, logger, handlerOpts...),
		reconciler:  rotation.NewReconciler(coordinator, records, targets, logger),
	}, nil
}

// buildProbes constructs the extra verification probes for a principal.
// The read-back check is built into the coordinator and needs no config.
func buildProbes(configs []config.ProbeConfig) ([]verify.Probe, error) {
	var probes []verify.Probe
	for _, probeCfg := range configs {
		switch probeCfg.Type {
		case "sql":
			probe, err := verify.NewSQLProbe(probeCfg.Driver, probeCfg.DSN)
			if err != nil {
				return nil, err
			}
			probes = append(probes, probe)
		default:
			return nil, dserrors.ConfigError{
				Field:      "verify.type",
				Value:      probeCfg.Type,
				Message:    "unknown probe type",
				Suggestion: "Supported probe types: sql",
			}
		}
	}
	return probes, nil
}

// displayResults prints per-principal rotation outcomes and returns an error
// when any rotation failed.
func displayResults(cfg *config.Config, results []rotation.Result) error {
	logger := cfg.Logger

	var rotated, pending, rejected, failed int
	for _, result := range results {
		switch result.Outcome {
		case rotation.OutcomeRotated:
			rotated++
			logger.Info("✓ %s rotated (new credential %s, retired %d)",
				result.Principal, result.NewCredentialID, len(result.RetiredCredentialIDs))
		case rotation.OutcomeRetirePending:
			pending++
			logger.Warn("○ %s rotated, %d old credential(s) awaiting retirement",
				result.Principal, len(result.PendingRetireIDs))
		case rotation.OutcomeDryRun:
			logger.Info("✓ %s (dry run)", result.Principal)
		case rotation.OutcomeRejected:
			rejected++
			logger.Warn("○ %s skipped: rotation already in progress", result.Principal)
		case rotation.OutcomeFailed:
			failed++
			logger.Error("✗ %s failed in %s phase: %v", result.Principal, result.Phase, result.Err)
		}
	}

	logger.Info("\nSummary:")
	if rotated > 0 {
		logger.Info("  Rotated: %d", rotated)
	}
	if pending > 0 {
		logger.Info("  Retire pending: %d", pending)
	}
	if rejected > 0 {
		logger.Info("  Rejected: %d", rejected)
	}
	if failed > 0 {
		logger.Info("  Failed: %d", failed)
		return fmt.Errorf("%d principal(s) failed to rotate", failed)
	}

	return nil
}
