package rotation

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
)

func unknownPrincipalError(principal string) error {
	return dserrors.NotFoundError{Kind: "principal", Name: principal}
}

// DefaultBatchConcurrency bounds how many principals rotate at once.
const DefaultBatchConcurrency = 4

// Handler rotates one principal or a batch. Batch rotations run concurrently
// with bounded parallelism; failures are isolated per principal, so one bad
// target never blocks the rest of the batch.
type Handler struct {
	coordinator *Coordinator
	targets     map[string]Target
	logger      *logging.Logger
	concurrency int
}

// HandlerOption is a functional option for configuring the handler
type HandlerOption func(*Handler)

// WithConcurrency sets the batch parallelism limit.
func WithConcurrency(n int) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// NewHandler creates a handler over the configured targets.
func NewHandler(coordinator *Coordinator, targets []Target, logger *logging.Logger, opts ...HandlerOption) *Handler {
	byPrincipal := make(map[string]Target, len(targets))
	for _, t := range targets {
		byPrincipal[t.Principal] = t
	}

	h := &Handler{
		coordinator: coordinator,
		targets:     byPrincipal,
		logger:      logger,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Principals returns the configured principals, sorted.
func (h *Handler) Principals() []string {
	principals := make([]string, 0, len(h.targets))
	for p := range h.targets {
		principals = append(principals, p)
	}
	sort.Strings(principals)
	return principals
}

// Target returns the target for a principal.
func (h *Handler) Target(principal string) (Target, bool) {
	t, ok := h.targets[principal]
	return t, ok
}

// Handle rotates the given principals. An empty slice means all configured
// principals. The returned results are ordered by principal; an unknown
// principal yields a failed result rather than an error for the whole batch.
func (h *Handler) Handle(ctx context.Context, principals []string) []Result {
	if len(principals) == 0 {
		principals = h.Principals()
	}

	results := make([]Result, len(principals))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, principal := range principals {
		i, principal := i, principal
		g.Go(func() error {
			target, ok := h.targets[principal]
			if !ok {
				results[i] = Result{
					Principal: principal,
					Outcome:   OutcomeFailed,
					Err:       unknownPrincipalError(principal),
				}
				return nil
			}
			results[i] = h.coordinator.Rotate(gctx, target)
			return nil
		})
	}
	// Workers never return errors; per-principal failures live in results.
	_ = g.Wait()

	return results
}
