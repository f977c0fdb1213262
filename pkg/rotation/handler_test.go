package rotation

import (
	"context"
	"errors"
	"testing"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/logging"
	"github.com/systmms/keyrot/tests/fakes"
)

func newTestHandler(t *testing.T, targets []Target, opts ...HandlerOption) *Handler {
	t.Helper()
	coordinator, _ := newTestCoordinator(t)
	return NewHandler(coordinator, targets, logging.New(false, true), opts...)
}

func TestHandleBatch(t *testing.T) {
	provider := fakes.NewFakeProvider()
	store := fakes.NewFakeStore()
	targets := []Target{
		newTestTarget("alpha", provider, store),
		newTestTarget("beta", provider, store),
		newTestTarget("gamma", provider, store),
	}
	handler := newTestHandler(t, targets, WithConcurrency(2))

	results := handler.Handle(context.Background(), []string{"alpha", "gamma"})

	if len(results) != 2 {
		t.Fatalf("Got %d results, want 2", len(results))
	}
	if results[0].Principal != "alpha" || results[1].Principal != "gamma" {
		t.Errorf("Results out of order: %s, %s", results[0].Principal, results[1].Principal)
	}
	for _, result := range results {
		if result.Outcome != OutcomeRotated {
			t.Errorf("%s: expected rotated, got %s (err: %v)", result.Principal, result.Outcome, result.Err)
		}
	}
	if store.CurrentCredentialID("secrets/beta") != "" {
		t.Error("Unrequested principal beta was rotated")
	}
}

func TestHandleEmptyMeansAll(t *testing.T) {
	provider := fakes.NewFakeProvider()
	store := fakes.NewFakeStore()
	targets := []Target{
		newTestTarget("alpha", provider, store),
		newTestTarget("beta", provider, store),
	}
	handler := newTestHandler(t, targets)

	results := handler.Handle(context.Background(), nil)

	if len(results) != 2 {
		t.Fatalf("Got %d results, want all 2 principals", len(results))
	}
	// Principals() is sorted, so results are too.
	if results[0].Principal != "alpha" || results[1].Principal != "beta" {
		t.Errorf("Results out of order: %s, %s", results[0].Principal, results[1].Principal)
	}
}

func TestHandleUnknownPrincipalIsIsolated(t *testing.T) {
	provider := fakes.NewFakeProvider()
	store := fakes.NewFakeStore()
	targets := []Target{newTestTarget("alpha", provider, store)}
	handler := newTestHandler(t, targets)

	results := handler.Handle(context.Background(), []string{"alpha", "nope"})

	if len(results) != 2 {
		t.Fatalf("Got %d results, want 2", len(results))
	}
	if results[0].Outcome != OutcomeRotated {
		t.Errorf("alpha: expected rotated, got %s (err: %v)", results[0].Outcome, results[0].Err)
	}
	if results[1].Outcome != OutcomeFailed {
		t.Fatalf("nope: expected failed, got %s", results[1].Outcome)
	}
	var nf dserrors.NotFoundError
	if !errors.As(results[1].Err, &nf) {
		t.Errorf("Expected NotFoundError for unknown principal, got %v", results[1].Err)
	}
}

// One failing principal must not block the rest of the batch.
func TestHandleFailureIsolation(t *testing.T) {
	goodProvider := fakes.NewFakeProvider()
	badProvider := fakes.NewFakeProvider()
	badProvider.MintErrs = []error{errors.New("access denied")}
	store := fakes.NewFakeStore()

	targets := []Target{
		newTestTarget("bad", badProvider, store),
		newTestTarget("good", goodProvider, store),
	}
	handler := newTestHandler(t, targets)

	results := handler.Handle(context.Background(), []string{"bad", "good"})

	if results[0].Outcome != OutcomeFailed {
		t.Errorf("bad: expected failed, got %s", results[0].Outcome)
	}
	if results[1].Outcome != OutcomeRotated {
		t.Errorf("good: expected rotated despite sibling failure, got %s (err: %v)",
			results[1].Outcome, results[1].Err)
	}
}

func TestHandlerPrincipals(t *testing.T) {
	provider := fakes.NewFakeProvider()
	store := fakes.NewFakeStore()
	targets := []Target{
		newTestTarget("zeta", provider, store),
		newTestTarget("alpha", provider, store),
	}
	handler := newTestHandler(t, targets)

	principals := handler.Principals()
	if len(principals) != 2 || principals[0] != "alpha" || principals[1] != "zeta" {
		t.Errorf("Principals() = %v, want sorted [alpha zeta]", principals)
	}

	if _, ok := handler.Target("alpha"); !ok {
		t.Error("Target(alpha) not found")
	}
	if _, ok := handler.Target("nope"); ok {
		t.Error("Target(nope) unexpectedly found")
	}
}
