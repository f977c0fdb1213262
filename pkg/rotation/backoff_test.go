package rotation

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDelayGrowth(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 30 * time.Second, Factor: 2.0}

	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped
		30 * time.Second,
	}
	for attempt, want := range expected {
		if got := b.Delay(attempt); got != want {
			t.Errorf("Delay(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestBackoffWaitRespectsContext(t *testing.T) {
	b := Backoff{Initial: time.Hour, Max: time.Hour, Factor: 2.0}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := b.Wait(ctx, 0)
	if err == nil {
		t.Fatal("Expected context error from cancelled wait")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait blocked %s after cancellation", elapsed)
	}
}

func TestBackoffWaitUsesInjectedSleep(t *testing.T) {
	var slept []time.Duration
	b := Backoff{
		Initial: time.Second,
		Max:     4 * time.Second,
		Factor:  2.0,
		sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	for attempt := 0; attempt < 4; attempt++ {
		if err := b.Wait(context.Background(), attempt); err != nil {
			t.Fatal(err)
		}
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("Slept %d times, want %d", len(slept), len(want))
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("Sleep %d = %s, want %s", i, slept[i], want[i])
		}
	}
}
