package rotation

import (
	"errors"
	"sync"
	"testing"
	"time"

	dserrors "github.com/systmms/keyrot/internal/errors"
)

func TestLeaseExclusion(t *testing.T) {
	leases := NewLeaseRegistry()

	release, err := leases.Acquire("app")
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}

	_, err = leases.Acquire("app")
	var cr dserrors.ConcurrentRotationError
	if !errors.As(err, &cr) {
		t.Fatalf("Expected ConcurrentRotationError, got %v", err)
	}
	if cr.Principal != "app" {
		t.Errorf("Error names principal %s, want app", cr.Principal)
	}

	// A different principal is unaffected.
	releaseOther, err := leases.Acquire("other")
	if err != nil {
		t.Fatalf("Acquire for unrelated principal failed: %v", err)
	}
	releaseOther()

	release()
	release2, err := leases.Acquire("app")
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	release2()
}

func TestLeaseReleaseIsIdempotent(t *testing.T) {
	leases := NewLeaseRegistry()

	release, err := leases.Acquire("app")
	if err != nil {
		t.Fatal(err)
	}
	release()
	release() // second call must not panic or free someone else's lease

	again, err := leases.Acquire("app")
	if err != nil {
		t.Fatal(err)
	}
	// The stale release from the first lease must not free the new one.
	release()
	if !leases.Held("app") {
		t.Error("Stale release freed a lease it did not own")
	}
	again()
	if leases.Held("app") {
		t.Error("Lease still held after release")
	}
}

func TestLeaseExpiry(t *testing.T) {
	leases := NewLeaseRegistryWithTTL(time.Minute)
	current := time.Now()
	leases.now = func() time.Time { return current }

	if _, err := leases.Acquire("app"); err != nil {
		t.Fatal(err)
	}
	if _, err := leases.Acquire("app"); err == nil {
		t.Fatal("Expected rejection while lease held")
	}

	// A crashed holder never releases; the TTL unblocks the principal.
	current = current.Add(2 * time.Minute)
	release, err := leases.Acquire("app")
	if err != nil {
		t.Fatalf("Acquire after TTL expiry failed: %v", err)
	}
	release()
}

// A holder that outlives its TTL must not free the lease a later rotation
// acquired for the same principal.
func TestExpiredHolderReleaseKeepsNewLease(t *testing.T) {
	leases := NewLeaseRegistryWithTTL(time.Minute)
	current := time.Now()
	leases.now = func() time.Time { return current }

	staleRelease, err := leases.Acquire("app")
	if err != nil {
		t.Fatal(err)
	}

	current = current.Add(2 * time.Minute)
	newRelease, err := leases.Acquire("app")
	if err != nil {
		t.Fatalf("Acquire after TTL expiry failed: %v", err)
	}

	staleRelease()
	if !leases.Held("app") {
		t.Fatal("Expired holder's release freed the new lease")
	}
	if _, err := leases.Acquire("app"); err == nil {
		t.Fatal("A third rotation acquired a lease that should still be held")
	}

	newRelease()
	if leases.Held("app") {
		t.Error("Lease still held after the owner released it")
	}
}

func TestLeaseConcurrentAcquire(t *testing.T) {
	leases := NewLeaseRegistry()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := leases.Acquire("app"); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted != 1 {
		t.Errorf("%d goroutines acquired the same lease, want exactly 1", granted)
	}
}
