package rotation

import (
	"sync"
	"time"

	dserrors "github.com/systmms/keyrot/internal/errors"
)

// DefaultLeaseTTL bounds how long a crashed in-process rotation can block
// subsequent attempts for the same principal.
const DefaultLeaseTTL = 10 * time.Minute

// LeaseRegistry serializes rotations per principal. A rotation holds the
// principal's lease for its whole lifetime; a second attempt while the lease
// is held is rejected, not queued.
type LeaseRegistry struct {
	mu     sync.Mutex
	ttl    time.Duration
	leases map[string]lease
	gen    uint64
	now    func() time.Time
}

// lease carries a generation so a release from an expired holder cannot free
// a lease acquired later by someone else.
type lease struct {
	expiry time.Time
	gen    uint64
}

// NewLeaseRegistry creates a lease registry with the default TTL.
func NewLeaseRegistry() *LeaseRegistry {
	return &LeaseRegistry{
		ttl:    DefaultLeaseTTL,
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// NewLeaseRegistryWithTTL creates a lease registry with a custom TTL.
func NewLeaseRegistryWithTTL(ttl time.Duration) *LeaseRegistry {
	r := NewLeaseRegistry()
	r.ttl = ttl
	return r
}

// Acquire takes the lease for a principal. The returned release function is
// idempotent and must be called when the rotation finishes. Returns
// ConcurrentRotationError when the lease is already held.
func (r *LeaseRegistry) Acquire(principal string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, held := r.leases[principal]; held && r.now().Before(l.expiry) {
		return nil, dserrors.ConcurrentRotationError{Principal: principal}
	}

	r.gen++
	gen := r.gen
	r.leases[principal] = lease{expiry: r.now().Add(r.ttl), gen: gen}

	release := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if l, held := r.leases[principal]; held && l.gen == gen {
			delete(r.leases, principal)
		}
	}
	return release, nil
}

// Held reports whether a live lease exists for the principal.
func (r *LeaseRegistry) Held(principal string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, held := r.leases[principal]
	return held && r.now().Before(l.expiry)
}
