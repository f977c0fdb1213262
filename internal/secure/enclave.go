// Package secure provides memory-safe storage for credential material.
//
// Freshly minted secret material lives in process memory between the mint
// and publish phases of a rotation. During that window it is held in a
// memguard enclave: encrypted at rest in memory, mlocked against swapping,
// and wiped when no longer needed.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Material holds credential secret material in a protected memory region.
// The zero value is not usable; construct with NewMaterial.
type Material struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	destroyed bool
}

// NewMaterial seals the given secret string into a protected buffer.
// The caller should not retain other copies of the plaintext.
func NewMaterial(secret string) *Material {
	return &Material{
		enclave: memguard.NewEnclave([]byte(secret)),
	}
}

// Reveal decrypts and returns the secret material as a string.
// The returned string is an ordinary Go string; callers must not log it
// and should keep its lifetime as short as possible.
func (m *Material) Reveal() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.destroyed || m.enclave == nil {
		return "", nil
	}

	locked, err := m.enclave.Open()
	if err != nil {
		return "", err
	}
	// Copy out of the locked buffer before destroying it; the buffer's own
	// view aliases pages that Destroy wipes and unmaps.
	secret := string(locked.Bytes())
	locked.Destroy()
	return secret, nil
}

// Destroy marks the material as destroyed and drops the enclave reference.
// Idempotent. After Destroy, Reveal returns an empty string.
//
// For complete cleanup of all memguard data at application exit,
// call memguard.Purge() in a defer statement in main().
func (m *Material) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}
	m.enclave = nil
	m.destroyed = true
}
