package fakes

import (
	"context"
	"strconv"
	"sync"
	"time"

	dserrors "github.com/systmms/keyrot/internal/errors"
	"github.com/systmms/keyrot/internal/secretstores"
)

// FakeStore is an in-memory secretstores.Store with failure injection. Each
// path holds one current payload and a monotonically increasing version.
type FakeStore struct {
	mu sync.Mutex

	// StoreName is returned by Name. Defaults to "fakestore".
	StoreName string

	// PublishErrs is popped on each Publish call. A non-nil entry fails the
	// call without applying the write.
	PublishErrs []error

	// ReadErrs is popped on each ReadCurrent call.
	ReadErrs []error

	// ValidateErr is returned by Validate.
	ValidateErr error

	current  map[string]secretstores.Payload
	versions map[string]int
	written  map[string]time.Time

	PublishCalls int
	ReadCalls    int
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		StoreName: "fakestore",
		current:   make(map[string]secretstores.Payload),
		versions:  make(map[string]int),
		written:   make(map[string]time.Time),
	}
}

// SetCurrent installs a payload as the current version without going through
// Publish, for simulating state left by earlier runs.
func (s *FakeStore) SetCurrent(path string, payload secretstores.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[path] = payload
	s.versions[path]++
	s.written[path] = time.Now()
}

// CurrentCredentialID returns the credential id currently served at path, or
// "" when nothing is published.
func (s *FakeStore) CurrentCredentialID(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[path].CredentialID
}

func (s *FakeStore) Name() string {
	if s.StoreName == "" {
		return "fakestore"
	}
	return s.StoreName
}

func (s *FakeStore) Publish(ctx context.Context, path string, payload secretstores.Payload) (secretstores.SecretVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PublishCalls++
	if err := pop(&s.PublishErrs); err != nil {
		return secretstores.SecretVersion{}, err
	}

	s.current[path] = payload
	s.versions[path]++
	s.written[path] = time.Now()

	return secretstores.SecretVersion{
		CredentialID: payload.CredentialID,
		Version:      strconv.Itoa(s.versions[path]),
		PublishedAt:  s.written[path],
	}, nil
}

func (s *FakeStore) ReadCurrent(ctx context.Context, path string) (secretstores.SecretVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ReadCalls++
	if err := pop(&s.ReadErrs); err != nil {
		return secretstores.SecretVersion{}, err
	}

	payload, ok := s.current[path]
	if !ok {
		return secretstores.SecretVersion{}, dserrors.NotFoundError{Kind: "secret", Name: path}
	}

	return secretstores.SecretVersion{
		CredentialID: payload.CredentialID,
		Version:      strconv.Itoa(s.versions[path]),
		PublishedAt:  s.written[path],
		Material:     payload.Material,
	}, nil
}

func (s *FakeStore) Capabilities() secretstores.Capabilities {
	return secretstores.Capabilities{SupportsVersioning: true}
}

func (s *FakeStore) Validate(ctx context.Context) error {
	return s.ValidateErr
}
