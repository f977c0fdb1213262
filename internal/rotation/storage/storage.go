// Package storage persists rotation state across process restarts.
//
// Two kinds of state live here. Rotation records are the durable write-ahead
// markers a rotation writes before each phase transition; they are what makes
// a crashed rotation resumable without double-minting. Status and history are
// operator-facing bookkeeping for `keyrot status` and `keyrot history`.
package storage

import (
	"time"
)

// Phase is the durable progress marker of a rotation.
type Phase string

const (
	// PhaseMinted means a new credential exists at the provider but has not
	// been published yet. An interrupted rotation in this phase left an
	// orphan to clean up.
	PhaseMinted Phase = "minted"

	// PhasePublished means the store accepted the new credential but the
	// read-back has not confirmed it.
	PhasePublished Phase = "published"

	// PhaseVerified means consumers can fetch the new credential. Old
	// credentials are not yet retired.
	PhaseVerified Phase = "verified"

	// PhaseComplete means old credentials were retired and the rotation
	// finished cleanly.
	PhaseComplete Phase = "complete"

	// PhaseRetirePending means the rotation succeeded but retiring the old
	// credentials failed. The reconciler retries retirement later.
	PhaseRetirePending Phase = "retire_pending"

	// PhaseAborted means the rotation gave up before the new credential was
	// verified. The published state still serves the previous credential.
	PhaseAborted Phase = "aborted"
)

// Terminal reports whether the phase needs no further work.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseAborted
}

// RotationRecord is the durable state of one rotation attempt. Exactly one
// record exists per principal; a new rotation overwrites the previous
// terminal record.
type RotationRecord struct {
	ID        string `json:"id"`
	Principal string `json:"principal"`
	Provider  string `json:"provider"`
	Store     string `json:"store"`
	Path      string `json:"path"`

	Phase Phase `json:"phase"`

	// NewCredentialID is set once minting succeeded. Never carries material.
	NewCredentialID string `json:"new_credential_id,omitempty"`

	// StoreVersion is the store-native version id of the published secret.
	StoreVersion string `json:"store_version,omitempty"`

	// PendingRetire lists old credential ids still awaiting revocation.
	PendingRetire []string `json:"pending_retire,omitempty"`

	// RetireNotBefore delays retirement when a grace period is configured.
	RetireNotBefore time.Time `json:"retire_not_before,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LastError string    `json:"last_error,omitempty"`
}

// RotationStatus represents the current status of a principal's rotation
type RotationStatus struct {
	Principal     string            `json:"principal"`
	Status        string            `json:"status"` // rotated, retire_pending, failed, never_rotated
	LastRotation  time.Time         `json:"last_rotation"`
	NextRotation  *time.Time        `json:"next_rotation,omitempty"`
	LastResult    string            `json:"last_result"`
	LastError     string            `json:"last_error,omitempty"`
	RotationCount int               `json:"rotation_count"`
	SuccessCount  int               `json:"success_count"`
	FailureCount  int               `json:"failure_count"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// HistoryEntry represents a single rotation event
type HistoryEntry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Principal string            `json:"principal"`
	Action    string            `json:"action"` // rotate, resume, reconcile
	Status    string            `json:"status"` // rotated, retire_pending, rejected, failed
	Phase     string            `json:"phase,omitempty"`
	Duration  time.Duration     `json:"duration"`
	Error     string            `json:"error,omitempty"`
	User      string            `json:"user,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	OldCredentialIDs []string `json:"old_credential_ids,omitempty"`
	NewCredentialID  string   `json:"new_credential_id,omitempty"`
	StoreVersion     string   `json:"store_version,omitempty"`
}

// RecordStore defines the interface for rotation state persistence
type RecordStore interface {
	// SaveRecord durably writes a rotation record, replacing any existing
	// record for the same principal. Must complete before the phase it
	// marks is acted on.
	SaveRecord(record *RotationRecord) error

	// GetRecord retrieves the rotation record for a principal.
	// Returns nil, nil when no record exists.
	GetRecord(principal string) (*RotationRecord, error)

	// ListUnfinished returns all records in non-terminal phases plus
	// retire_pending records, oldest first. Used by the reconciler.
	ListUnfinished() ([]RotationRecord, error)

	// SaveStatus saves the current rotation status for a principal
	SaveStatus(status *RotationStatus) error

	// GetStatus retrieves the current rotation status for a principal
	GetStatus(principal string) (*RotationStatus, error)

	// ListStatuses retrieves the statuses of all known principals
	ListStatuses() ([]RotationStatus, error)

	// SaveHistory saves a rotation history entry
	SaveHistory(entry *HistoryEntry) error

	// GetHistory retrieves rotation history for a principal
	GetHistory(principal string, limit int) ([]HistoryEntry, error)

	// GetAllHistory retrieves rotation history for all principals
	GetAllHistory(limit int) ([]HistoryEntry, error)

	// CleanupOldEntries removes history entries older than the specified duration
	CleanupOldEntries(olderThan time.Duration) error
}
