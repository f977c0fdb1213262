// Package rotation implements the credential rotation coordinator in keyrot.
//
// The coordinator rotates long-lived credentials (cloud access keys, database
// passwords, API tokens) without ever leaving a principal locked out: a new
// credential is created, distributed, and proven live before any old one is
// revoked.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                  CLI Commands                               │
//	│            (cmd/keyrot/commands/)                           │
//	└─────────────────────────┬───────────────────────────────────┘
//	                          │
//	┌─────────────────────────▼───────────────────────────────────┐
//	│              Rotation Coordinator                           │
//	│               (pkg/rotation/)                               │
//	│                                                             │
//	│   mint ──► publish ──► verify ──► retire                    │
//	│     durable phase markers between every step                │
//	└───────┬────────────────────────────────────┬────────────────┘
//	        │                                    │
//	┌───────▼───────────────┐        ┌───────────▼────────────────┐
//	│  Identity Providers   │        │      Secret Stores         │
//	│  (internal/identity)  │        │  (internal/secretstores)   │
//	│                       │        │                            │
//	│  ┌─────────┐          │        │  ┌──────┐ ┌─────┐ ┌─────┐  │
//	│  │ AWS IAM │ ┌──────┐ │        │  │ AWS  │ │Vault│ │ GCP │  │
//	│  └─────────┘ │Static│ │        │  └──────┘ └─────┘ └─────┘  │
//	│              └──────┘ │        │  ┌─────┐ ┌───────┐         │
//	│                       │        │  │Azure│ │Keyring│  ...    │
//	└───────────────────────┘        │  └─────┘ └───────┘         │
//	                                 └────────────────────────────┘
//
// # The Rotation Protocol
//
// Every rotation runs four phases in a fixed order:
//
//  1. Mint: the identity provider creates a fresh credential. The old
//     credential stays valid; two credentials coexisting is the safety
//     margin, not a defect.
//  2. Publish: the secret store receives the new credential as its current
//     version. Retries reuse the already-minted credential.
//  3. Verify: the store's current version is read back and compared, and any
//     configured probes (for example an SQL login with the new material)
//     must pass.
//  4. Retire: only now are old credentials revoked. Retirement runs detached
//     from caller cancellation; a retirement failure downgrades the result
//     to rotated_retire_pending rather than failing the rotation.
//
// Before each phase acts, a durable record marks the progress. A rotation
// interrupted by a crash is resumed from that record on the next attempt:
// the store is consulted to decide whether the publish landed, a minted
// credential that never became live is revoked, and pending retirements are
// completed. Re-running a rotation any number of times converges to the same
// end state.
//
// # Concurrency
//
// Rotations for the same principal are mutually exclusive, enforced by a
// per-principal lease. A second attempt while a lease is held is rejected
// immediately with ConcurrentRotationError; it is never queued. Rotations
// for different principals proceed independently, and the Handler runs
// batches with bounded parallelism.
//
// # Failure Taxonomy
//
// Failures carry types from internal/errors so callers can react precisely:
//
//   - ProviderUnavailableError: mint or revoke failed; retried with backoff
//   - StoreUnavailableError: publish or read failed; retried, and the
//     rotation never proceeds to retirement while the store is down
//   - VerificationMismatchError: the store serves a different credential
//     than the one just published; treated exactly like a failed publish
//   - ConcurrentRotationError: lease held by another rotation
//   - CleanupError: a minted credential that never went live could not be
//     revoked; the reconciler retries the revocation later
//
// # Example
//
//	records := storage.NewFileStorage(storage.DefaultStorageDir())
//	coordinator := rotation.NewCoordinator(records, logger)
//
//	result := coordinator.Rotate(ctx, rotation.Target{
//	    Principal: "ci-deployer",
//	    Provider:  provider,
//	    Store:     store,
//	    Path:      "ci/deployer/credentials",
//	})
//	if !result.Succeeded() {
//	    return result.Err
//	}
package rotation
