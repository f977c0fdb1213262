package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGetRecord(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	record := &RotationRecord{
		Principal:       "ci-deployer",
		Provider:        "aws",
		Store:           "vault",
		Path:            "apps/ci",
		Phase:           PhaseMinted,
		NewCredentialID: "AKIA1",
		StartedAt:       time.Now().Add(-time.Minute),
	}
	require.NoError(t, fs.SaveRecord(record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.UpdatedAt.IsZero())

	loaded, err := fs.GetRecord("ci-deployer")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.ID, loaded.ID)
	assert.Equal(t, PhaseMinted, loaded.Phase)
	assert.Equal(t, "AKIA1", loaded.NewCredentialID)

	// One record per principal: a save replaces the previous record.
	record.Phase = PhaseComplete
	require.NoError(t, fs.SaveRecord(record))
	loaded, err = fs.GetRecord("ci-deployer")
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, loaded.Phase)
}

func TestGetRecordMissingReturnsNil(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	record, err := fs.GetRecord("ghost")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestSaveRecordSanitizesPrincipal(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	record := &RotationRecord{
		Principal: "team/service:prod",
		Phase:     PhaseVerified,
		StartedAt: time.Now(),
	}
	require.NoError(t, fs.SaveRecord(record))

	loaded, err := fs.GetRecord("team/service:prod")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "team/service:prod", loaded.Principal)
}

func TestListUnfinished(t *testing.T) {
	fs := NewFileStorage(t.TempDir())
	now := time.Now()

	save := func(principal string, phase Phase, newCredentialID string, started time.Time) {
		require.NoError(t, fs.SaveRecord(&RotationRecord{
			Principal:       principal,
			Phase:           phase,
			NewCredentialID: newCredentialID,
			StartedAt:       started,
		}))
	}

	save("done", PhaseComplete, "k1", now.Add(-5*time.Hour))
	save("minted", PhaseMinted, "k2", now.Add(-4*time.Hour))
	save("pending", PhaseRetirePending, "k3", now.Add(-2*time.Hour))
	save("orphaned", PhaseAborted, "k4", now.Add(-3*time.Hour))
	save("aborted-clean", PhaseAborted, "", now.Add(-time.Hour))

	unfinished, err := fs.ListUnfinished()
	require.NoError(t, err)

	// Complete records and aborted records without an orphan are skipped;
	// the rest come back oldest first.
	require.Len(t, unfinished, 3)
	assert.Equal(t, "minted", unfinished[0].Principal)
	assert.Equal(t, "orphaned", unfinished[1].Principal)
	assert.Equal(t, "pending", unfinished[2].Principal)
}

func TestStatusRoundTrip(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	_, err := fs.GetStatus("ghost")
	assert.Error(t, err)

	require.NoError(t, fs.SaveStatus(&RotationStatus{
		Principal:     "beta",
		Status:        "rotated",
		LastRotation:  time.Now(),
		RotationCount: 3,
		SuccessCount:  2,
		FailureCount:  1,
	}))
	require.NoError(t, fs.SaveStatus(&RotationStatus{
		Principal: "alpha",
		Status:    "failed",
		LastError: "store unavailable",
	}))

	status, err := fs.GetStatus("beta")
	require.NoError(t, err)
	assert.Equal(t, 3, status.RotationCount)

	statuses, err := fs.ListStatuses()
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	// Sorted by principal.
	assert.Equal(t, "alpha", statuses[0].Principal)
	assert.Equal(t, "beta", statuses[1].Principal)
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	fs := NewFileStorage(t.TempDir())
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, fs.SaveHistory(&HistoryEntry{
			Timestamp:       base.Add(time.Duration(i) * time.Hour),
			Principal:       "app",
			Action:          "rotate",
			Status:          "rotated",
			NewCredentialID: "k",
		}))
	}

	entries, err := fs.GetHistory("app", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Timestamp.After(entries[1].Timestamp))
	assert.True(t, entries[1].Timestamp.After(entries[2].Timestamp))

	all, err := fs.GetHistory("app", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestGetAllHistoryMergesPrincipals(t *testing.T) {
	fs := NewFileStorage(t.TempDir())
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, fs.SaveHistory(&HistoryEntry{
		Timestamp: base, Principal: "alpha", Action: "rotate", Status: "rotated",
	}))
	require.NoError(t, fs.SaveHistory(&HistoryEntry{
		Timestamp: base.Add(time.Hour), Principal: "beta", Action: "rotate", Status: "failed",
	}))

	entries, err := fs.GetAllHistory(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "beta", entries[0].Principal)
	assert.Equal(t, "alpha", entries[1].Principal)
}

func TestPhaseTerminal(t *testing.T) {
	assert.True(t, PhaseComplete.Terminal())
	assert.True(t, PhaseAborted.Terminal())
	assert.False(t, PhaseMinted.Terminal())
	assert.False(t, PhasePublished.Terminal())
	assert.False(t, PhaseVerified.Terminal())
	assert.False(t, PhaseRetirePending.Terminal())
}
