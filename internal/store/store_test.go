package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a new bbolt store in a temp directory for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })
	return st
}

func pendingOp(id string, ts time.Time) *models.Operation {
	return &models.Operation{
		ID:        id,
		Type:      models.OperationMergeEntries,
		SourceID:  "e1",
		TargetID:  "e2",
		SenseIDs:  []string{"s1"},
		Status:    models.StatusPending,
		Timestamp: ts,
	}
}

func transfer(opID string, seq int, senseID, from, to string, at time.Time) *models.SenseTransfer {
	return &models.SenseTransfer{
		ID:              models.TransferID(opID, seq),
		SenseID:         senseID,
		OriginalEntryID: from,
		NewEntryID:      to,
		TransferDate:    at,
		OperationID:     opID,
	}
}

// ==================== Store Tests ====================

func TestStore_Initialize(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Initialize())

	version, err := st.GetValue(keySchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	ops, err := st.ListOperations(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, ops)
}

func TestStore_RunMigrations(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RunMigrations())

	require.NoError(t, st.SetValue(keySchemaVersion, "99"))
	assert.Error(t, st.RunMigrations())
}

func TestStore_GetSetValue(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.SetValue("test_key", "test_value"))
	val, err := st.GetValue("test_key")
	require.NoError(t, err)
	assert.Equal(t, "test_value", val)

	val, err = st.GetValue("nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "", val)
}

// ==================== Entry Tests ====================

func TestStore_EntryLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	created, err := st.CreateEntry(ctx, &models.Entry{
		Headword: "bank",
		Senses:   []*models.Sense{{ID: "s1"}, {ID: "s2"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.Revision)

	got, err := st.GetEntry(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, got.SenseIDs())

	got.RemoveSenses([]string{"s1"})
	updated, err := st.UpdateEntry(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Revision)

	_, err = st.UpdateEntry(ctx, got) // still revision 1
	assert.ErrorIs(t, err, docstore.ErrRevisionMismatch)

	_, err = st.GetSense(ctx, created.ID, "s1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, st.DeleteEntry(ctx, created.ID))
	_, err = st.GetEntry(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_CreateEntryRejectsInvalid(t *testing.T) {
	st := newTestStore(t)
	_, err := st.CreateEntry(context.Background(), &models.Entry{ID: "e1"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

// ==================== Operation Tests ====================

func TestStore_OperationStatusIsMonotonic(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	op := pendingOp("op1", time.Now())
	require.NoError(t, st.RecordOperation(ctx, op))
	assert.ErrorIs(t, st.RecordOperation(ctx, op), ErrOperationExists)

	result := &models.Result{OperationID: "op1", Success: true}
	require.NoError(t, st.UpdateOperationStatus(ctx, "op1", models.StatusCompleted, result))
	// identical replay is accepted
	require.NoError(t, st.UpdateOperationStatus(ctx, "op1", models.StatusCompleted, result))
	// regression is not
	assert.ErrorIs(t, st.UpdateOperationStatus(ctx, "op1", models.StatusFailed, result), ErrStatusFinal)
	assert.Error(t, st.UpdateOperationStatus(ctx, "op1", models.StatusPending, nil))

	got, err := st.GetOperation(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.True(t, got.Result.Success)
	assert.False(t, got.FinishedAt.IsZero())
}

func TestStore_FailOperation(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	finished := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	op := pendingOp("op1", finished.Add(-time.Second))
	require.NoError(t, st.RecordOperation(ctx, op))
	failed := op.Clone()
	failed.Status = models.StatusFailed
	failed.FinishedAt = finished
	failed.Result = &models.Result{OperationID: "op1"}
	require.NoError(t, st.FailOperation(ctx, failed))
	require.NoError(t, st.FailOperation(ctx, failed))

	got, err := st.GetOperation(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.True(t, got.FinishedAt.Equal(finished))

	// a completed operation is never turned into a failed one
	done := pendingOp("op2", finished)
	require.NoError(t, st.RecordOperation(ctx, done))
	require.NoError(t, st.UpdateOperationStatus(ctx, "op2", models.StatusCompleted, &models.Result{OperationID: "op2", Success: true}))
	replay := done.Clone()
	replay.Status = models.StatusFailed
	assert.ErrorIs(t, st.FailOperation(ctx, replay), ErrStatusFinal)

	assert.Error(t, st.FailOperation(ctx, pendingOp("op3", finished)), "only failed operations are accepted")
}

func TestStore_GetOperationNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetOperation(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestStore_ListOperationsByStatusAndStuck(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now()

	require.NoError(t, st.RecordOperation(ctx, pendingOp("old", now.Add(-2*time.Hour))))
	require.NoError(t, st.RecordOperation(ctx, pendingOp("fresh", now.Add(-time.Minute))))
	require.NoError(t, st.RecordOperation(ctx, pendingOp("done", now.Add(-3*time.Hour))))
	require.NoError(t, st.UpdateOperationStatus(ctx, "done", models.StatusFailed, &models.Result{}))

	all, err := st.ListOperations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "fresh", all[0].ID, "newest first")

	pending, err := st.ListOperationsByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	stuck, err := st.ListStuckOperations(ctx, time.Hour, now)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "old", stuck[0].ID)
}

// ==================== Ledger Tests ====================

func TestStore_TransfersAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tr := transfer("op1", 0, "s1", "e1", "e2", time.Now())

	require.NoError(t, st.RecordTransfer(ctx, tr))
	assert.ErrorIs(t, st.RecordTransfer(ctx, tr), ErrTransferExists)

	all, err := st.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_TransferProvenance(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	t0 := time.Now()

	require.NoError(t, st.RecordTransfer(ctx, transfer("op2", 0, "s1", "e2", "e3", t0.Add(time.Minute))))
	require.NoError(t, st.RecordTransfer(ctx, transfer("op1", 0, "s1", "e1", "e2", t0)))
	require.NoError(t, st.RecordTransfer(ctx, transfer("op1", 1, "s2", "e1", "e2", t0)))

	renamed := transfer("op3", 0, "s1-1", "e3", "e4", t0.Add(2*time.Minute))
	renamed.OriginalSenseID = "s1"
	require.NoError(t, st.RecordTransfer(ctx, renamed))

	trail, err := st.TransfersBySense(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "e1", trail[0].OriginalEntryID)
	assert.Equal(t, "e2", trail[1].OriginalEntryID)
	assert.Equal(t, "s1-1", trail[2].SenseID)

	byEntry, err := st.TransfersByEntry(ctx, "e2")
	require.NoError(t, err)
	assert.Len(t, byEntry, 3, "as destination twice and source once")

	none, err := st.TransfersBySense(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, none, "prefix of another sense id must not match")
}

func TestStore_CompleteOperationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	op := pendingOp("op1", time.Now())
	require.NoError(t, st.RecordOperation(ctx, op))

	done := op.Clone()
	done.Status = models.StatusCompleted
	done.Result = &models.Result{OperationID: "op1", Success: true, TransferredSenses: []string{"s1"}}
	transfers := []*models.SenseTransfer{transfer("op1", 0, "s1", "e1", "e2", time.Now())}

	require.NoError(t, st.CompleteOperation(ctx, done, transfers))
	require.NoError(t, st.CompleteOperation(ctx, done, transfers))

	all, err := st.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_CommitOperationIsAtomic(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	source, err := st.CreateEntry(ctx, &models.Entry{ID: "e1", Headword: "bank", Senses: []*models.Sense{{ID: "s1"}, {ID: "s2"}}})
	require.NoError(t, err)
	target, err := st.CreateEntry(ctx, &models.Entry{ID: "e2", Headword: "bank", Senses: []*models.Sense{{ID: "s9"}}})
	require.NoError(t, err)

	op := pendingOp("op1", time.Now())
	require.NoError(t, st.RecordOperation(ctx, op))
	done := op.Clone()
	done.Status = models.StatusCompleted

	// stale target revision fails the whole change set
	staleTarget := target.Clone()
	staleTarget.Revision = 7
	staleTarget.Senses = append(staleTarget.Senses, &models.Sense{ID: "s1"})
	newSource := source.Clone()
	newSource.RemoveSenses([]string{"s1"})

	err = st.CommitOperation(ctx, &docstore.ChangeSet{
		Updates:   []*models.Entry{newSource, staleTarget},
		Transfers: []*models.SenseTransfer{transfer("op1", 0, "s1", "e1", "e2", time.Now())},
		Operation: done,
	})
	require.ErrorIs(t, err, docstore.ErrRevisionMismatch)

	got, err := st.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, got.SenseIDs())
	stored, err := st.GetOperation(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	trail, err := st.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Empty(t, trail)

	// with the right revision everything lands together
	newTarget := target.Clone()
	newTarget.Senses = append(newTarget.Senses, &models.Sense{ID: "s1"})
	require.NoError(t, st.CommitOperation(ctx, &docstore.ChangeSet{
		Updates:   []*models.Entry{newSource, newTarget},
		Transfers: []*models.SenseTransfer{transfer("op1", 0, "s1", "e1", "e2", time.Now())},
		Operation: done,
	}))
	assert.Equal(t, int64(2), newTarget.Revision)

	got, err = st.GetEntry(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, []string{"s9", "s1"}, got.SenseIDs())
	stored, err = st.GetOperation(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	trail, err = st.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}
