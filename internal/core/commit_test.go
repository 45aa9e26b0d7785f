package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kilupskalvis/lexmerge/internal/audit"
	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/kilupskalvis/lexmerge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyJournal fails every CompleteOperation.
type faultyJournal struct {
	*store.Store
}

func (f *faultyJournal) CompleteOperation(context.Context, *models.Operation, []*models.SenseTransfer) error {
	return errors.New("ledger unavailable")
}

type captureRecorder struct {
	mu     sync.Mutex
	events []*audit.Event
	err    error
}

func (c *captureRecorder) Record(_ context.Context, ev *audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

// ==================== Atomicity ====================

func TestMergeEntries_TargetWriteFailureLeavesSourceIntact(t *testing.T) {
	eng, ms, journal := newMockEngine(t, testEntry("e1", "s1", "s2"), testEntry("e2", "t1"))
	ms.UpdateErr = func(e *models.Entry) error {
		if e.ID == "e2" {
			return errors.New("disk full")
		}
		return nil
	}

	op, err := eng.MergeEntries(context.Background(), MergeEntriesRequest{
		TargetEntryID: "e2", SourceEntryID: "e1", SenseIDs: []string{"s1"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStore)
	assert.Equal(t, models.StatusFailed, op.Status)
	assert.Equal(t, models.KindStore, op.Result.Errors[0].Kind)

	assert.Equal(t, []string{"s1", "s2"}, getEntry(t, ms, "e1").SenseIDs())
	assert.Equal(t, []string{"t1"}, getEntry(t, ms, "e2").SenseIDs())
	assert.Empty(t, ms.Writes)

	transfers, err := journal.ListTransfers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestMergeEntries_SourceWriteFailureRollsBackTarget(t *testing.T) {
	eng, ms, _ := newMockEngine(t, testEntry("e1", "s1", "s2"), testEntry("e2", "t1"))
	ms.UpdateErr = func(e *models.Entry) error {
		if e.ID == "e1" {
			return errors.New("disk full")
		}
		return nil
	}

	op, err := eng.MergeEntries(context.Background(), MergeEntriesRequest{
		TargetEntryID: "e2", SourceEntryID: "e1", SenseIDs: []string{"s1"},
	})
	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, op.Status)

	// s1 was briefly on both entries, never on neither
	assert.Equal(t, []string{"update:e2", "update:e2"}, ms.Writes)
	assert.Equal(t, []string{"s1", "s2"}, getEntry(t, ms, "e1").SenseIDs())
	assert.Equal(t, []string{"t1"}, getEntry(t, ms, "e2").SenseIDs())
}

func TestSplit_SourceWriteFailureDeletesNewEntry(t *testing.T) {
	eng, ms, _ := newMockEngine(t, testEntry("e1", "s1", "s2"))
	ms.UpdateErr = func(*models.Entry) error { return errors.New("disk full") }

	op, err := eng.Split(context.Background(), SplitRequest{
		SourceEntryID: "e1", SenseIDs: []string{"s1"},
		NewEntry: models.EntryDescriptor{Headword: "bank"},
	})
	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, op.Status)
	require.Len(t, ms.Writes, 2)
	assert.Contains(t, ms.Writes[1], "delete:")

	entries, err := ms.ListEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"s1", "s2"}, entries[0].SenseIDs())
}

func TestMergeEntries_LedgerFailureRollsBackEntries(t *testing.T) {
	ctx := context.Background()
	ms := docstore.NewMockStore()
	ms.AddEntry(testEntry("e1", "s1", "s2"))
	ms.AddEntry(testEntry("e2", "t1"))
	journal := &faultyJournal{Store: newTestJournal(t)}
	eng := NewEngine(ms, journal)

	op, err := eng.MergeEntries(ctx, MergeEntriesRequest{
		TargetEntryID: "e2", SourceEntryID: "e1", SenseIDs: []string{"s1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger unavailable")
	assert.Equal(t, models.StatusFailed, op.Status)

	assert.Equal(t, []string{"s1", "s2"}, getEntry(t, ms, "e1").SenseIDs())
	assert.Equal(t, []string{"t1"}, getEntry(t, ms, "e2").SenseIDs())

	stored, err := journal.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
}

// ==================== Atomic store ====================

func newBoltEngine(t *testing.T, entries ...*models.Entry) (*Engine, *store.Store) {
	t.Helper()
	st := newTestJournal(t)
	for _, e := range entries {
		_, err := st.CreateEntry(context.Background(), e)
		require.NoError(t, err)
	}
	eng := NewEngine(st, st)
	require.NotNil(t, eng.atomic)
	return eng, st
}

func TestEngine_AtomicCommit(t *testing.T) {
	ctx := context.Background()
	eng, st := newBoltEngine(t, testEntry("e1", "s1", "s2"), testEntry("e2", "s1"))

	op, err := eng.MergeEntries(ctx, MergeEntriesRequest{
		TargetEntryID: "e2", SourceEntryID: "e1", SenseIDs: []string{"s1", "s2"},
	})
	require.NoError(t, err)

	target := getEntry(t, st, "e2")
	assert.Equal(t, []string{"s1", "s1-1", "s2"}, target.SenseIDs())
	assert.Empty(t, getEntry(t, st, "e1").Senses)
	assert.Equal(t, target.Revision, op.Result.TargetEntry.Revision)

	stored, err := st.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, int64(2), stored.Result.TargetEntry.Revision)
	assert.Equal(t, "s1-1", stored.Metadata["remap.s1"])
}

func TestEngine_AtomicCommitUsesEngineClock(t *testing.T) {
	ctx := context.Background()
	_, st := newBoltEngine(t, testEntry("e1", "s1", "s2"), testEntry("e2", "t1"))
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	eng := NewEngine(st, st, WithClock(func() time.Time { return at }))

	op, err := eng.MergeEntries(ctx, MergeEntriesRequest{
		TargetEntryID: "e2", SourceEntryID: "e1", SenseIDs: []string{"s1"},
	})
	require.NoError(t, err)

	target, source := getEntry(t, st, "e2"), getEntry(t, st, "e1")
	assert.True(t, target.UpdatedAt.Equal(at), "stored at %s", target.UpdatedAt)
	assert.True(t, source.UpdatedAt.Equal(at), "stored at %s", source.UpdatedAt)
	assert.True(t, op.Result.TargetEntry.UpdatedAt.Equal(target.UpdatedAt))
	assert.True(t, op.Result.SourceEntry.UpdatedAt.Equal(source.UpdatedAt))

	stored, err := st.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.True(t, stored.Result.TargetEntry.UpdatedAt.Equal(target.UpdatedAt))
	assert.True(t, stored.FinishedAt.Equal(at))
}

func TestEngine_LedgerReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, st := newBoltEngine(t, testEntry("e1", "s1", "s2", "s3"), testEntry("e2"))

	op, err := eng.MergeEntries(ctx, MergeEntriesRequest{
		TargetEntryID: "e2", SourceEntryID: "e1", SenseIDs: []string{"s1", "s3"},
	})
	require.NoError(t, err)

	transfers, err := st.ListTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	// replaying the completed operation writes nothing
	require.NoError(t, st.CompleteOperation(ctx, op, transfers))
	require.NoError(t, st.CommitOperation(ctx, &docstore.ChangeSet{
		Updates:   []*models.Entry{op.Result.TargetEntry, op.Result.SourceEntry},
		Transfers: transfers,
		Operation: op,
	}))

	again, err := st.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, op.Result.TargetEntry.Revision, getEntry(t, st, "e2").Revision)
}

func TestEngine_SplitOnBolt(t *testing.T) {
	ctx := context.Background()
	eng, st := newBoltEngine(t, testEntry("e1", "s1", "s2", "s3", "s4"))

	op, err := eng.Split(ctx, SplitRequest{
		SourceEntryID: "e1", SenseIDs: []string{"s2", "s1", "s3"},
		NewEntry: models.EntryDescriptor{Headword: "bank"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1", "s3"}, getEntry(t, st, op.TargetID).SenseIDs())
	assert.Equal(t, []string{"s4"}, getEntry(t, st, "e1").SenseIDs())
	assert.Equal(t, int64(1), op.Result.TargetEntry.Revision)

	trail, err := eng.TransfersBySense(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, op.TargetID, trail[0].NewEntryID)
}

// ==================== MergeSenses ====================

func TestMergeSenses_CombineAllScenario(t *testing.T) {
	ctx := context.Background()
	e1 := &models.Entry{ID: "e1", Headword: "bank", Senses: []*models.Sense{
		{ID: "sA", Definition: models.MultiText{"en": "defA"}, Examples: []models.Example{{Text: "exA"}}},
		{ID: "sB", Definition: models.MultiText{"en": "defB"}, Examples: []models.Example{{Text: "exA"}, {Text: "exB"}}},
		{ID: "sC", Definition: models.MultiText{"en": "defC"}},
	}}
	eng, ms, journal := newMockEngine(t, e1)

	op, err := eng.MergeSenses(ctx, MergeSensesRequest{
		EntryID:        "e1",
		TargetSenseID:  "sA",
		SourceSenseIDs: []string{"sB", "sC"},
		Strategy:       models.MergeCombineAll,
	})
	require.NoError(t, err)
	assert.Equal(t, "e1", op.EntryID)
	assert.Equal(t, "sA", op.TargetID)
	assert.Equal(t, []string{"sB", "sC"}, op.SenseIDs)
	assert.Equal(t, "combine_all", op.Metadata["merge_strategy"])

	got := getEntry(t, ms, "e1")
	require.Len(t, got.Senses, 1)
	assert.Equal(t, "sA", got.Senses[0].ID)
	assert.Equal(t, "defA; defB; defC", got.Senses[0].Definition["en"])
	assert.Equal(t, []models.Example{{Text: "exA"}, {Text: "exB"}}, got.Senses[0].Examples)

	transfers, err := journal.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Empty(t, transfers)
	assert.Empty(t, op.Result.TransferredSenses)
}

func TestMergeSenses_KeepSource(t *testing.T) {
	e1 := testEntry("e1", "sA", "sB", "sC")
	eng, ms, _ := newMockEngine(t, e1)

	op, err := eng.MergeSenses(context.Background(), MergeSensesRequest{
		EntryID: "e1", TargetSenseID: "sA", SourceSenseIDs: []string{"sC", "sB"},
		Strategy: models.MergeKeepSource,
	})
	require.NoError(t, err)
	got := getEntry(t, ms, "e1")
	assert.Equal(t, []string{"sA"}, got.SenseIDs())
	assert.Equal(t, "gloss of sC", got.Senses[0].Gloss["en"])
	assert.Len(t, op.Result.Warnings, 1)
}

func TestMergeSenses_Errors(t *testing.T) {
	tests := []struct {
		name string
		req  MergeSensesRequest
		want error
	}{
		{"target among sources", MergeSensesRequest{EntryID: "e1", TargetSenseID: "sA", SourceSenseIDs: []string{"sB", "sA"}}, models.ErrValidation},
		{"no sources", MergeSensesRequest{EntryID: "e1", TargetSenseID: "sA"}, models.ErrValidation},
		{"missing target", MergeSensesRequest{EntryID: "e1", TargetSenseID: "sX", SourceSenseIDs: []string{"sB"}}, models.ErrNotFound},
		{"missing source", MergeSensesRequest{EntryID: "e1", TargetSenseID: "sA", SourceSenseIDs: []string{"sX"}}, models.ErrNotFound},
		{"missing entry", MergeSensesRequest{EntryID: "e9", TargetSenseID: "sA", SourceSenseIDs: []string{"sB"}}, models.ErrNotFound},
		{"unknown strategy", MergeSensesRequest{EntryID: "e1", TargetSenseID: "sA", SourceSenseIDs: []string{"sB"}, Strategy: "blend"}, models.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, ms, _ := newMockEngine(t, testEntry("e1", "sA", "sB", "sC"))
			op, err := eng.MergeSenses(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, models.StatusFailed, op.Status)
			assert.Empty(t, ms.Writes)
		})
	}
}

// ==================== Audit ====================

func TestEngine_RecordsOneEventPerOperation(t *testing.T) {
	rec := &captureRecorder{}
	ms := docstore.NewMockStore()
	ms.AddEntry(testEntry("e1", "s1", "s2"))
	ms.AddEntry(testEntry("e2"))
	eng := NewEngine(ms, newTestJournal(t), WithRecorder(rec))

	_, err := eng.MergeEntries(context.Background(), MergeEntriesRequest{
		TargetEntryID: "e2", SourceEntryID: "e1", SenseIDs: []string{"s1"},
	})
	require.NoError(t, err)
	_, err = eng.MergeEntries(context.Background(), MergeEntriesRequest{
		TargetEntryID: "e2", SourceEntryID: "e1", SenseIDs: []string{"s9"},
	})
	require.Error(t, err)

	require.Len(t, rec.events, 2)
	assert.Equal(t, audit.EventCompleted, rec.events[0].Event)
	assert.True(t, rec.events[0].Result.Success)
	assert.Equal(t, audit.EventFailed, rec.events[1].Event)
}

func TestEngine_RecorderFailureDoesNotFailOperation(t *testing.T) {
	rec := &captureRecorder{err: errors.New("webhook down")}
	ms := docstore.NewMockStore()
	ms.AddEntry(testEntry("e1", "s1"))
	ms.AddEntry(testEntry("e2"))
	eng := NewEngine(ms, newTestJournal(t), WithRecorder(rec))

	op, err := eng.MergeEntries(context.Background(), MergeEntriesRequest{
		TargetEntryID: "e2", SourceEntryID: "e1", SenseIDs: []string{"s1"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, op.Status)
	assert.Len(t, rec.events, 1)
}

// ==================== Concurrency ====================

func TestEngine_OverlappingOperationsSerialize(t *testing.T) {
	ctx := context.Background()
	const n = 20
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%02d", i)
	}
	eng, ms, journal := newMockEngine(t, testEntry("hub", ids...), testEntry("left"), testEntry("right"))

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i, id := range ids {
		target := "left"
		if i%2 == 1 {
			target = "right"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.MergeEntries(ctx, MergeEntriesRequest{
				TargetEntryID: target, SourceEntryID: "hub", SenseIDs: []string{id},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Empty(t, getEntry(t, ms, "hub").Senses)
	assert.Len(t, getEntry(t, ms, "left").Senses, n/2)
	assert.Len(t, getEntry(t, ms, "right").Senses, n/2)

	transfers, err := journal.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Len(t, transfers, n)
	completed, err := eng.OperationsByStatus(ctx, models.StatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, n)
}

// ==================== Queries ====================

func TestEngine_StuckOperations(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ms := docstore.NewMockStore()
	journal := newTestJournal(t)
	eng := NewEngine(ms, journal, WithClock(func() time.Time { return now }))

	require.NoError(t, journal.RecordOperation(ctx, &models.Operation{
		ID: "old", Type: models.OperationSplitEntry, Status: models.StatusPending, Timestamp: now.Add(-2 * time.Hour),
	}))
	require.NoError(t, journal.RecordOperation(ctx, &models.Operation{
		ID: "recent", Type: models.OperationSplitEntry, Status: models.StatusPending, Timestamp: now.Add(-time.Minute),
	}))

	stuck, err := eng.StuckOperations(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "old", stuck[0].ID)

	all, err := eng.ListOperations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = eng.OperationStatus(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEngine_IDGenerator(t *testing.T) {
	n := 0
	ms := docstore.NewMockStore()
	ms.AddEntry(testEntry("e1", "s1", "s2"))
	eng := NewEngine(ms, newTestJournal(t), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))

	op, err := eng.Split(context.Background(), SplitRequest{
		SourceEntryID: "e1", SenseIDs: []string{"s2"},
		NewEntry: models.EntryDescriptor{Headword: "bank"},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", op.ID)
	assert.Equal(t, "id-2", op.TargetID)

	transfers, err := eng.TransfersByEntry(context.Background(), "id-2")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "id-1:0000", transfers[0].ID)
}
