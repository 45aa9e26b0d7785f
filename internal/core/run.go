package core

import (
	"context"
	"fmt"
	"time"

	"github.com/kilupskalvis/lexmerge/internal/audit"
	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"golang.org/x/sync/errgroup"
)

// plan is the fully staged outcome of one operation. Entries in it are
// private copies; nothing is visible to other readers until commit.
type plan struct {
	source    *models.Entry
	target    *models.Entry
	writes    []stagedWrite // destination first, source last
	transfers []*models.SenseTransfer
	metadata  map[string]string
	result    *models.Result
	newEntry  string // split only
}

type stagedWrite struct {
	entry    *models.Entry
	original *models.Entry // nil when entry is created
}

func newPlan() *plan {
	return &plan{
		metadata: map[string]string{},
		result:   &models.Result{TransferredSenses: []string{}},
	}
}

// addTransfer stages one ledger row. A sense whose ID changed on the way
// carries a remap.<old> key in its metadata, like the operation does.
func (p *plan) addTransfer(op *models.Operation, at time.Time, originalID, senseID, from, to string, meta map[string]string) {
	t := &models.SenseTransfer{
		ID:              models.TransferID(op.ID, len(p.transfers)),
		SenseID:         senseID,
		OriginalEntryID: from,
		NewEntryID:      to,
		TransferDate:    at,
		OperationID:     op.ID,
		Metadata:        meta,
	}
	if originalID != senseID {
		t.OriginalSenseID = originalID
		if t.Metadata == nil {
			t.Metadata = map[string]string{}
		}
		t.Metadata["remap."+originalID] = senseID
	}
	p.transfers = append(p.transfers, t)
	p.result.TransferredSenses = append(p.result.TransferredSenses, senseID)
}

func (p *plan) addRemap(from, to string) {
	if p.result.Remaps == nil {
		p.result.Remaps = map[string]string{}
	}
	p.result.Remaps[from] = to
	p.metadata["remap."+from] = to
}

func (p *plan) warnf(format string, args ...any) {
	p.result.Warnings = append(p.result.Warnings, fmt.Sprintf(format, args...))
}

func (p *plan) writeFor(e *models.Entry) *stagedWrite {
	for i := range p.writes {
		if p.writes[i].entry == e {
			return &p.writes[i]
		}
	}
	return nil
}

// predicted returns e as the store will hold it after commit.
func (p *plan) predicted(e *models.Entry, at time.Time) *models.Entry {
	if e == nil {
		return nil
	}
	s := e.Clone()
	if w := p.writeFor(e); w != nil {
		s.UpdatedAt = at
		if w.original == nil {
			s.Revision = 1
		} else {
			s.Revision++
		}
	}
	return s
}

// storedSnapshots refreshes r from the entries after they were written.
func (p *plan) storedSnapshots(r *models.Result) {
	if p.source != nil {
		r.SourceEntry = p.source.Clone()
	}
	if p.target != nil {
		r.TargetEntry = p.target.Clone()
	}
}

// run drives one operation from pending to a terminal state. verr is a
// precondition failure found before any entry was read.
func (e *Engine) run(ctx context.Context, op *models.Operation, verr error, lockIDs []string, stage func(context.Context) (*plan, error)) (*models.Operation, error) {
	logger := e.logger.With("operation_id", op.ID, "type", op.Type)

	if err := e.journal.RecordOperation(ctx, op); err != nil {
		return e.fail(ctx, op, models.WrapError(models.KindStore, "record operation", err), false)
	}
	logger.Info("operation started", "senses", op.SenseIDs, "actor", op.Actor)

	if verr != nil {
		return e.fail(ctx, op, verr, true)
	}

	unlock := e.locks.lock(lockIDs...)
	defer unlock()

	p, err := stage(ctx)
	if err != nil {
		return e.fail(ctx, op, err, true)
	}

	// Mutation has begun; the caller can no longer cancel it.
	wctx := context.WithoutCancel(ctx)

	done := e.completed(op, p)
	if err := e.commit(wctx, done, p); err != nil {
		return e.fail(wctx, op, err, true)
	}
	p.storedSnapshots(done.Result)

	logger.Info("operation completed",
		"transferred", len(done.Result.TransferredSenses),
		"conflicts", done.Result.ConflictsResolved,
		"warnings", len(done.Result.Warnings))
	e.record(wctx, done)
	return done, nil
}

// completed builds the terminal record for a successfully staged plan.
func (e *Engine) completed(op *models.Operation, p *plan) *models.Operation {
	done := op.Clone()
	done.Status = models.StatusCompleted
	done.FinishedAt = e.now()
	if p.newEntry != "" {
		done.TargetID = p.newEntry
	}
	if done.Metadata == nil {
		done.Metadata = map[string]string{}
	}
	for k, v := range p.metadata {
		done.Metadata[k] = v
	}

	r := p.result
	r.OperationID = op.ID
	r.Success = true
	r.SourceEntry = p.predicted(p.source, done.FinishedAt)
	r.TargetEntry = p.predicted(p.target, done.FinishedAt)
	done.Result = r
	return done
}

// fail moves op to failed, persisting the record when it was recorded as pending.
func (e *Engine) fail(ctx context.Context, op *models.Operation, err error, recorded bool) (*models.Operation, error) {
	ctx = context.WithoutCancel(ctx)
	merr := models.WrapError(models.KindStore, string(op.Type), err)

	failed := op.Clone()
	failed.Status = models.StatusFailed
	failed.FinishedAt = e.now()
	failed.Result = &models.Result{
		OperationID:       op.ID,
		TransferredSenses: []string{},
		Errors:            []models.OperationError{models.ToOperationError(merr)},
	}

	if recorded {
		if perr := e.journal.FailOperation(ctx, failed); perr != nil {
			e.logger.Error("record failed operation", "operation_id", op.ID, "error", perr)
		}
	}
	e.logger.Warn("operation failed", "operation_id", op.ID, "type", op.Type, "kind", merr.Kind, "error", merr)
	e.record(ctx, failed)
	return failed, merr
}

func (e *Engine) record(ctx context.Context, op *models.Operation) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, audit.NewEvent(op)); err != nil {
		e.logger.Warn("audit record failed", "operation_id", op.ID, "error", err)
	}
}

// commit makes the plan durable. With an atomic store everything lands in
// one transaction; otherwise entries are written first and undone if a
// later write fails.
func (e *Engine) commit(ctx context.Context, done *models.Operation, p *plan) error {
	if e.atomic != nil {
		cs := &docstore.ChangeSet{Transfers: p.transfers, Operation: done, At: done.FinishedAt}
		for _, w := range p.writes {
			if w.original == nil {
				cs.Creates = append(cs.Creates, w.entry)
			} else {
				cs.Updates = append(cs.Updates, w.entry)
			}
		}
		if err := e.atomic.CommitOperation(ctx, cs); err != nil {
			return models.WrapError(models.KindStore, "commit operation", err)
		}
		return nil
	}

	applied, err := e.writeEntries(ctx, p)
	if err != nil {
		return err
	}
	p.storedSnapshots(done.Result)

	if err := e.journal.CompleteOperation(ctx, done, p.transfers); err != nil {
		err = models.WrapError(models.KindStore, "complete operation", err)
		if rbErr := e.rollback(ctx, applied); rbErr != nil {
			return fmt.Errorf("%w; rollback: %v", err, rbErr)
		}
		return err
	}
	return nil
}

// writeEntries applies the staged writes and returns the ones that landed.
// On failure the already applied writes are rolled back.
func (e *Engine) writeEntries(ctx context.Context, p *plan) ([]stagedWrite, error) {
	if bw, ok := e.entries.(docstore.BatchWriter); ok {
		var creates, updates []*models.Entry
		for _, w := range p.writes {
			if w.original == nil {
				creates = append(creates, w.entry)
			} else {
				updates = append(updates, w.entry)
			}
		}
		if err := bw.WriteEntries(ctx, creates, updates); err != nil {
			return nil, models.WrapError(models.KindStore, "write entries", err)
		}
		return p.writes, nil
	}

	applied := make([]stagedWrite, 0, len(p.writes))
	for _, w := range p.writes {
		var stored *models.Entry
		var err error
		if w.original == nil {
			stored, err = e.entries.CreateEntry(ctx, w.entry)
		} else {
			stored, err = e.entries.UpdateEntry(ctx, w.entry)
		}
		if err != nil {
			err = models.WrapError(models.KindStore, "write entry "+w.entry.ID, err)
			if rbErr := e.rollback(ctx, applied); rbErr != nil {
				return nil, fmt.Errorf("%w; rollback: %v", err, rbErr)
			}
			return nil, err
		}
		w.entry.Revision = stored.Revision
		w.entry.UpdatedAt = stored.UpdatedAt
		applied = append(applied, w)
	}
	return applied, nil
}

// rollback undoes applied writes in reverse order: created entries are
// deleted, updated entries get their original content back.
func (e *Engine) rollback(ctx context.Context, applied []stagedWrite) error {
	var firstErr error
	for i := len(applied) - 1; i >= 0; i-- {
		w := applied[i]
		var err error
		if w.original == nil {
			err = e.entries.DeleteEntry(ctx, w.entry.ID)
		} else {
			restore := w.original.Clone()
			restore.Revision = w.entry.Revision
			_, err = e.entries.UpdateEntry(ctx, restore)
		}
		if err != nil {
			e.logger.Error("rollback entry failed", "entry_id", w.entry.ID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("entry %s: %w", w.entry.ID, err)
			}
			continue
		}
		e.logger.Warn("rolled back entry", "entry_id", w.entry.ID)
	}
	return firstErr
}

// fetchEntries reads the entries concurrently, in the order given.
func (e *Engine) fetchEntries(ctx context.Context, ids ...string) ([]*models.Entry, error) {
	out := make([]*models.Entry, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			entry, err := e.entries.GetEntry(gctx, id)
			if err != nil {
				return models.WrapError(models.KindStore, "get entry "+id, err)
			}
			out[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
