package core

import (
	"context"

	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/kilupskalvis/lexmerge/internal/resolver"
)

// SplitRequest moves SenseIDs out of SourceEntryID into a new entry.
type SplitRequest struct {
	SourceEntryID string
	SenseIDs      []string
	NewEntry      models.EntryDescriptor
	Actor         string
}

// Split creates a new entry holding copies of the selected senses, in the
// order given, and removes them from the source entry. Removing every
// sense of the source is allowed.
func (e *Engine) Split(ctx context.Context, req SplitRequest) (*models.Operation, error) {
	op := e.newOperation(models.OperationSplitEntry, req.Actor, req.SenseIDs)
	op.SourceID = req.SourceEntryID

	return e.run(ctx, op, validateSplit(req), []string{req.SourceEntryID}, func(ctx context.Context) (*plan, error) {
		return e.stageSplit(ctx, op, req)
	})
}

func validateSplit(req SplitRequest) error {
	if err := requireID("split", "source entry id", req.SourceEntryID); err != nil {
		return err
	}
	if err := validateSenseIDs("split", req.SenseIDs); err != nil {
		return err
	}
	return docstore.ValidateDescriptor(req.NewEntry)
}

func (e *Engine) stageSplit(ctx context.Context, op *models.Operation, req SplitRequest) (*plan, error) {
	fetched, err := e.fetchEntries(ctx, req.SourceEntryID)
	if err != nil {
		return nil, err
	}
	source := fetched[0]
	if err := requireSenses(source, req.SenseIDs...); err != nil {
		return nil, err
	}
	original := source.Clone()

	created := req.NewEntry.NewEntry(e.newID())
	p := newPlan()
	p.source, p.target, p.newEntry = source, created, created.ID

	at := e.now()
	for _, id := range req.SenseIDs {
		s := source.Sense(id).Clone()
		if created.SenseIndex(s.ID) >= 0 {
			s.ID = resolver.ReissueIn(created, s.ID)
			p.addRemap(id, s.ID)
		}
		created.Senses = append(created.Senses, s)
		p.addTransfer(op, at, id, s.ID, source.ID, created.ID, nil)
	}
	source.RemoveSenses(req.SenseIDs)

	p.writes = []stagedWrite{
		{entry: created},
		{entry: source, original: original},
	}
	return p, nil
}
