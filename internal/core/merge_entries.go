package core

import (
	"context"

	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/kilupskalvis/lexmerge/internal/resolver"
)

// MergeEntriesRequest moves SenseIDs from SourceEntryID into TargetEntryID.
type MergeEntriesRequest struct {
	TargetEntryID string
	SourceEntryID string
	SenseIDs      []string
	Strategy      models.ConflictStrategy // defaults to rename
	Actor         string
}

// MergeEntries appends the selected senses, in the order given, to the
// target entry and removes them from the source. Each collision with a
// target sense is settled by the conflict strategy. Skipped senses stay on
// the source and are reported as warnings.
func (e *Engine) MergeEntries(ctx context.Context, req MergeEntriesRequest) (*models.Operation, error) {
	if req.Strategy == "" {
		req.Strategy = models.ConflictRename
	}
	op := e.newOperation(models.OperationMergeEntries, req.Actor, req.SenseIDs)
	op.SourceID = req.SourceEntryID
	op.TargetID = req.TargetEntryID
	op.Metadata["conflict_strategy"] = string(req.Strategy)

	return e.run(ctx, op, validateMergeEntries(req), []string{req.SourceEntryID, req.TargetEntryID}, func(ctx context.Context) (*plan, error) {
		return e.stageMergeEntries(ctx, op, req)
	})
}

func validateMergeEntries(req MergeEntriesRequest) error {
	if err := requireID("merge entries", "target entry id", req.TargetEntryID); err != nil {
		return err
	}
	if err := requireID("merge entries", "source entry id", req.SourceEntryID); err != nil {
		return err
	}
	if req.TargetEntryID == req.SourceEntryID {
		return models.Errorf(models.KindValidation, "merge entries", "cannot merge entry %s into itself", req.SourceEntryID)
	}
	return validateSenseIDs("merge entries", req.SenseIDs)
}

func (e *Engine) stageMergeEntries(ctx context.Context, op *models.Operation, req MergeEntriesRequest) (*plan, error) {
	fetched, err := e.fetchEntries(ctx, req.SourceEntryID, req.TargetEntryID)
	if err != nil {
		return nil, err
	}
	source, target := fetched[0], fetched[1]
	if err := requireSenses(source, req.SenseIDs...); err != nil {
		return nil, err
	}
	originalSource, originalTarget := source.Clone(), target.Clone()

	p := newPlan()
	p.source, p.target = source, target

	at := e.now()
	placer := resolver.NewPlacer(target, req.Strategy)
	var moved []string
	for _, id := range req.SenseIDs {
		incoming := source.Sense(id).Clone()
		d, err := placer.Place(incoming)
		if err != nil {
			return nil, err
		}
		if d.Conflicted() {
			p.result.ConflictsResolved++
		}

		switch d.Action {
		case resolver.ActionSkip:
			p.warnf("sense %s skipped: collides with %s on %s", id, d.Collision.ExistingID, target.ID)
			continue
		case resolver.ActionRename:
			if d.Fallback {
				p.warnf("sense %s collides with %s placed by this merge; kept as %s", id, d.Collision.ExistingID, d.NewID)
			} else if d.NewID == id {
				p.warnf("sense %s duplicates the content of %s; both kept", id, d.Collision.ExistingID)
			}
		case resolver.ActionOverwrite:
			p.warnf("sense %s on %s overwritten by %s", d.Collision.ExistingID, target.ID, id)
		}
		if d.NewID != id {
			p.addRemap(id, d.NewID)
		}
		moved = append(moved, id)
		p.addTransfer(op, at, id, d.NewID, source.ID, target.ID, transferMetadata(req.Strategy, d))
	}

	if len(moved) > 0 {
		source.RemoveSenses(moved)
		p.writes = []stagedWrite{
			{entry: target, original: originalTarget},
			{entry: source, original: originalSource},
		}
	}
	return p, nil
}

// transferMetadata describes how a moved sense was placed on the target.
func transferMetadata(strategy models.ConflictStrategy, d resolver.Decision) map[string]string {
	meta := map[string]string{"conflict_strategy": string(strategy)}
	if d.Conflicted() {
		meta["resolution"] = string(d.Action)
		meta["collided_with"] = d.Collision.ExistingID
	}
	return meta
}
