package core

import (
	"context"

	"github.com/kilupskalvis/lexmerge/internal/models"
	"github.com/kilupskalvis/lexmerge/internal/resolver"
)

// MergeSensesRequest folds SourceSenseIDs into TargetSenseID within EntryID.
type MergeSensesRequest struct {
	EntryID        string
	TargetSenseID  string
	SourceSenseIDs []string
	Strategy       models.SenseMergeStrategy // defaults to combine_all
	Actor          string
}

// MergeSenses combines the source senses into the target sense and removes
// them from the entry. No sense leaves the entry, so no transfers are
// written.
func (e *Engine) MergeSenses(ctx context.Context, req MergeSensesRequest) (*models.Operation, error) {
	if req.Strategy == "" {
		req.Strategy = models.MergeCombineAll
	}
	op := e.newOperation(models.OperationMergeSenses, req.Actor, req.SourceSenseIDs)
	op.EntryID = req.EntryID
	op.TargetID = req.TargetSenseID
	op.Metadata["merge_strategy"] = string(req.Strategy)

	return e.run(ctx, op, validateMergeSenses(req), []string{req.EntryID}, func(ctx context.Context) (*plan, error) {
		return e.stageMergeSenses(ctx, req)
	})
}

func validateMergeSenses(req MergeSensesRequest) error {
	if err := requireID("merge senses", "entry id", req.EntryID); err != nil {
		return err
	}
	if err := requireID("merge senses", "target sense id", req.TargetSenseID); err != nil {
		return err
	}
	if err := validateSenseIDs("merge senses", req.SourceSenseIDs); err != nil {
		return err
	}
	for _, id := range req.SourceSenseIDs {
		if id == req.TargetSenseID {
			return models.Errorf(models.KindValidation, "merge senses", "target sense %s is also listed as a source", id)
		}
	}
	return nil
}

func (e *Engine) stageMergeSenses(ctx context.Context, req MergeSensesRequest) (*plan, error) {
	fetched, err := e.fetchEntries(ctx, req.EntryID)
	if err != nil {
		return nil, err
	}
	entry := fetched[0]
	if err := requireSenses(entry, req.TargetSenseID); err != nil {
		return nil, err
	}
	if err := requireSenses(entry, req.SourceSenseIDs...); err != nil {
		return nil, err
	}
	original := entry.Clone()

	sources := make([]*models.Sense, len(req.SourceSenseIDs))
	for i, id := range req.SourceSenseIDs {
		sources[i] = entry.Sense(id)
	}
	idx := entry.SenseIndex(req.TargetSenseID)
	merged, err := resolver.MergeSenses(entry.Senses[idx], sources, req.Strategy)
	if err != nil {
		return nil, err
	}

	p := newPlan()
	p.target = entry
	switch req.Strategy {
	case models.MergeKeepTarget:
		p.warnf("content of %d source sense(s) discarded", len(sources))
	case models.MergeKeepSource:
		if len(sources) > 1 {
			p.warnf("content of %d source sense(s) after %s discarded", len(sources)-1, sources[0].ID)
		}
	}

	entry.Senses[idx] = merged
	entry.RemoveSenses(req.SourceSenseIDs)
	p.writes = []stagedWrite{{entry: entry, original: original}}
	return p, nil
}
