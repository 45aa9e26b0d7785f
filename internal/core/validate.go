package core

import (
	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
)

func requireID(op, field, id string) error {
	if id == "" {
		return models.Errorf(models.KindValidation, op, "%s is required", field)
	}
	return nil
}

// validateSenseIDs checks a non-empty list of distinct, non-empty sense IDs.
func validateSenseIDs(op string, ids []string) error {
	if len(ids) == 0 {
		return models.Errorf(models.KindValidation, op, "sense_ids must not be empty")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return models.Errorf(models.KindValidation, op, "sense id must not be empty")
		}
		if seen[id] {
			return models.Errorf(models.KindValidation, op, "duplicate sense id %q", id)
		}
		seen[id] = true
	}
	return nil
}

// requireSenses fails with NotFound for the first id missing from e.
func requireSenses(e *models.Entry, ids ...string) error {
	for _, id := range ids {
		if e.SenseIndex(id) < 0 {
			return docstore.SenseNotFound(e.ID, id)
		}
	}
	return nil
}
