package core

import (
	"context"
	"time"

	"github.com/kilupskalvis/lexmerge/internal/models"
)

// ListOperations returns every recorded operation, newest first.
func (e *Engine) ListOperations(ctx context.Context) ([]*models.Operation, error) {
	return e.journal.ListOperations(ctx)
}

// GetOperation returns one operation by ID.
func (e *Engine) GetOperation(ctx context.Context, id string) (*models.Operation, error) {
	return e.journal.GetOperation(ctx, id)
}

// OperationStatus returns the current status of an operation.
func (e *Engine) OperationStatus(ctx context.Context, id string) (models.OperationStatus, error) {
	op, err := e.journal.GetOperation(ctx, id)
	if err != nil {
		return "", err
	}
	return op.Status, nil
}

// OperationsByStatus returns the operations with the given status.
func (e *Engine) OperationsByStatus(ctx context.Context, status models.OperationStatus) ([]*models.Operation, error) {
	return e.journal.ListOperationsByStatus(ctx, status)
}

// StuckOperations returns operations still pending longer than horizon.
// It is a health signal; nothing is retried or repaired.
func (e *Engine) StuckOperations(ctx context.Context, horizon time.Duration) ([]*models.Operation, error) {
	return e.journal.ListStuckOperations(ctx, horizon, e.now())
}

// ListTransfers returns the whole transfer ledger.
func (e *Engine) ListTransfers(ctx context.Context) ([]*models.SenseTransfer, error) {
	return e.journal.ListTransfers(ctx)
}

// TransfersBySense returns the provenance trail of a sense.
func (e *Engine) TransfersBySense(ctx context.Context, senseID string) ([]*models.SenseTransfer, error) {
	return e.journal.TransfersBySense(ctx, senseID)
}

// TransfersByEntry returns every transfer into or out of an entry.
func (e *Engine) TransfersByEntry(ctx context.Context, entryID string) ([]*models.SenseTransfer, error) {
	return e.journal.TransfersByEntry(ctx, entryID)
}
