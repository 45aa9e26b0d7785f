package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kilupskalvis/lexmerge/internal/models"
	bolt "go.etcd.io/bbolt"
)

// RecordOperation stores a newly created operation.
func (s *Store) RecordOperation(_ context.Context, op *models.Operation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOperations)
		if b.Get([]byte(op.ID)) != nil {
			return fmt.Errorf("%w: %s", ErrOperationExists, op.ID)
		}
		return putOperation(b, op)
	})
}

// UpdateOperationStatus moves a pending operation to a terminal status.
// Repeating the same terminal status is a no-op; any other change to a
// terminal operation fails with ErrStatusFinal.
func (s *Store) UpdateOperationStatus(_ context.Context, id string, status models.OperationStatus, result *models.Result) error {
	return s.updateStatus(id, status, result, time.Now().UTC())
}

// FailOperation moves op to failed through the same path as
// UpdateOperationStatus, keeping op's own FinishedAt.
func (s *Store) FailOperation(_ context.Context, op *models.Operation) error {
	if op.Status != models.StatusFailed {
		return fmt.Errorf("operation %s is %s, not failed", op.ID, op.Status)
	}
	finished := op.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	return s.updateStatus(op.ID, models.StatusFailed, op.Result, finished)
}

func (s *Store) updateStatus(id string, status models.OperationStatus, result *models.Result, finished time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot move operation %s to non-terminal status %q", id, status)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		op, err := getOperationTx(tx, id)
		if err != nil {
			return err
		}
		op.Status = status
		op.Result = result
		op.FinishedAt = finished
		_, err = finishOperationTx(tx, op)
		return err
	})
}

// GetOperation retrieves an operation by ID.
func (s *Store) GetOperation(_ context.Context, id string) (*models.Operation, error) {
	var op *models.Operation
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		op, err = getOperationTx(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// ListOperations returns all operations, newest first.
func (s *Store) ListOperations(_ context.Context) ([]*models.Operation, error) {
	return s.filterOperations(func(*models.Operation) bool { return true })
}

// ListOperationsByStatus returns operations with the given status, newest first.
func (s *Store) ListOperationsByStatus(_ context.Context, status models.OperationStatus) ([]*models.Operation, error) {
	return s.filterOperations(func(op *models.Operation) bool { return op.Status == status })
}

// ListStuckOperations returns operations still pending more than horizon after creation.
func (s *Store) ListStuckOperations(_ context.Context, horizon time.Duration, now time.Time) ([]*models.Operation, error) {
	cutoff := now.Add(-horizon)
	return s.filterOperations(func(op *models.Operation) bool {
		return op.Status == models.StatusPending && op.Timestamp.Before(cutoff)
	})
}

func (s *Store) filterOperations(keep func(*models.Operation) bool) ([]*models.Operation, error) {
	var ops []*models.Operation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOperations).ForEach(func(_, v []byte) error {
			var op models.Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("unmarshal operation: %w", err)
			}
			if keep(&op) {
				ops = append(ops, &op)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if !ops[i].Timestamp.Equal(ops[j].Timestamp) {
			return ops[i].Timestamp.After(ops[j].Timestamp)
		}
		return ops[i].ID < ops[j].ID
	})
	return ops, nil
}

// finishOperationTx writes the terminal state of op. It reports false when
// the stored operation already carries the same terminal status, in which
// case nothing is written.
func finishOperationTx(tx *bolt.Tx, op *models.Operation) (bool, error) {
	if !op.Status.IsTerminal() {
		return false, fmt.Errorf("operation %s has non-terminal status %q", op.ID, op.Status)
	}
	stored, err := getOperationTx(tx, op.ID)
	if err != nil {
		return false, err
	}
	if stored.Status.IsTerminal() {
		if stored.Status == op.Status {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s is %s", ErrStatusFinal, op.ID, stored.Status)
	}
	return true, putOperation(tx.Bucket(bucketOperations), op)
}

func getOperationTx(tx *bolt.Tx, id string) (*models.Operation, error) {
	data := tx.Bucket(bucketOperations).Get([]byte(id))
	if data == nil {
		return nil, &models.Error{Kind: models.KindNotFound, Op: "get operation", Message: "operation " + id + " not found", Err: ErrOperationNotFound}
	}
	var op models.Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("unmarshal operation: %w", err)
	}
	return &op, nil
}

func putOperation(b *bolt.Bucket, op *models.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}
	return b.Put([]byte(op.ID), data)
}
