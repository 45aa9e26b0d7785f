package store

import (
	"context"
	"time"

	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
	bolt "go.etcd.io/bbolt"
)

// CompleteOperation writes an operation's transfer rows and its terminal
// status in one transaction. Replaying it for an operation that is
// already completed writes nothing, so transfer rows are never doubled.
func (s *Store) CompleteOperation(_ context.Context, op *models.Operation, transfers []*models.SenseTransfer) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := completeTx(tx, op, transfers)
		return err
	})
}

// CommitOperation applies entry writes, transfer rows and the terminal
// operation status in a single bbolt transaction.
func (s *Store) CommitOperation(_ context.Context, cs *docstore.ChangeSet) error {
	now := cs.At
	if now.IsZero() {
		now = time.Now().UTC()
	}
	var staged []*models.Entry
	err := s.db.Update(func(tx *bolt.Tx) error {
		fresh, err := completeTx(tx, cs.Operation, cs.Transfers)
		if err != nil || !fresh {
			return err
		}
		staged, err = writeEntriesTx(tx, cs.Creates, cs.Updates, now)
		return err
	})
	if err != nil {
		return err
	}
	if staged != nil {
		applyStaged(append(append([]*models.Entry{}, cs.Creates...), cs.Updates...), staged)
	}
	return nil
}

// completeTx reports false when op was already finished with the same
// status and nothing was written.
func completeTx(tx *bolt.Tx, op *models.Operation, transfers []*models.SenseTransfer) (bool, error) {
	fresh, err := finishOperationTx(tx, op)
	if err != nil || !fresh {
		return fresh, err
	}
	for _, t := range transfers {
		if err := putTransferTx(tx, t); err != nil {
			return false, err
		}
	}
	return true, nil
}
