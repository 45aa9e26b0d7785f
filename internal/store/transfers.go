package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kilupskalvis/lexmerge/internal/models"
	bolt "go.etcd.io/bbolt"
)

// RecordTransfer appends one transfer row to the ledger on its own. The
// engine never calls it: operations write their rows through
// CompleteOperation or CommitOperation, in the same transaction as the
// terminal status. It is the entry point for maintenance and imports. Rows
// are never updated; recording an existing ID fails with ErrTransferExists.
func (s *Store) RecordTransfer(_ context.Context, t *models.SenseTransfer) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putTransferTx(tx, t)
	})
}

// ListTransfers returns the whole ledger ordered by transfer date.
func (s *Store) ListTransfers(_ context.Context) ([]*models.SenseTransfer, error) {
	var transfers []*models.SenseTransfer
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTransfers).ForEach(func(_, v []byte) error {
			var t models.SenseTransfer
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("unmarshal transfer: %w", err)
			}
			transfers = append(transfers, &t)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortTransfers(transfers)
	return transfers, nil
}

// TransfersBySense returns the provenance trail of one sense, oldest first.
// A sense renamed on transfer is found under both its old and new ID.
func (s *Store) TransfersBySense(_ context.Context, senseID string) ([]*models.SenseTransfer, error) {
	return s.transfersByIndex(bucketTransfersSense, senseID)
}

// TransfersByEntry returns every transfer with the entry as source or
// destination, oldest first.
func (s *Store) TransfersByEntry(_ context.Context, entryID string) ([]*models.SenseTransfer, error) {
	return s.transfersByIndex(bucketTransfersEntry, entryID)
}

func (s *Store) transfersByIndex(index []byte, key string) ([]*models.SenseTransfer, error) {
	var transfers []*models.SenseTransfer
	err := s.db.View(func(tx *bolt.Tx) error {
		rows := tx.Bucket(bucketTransfers)
		prefix := indexPrefix(key)
		c := tx.Bucket(index).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			data := rows.Get(k[len(prefix):])
			if data == nil {
				continue
			}
			var t models.SenseTransfer
			if err := json.Unmarshal(data, &t); err != nil {
				return fmt.Errorf("unmarshal transfer: %w", err)
			}
			transfers = append(transfers, &t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTransfers(transfers)
	return transfers, nil
}

func putTransferTx(tx *bolt.Tx, t *models.SenseTransfer) error {
	rows := tx.Bucket(bucketTransfers)
	if rows.Get([]byte(t.ID)) != nil {
		return fmt.Errorf("%w: %s", ErrTransferExists, t.ID)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transfer: %w", err)
	}
	if err := rows.Put([]byte(t.ID), data); err != nil {
		return err
	}

	bySense := tx.Bucket(bucketTransfersSense)
	if err := bySense.Put(indexKey(t.SenseID, t.ID), nil); err != nil {
		return err
	}
	if t.OriginalSenseID != "" && t.OriginalSenseID != t.SenseID {
		if err := bySense.Put(indexKey(t.OriginalSenseID, t.ID), nil); err != nil {
			return err
		}
	}

	byEntry := tx.Bucket(bucketTransfersEntry)
	if err := byEntry.Put(indexKey(t.OriginalEntryID, t.ID), nil); err != nil {
		return err
	}
	return byEntry.Put(indexKey(t.NewEntryID, t.ID), nil)
}

func sortTransfers(transfers []*models.SenseTransfer) {
	sort.SliceStable(transfers, func(i, j int) bool {
		if !transfers[i].TransferDate.Equal(transfers[j].TransferDate) {
			return transfers[i].TransferDate.Before(transfers[j].TransferDate)
		}
		return transfers[i].ID < transfers[j].ID
	})
}
