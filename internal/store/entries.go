package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	_ docstore.Store           = (*Store)(nil)
	_ docstore.AtomicCommitter = (*Store)(nil)
	_ docstore.BatchWriter     = (*Store)(nil)
)

// GetEntry retrieves an entry by ID.
func (s *Store) GetEntry(_ context.Context, id string) (*models.Entry, error) {
	var entry *models.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		entry, err = getEntryTx(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetSense retrieves one sense of an entry.
func (s *Store) GetSense(ctx context.Context, entryID, senseID string) (*models.Sense, error) {
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return docstore.FindSense(entry, senseID)
}

// CreateEntry stores a new entry, assigning an ID when empty.
func (s *Store) CreateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	c := entry.Clone()
	if err := s.WriteEntries(ctx, []*models.Entry{c}, nil); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateEntry replaces an entry when its revision matches the stored one.
func (s *Store) UpdateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	c := entry.Clone()
	if err := s.WriteEntries(ctx, nil, []*models.Entry{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteEntry removes an entry.
func (s *Store) DeleteEntry(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b.Get([]byte(id)) == nil {
			return docstore.NotFound(id)
		}
		return b.Delete([]byte(id))
	})
}

// ListEntries returns all entries sorted by headword.
func (s *Store) ListEntries(_ context.Context) ([]*models.Entry, error) {
	var entries []*models.Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(_, v []byte) error {
			var e models.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal entry: %w", err)
			}
			entries = append(entries, &e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	docstore.SortEntries(entries)
	return entries, nil
}

// WriteEntries creates and conditionally updates entries in one transaction.
func (s *Store) WriteEntries(_ context.Context, creates, updates []*models.Entry) error {
	now := time.Now().UTC()
	var staged []*models.Entry
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		staged, err = writeEntriesTx(tx, creates, updates, now)
		return err
	})
	if err != nil {
		return err
	}
	applyStaged(append(append([]*models.Entry{}, creates...), updates...), staged)
	return nil
}

// writeEntriesTx validates and stores entries, returning the stored copies
// in creates-then-updates order. Callers copy the new revisions back only
// once the transaction has committed.
func writeEntriesTx(tx *bolt.Tx, creates, updates []*models.Entry, now time.Time) ([]*models.Entry, error) {
	b := tx.Bucket(bucketEntries)
	staged := make([]*models.Entry, 0, len(creates)+len(updates))

	for _, e := range creates {
		c := e.Clone()
		if c.ID == "" {
			c.ID = uuid.NewString()
			e.ID = c.ID
		}
		if err := docstore.ValidateEntry(c); err != nil {
			return nil, err
		}
		if b.Get([]byte(c.ID)) != nil {
			return nil, models.Errorf(models.KindStore, "create entry", "entry %s already exists", c.ID)
		}
		c.Revision = 1
		c.UpdatedAt = now
		if err := putEntry(b, c); err != nil {
			return nil, err
		}
		staged = append(staged, c)
	}

	for _, e := range updates {
		cur, err := getEntryTx(tx, e.ID)
		if err != nil {
			return nil, err
		}
		if cur.Revision != e.Revision {
			return nil, docstore.RevisionMismatch(e.ID, e.Revision, cur.Revision)
		}
		if err := docstore.ValidateEntry(e); err != nil {
			return nil, err
		}
		c := e.Clone()
		c.Revision = cur.Revision + 1
		c.UpdatedAt = now
		if err := putEntry(b, c); err != nil {
			return nil, err
		}
		staged = append(staged, c)
	}
	return staged, nil
}

func applyStaged(entries, staged []*models.Entry) {
	for i, e := range entries {
		e.Revision = staged[i].Revision
		e.UpdatedAt = staged[i].UpdatedAt
	}
}

func getEntryTx(tx *bolt.Tx, id string) (*models.Entry, error) {
	data := tx.Bucket(bucketEntries).Get([]byte(id))
	if data == nil {
		return nil, docstore.NotFound(id)
	}
	var e models.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &e, nil
}

func putEntry(b *bolt.Bucket, e *models.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := b.Put([]byte(e.ID), data); err != nil {
		return models.WrapError(models.KindStore, "store entry", err)
	}
	return nil
}
