// Package docstore defines the contract lexmerge expects from the entry
// document store, plus the SQLite and in-memory implementations.
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/kilupskalvis/lexmerge/internal/models"
)

// ErrRevisionMismatch is wrapped by store errors raised when a conditional
// write finds a newer revision than the caller read.
var ErrRevisionMismatch = errors.New("entry revision mismatch")

// Store is the entry document store. Reads return a models.Error of kind
// not_found for missing entries or senses; writes validate the entry and
// return kind validation_error when it is rejected.
type Store interface {
	GetEntry(ctx context.Context, id string) (*models.Entry, error)
	GetSense(ctx context.Context, entryID, senseID string) (*models.Sense, error)
	// CreateEntry stores a new entry, assigning an ID when empty.
	CreateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error)
	// UpdateEntry replaces a whole entry if its Revision still matches the stored one.
	UpdateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	ListEntries(ctx context.Context) ([]*models.Entry, error)
}

// ChangeSet is everything one operation writes on completion.
type ChangeSet struct {
	Creates   []*models.Entry
	Updates   []*models.Entry
	Transfers []*models.SenseTransfer
	Operation *models.Operation // terminal state
	At        time.Time         // UpdatedAt for written entries; zero means the store's clock
}

// AtomicCommitter is implemented by stores that can apply entry writes,
// transfer rows and the operation status in a single transaction. On
// success the Revision and UpdatedAt of every written entry are updated in
// place.
type AtomicCommitter interface {
	CommitOperation(ctx context.Context, cs *ChangeSet) error
}

// BatchWriter is implemented by stores that can write several entries
// atomically, without covering the ledger. On success the Revision and
// UpdatedAt of every written entry are updated in place.
type BatchWriter interface {
	WriteEntries(ctx context.Context, creates, updates []*models.Entry) error
}

// NotFound builds the error returned for a missing entry.
func NotFound(entryID string) error {
	return &models.Error{Kind: models.KindNotFound, Op: "get entry", Message: "entry " + entryID + " not found", Err: models.ErrNotFound}
}

// SenseNotFound builds the error returned for a missing sense.
func SenseNotFound(entryID, senseID string) error {
	return &models.Error{Kind: models.KindNotFound, Op: "get sense", Message: "sense " + senseID + " not found on entry " + entryID, Err: models.ErrNotFound}
}

// RevisionMismatch builds the error returned by a failed conditional write.
func RevisionMismatch(entryID string, want, have int64) error {
	return &models.Error{
		Kind:    models.KindStore,
		Op:      "update entry",
		Message: "entry " + entryID + " was modified concurrently (revision " + itoa(want) + ", stored " + itoa(have) + ")",
		Err:     ErrRevisionMismatch,
	}
}

// FindSense looks up a sense on an already fetched entry.
func FindSense(e *models.Entry, senseID string) (*models.Sense, error) {
	if s := e.Sense(senseID); s != nil {
		return s.Clone(), nil
	}
	return nil, SenseNotFound(e.ID, senseID)
}
