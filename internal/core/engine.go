// Package core implements the merge/split operation engine: splitting
// senses into a new entry, moving senses between entries and merging
// senses within one entry, with a durable operation record and transfer
// ledger for each run.
package core

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/lexmerge/internal/audit"
	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
)

// Journal persists operation records and the sense transfer ledger.
type Journal interface {
	RecordOperation(ctx context.Context, op *models.Operation) error
	// CompleteOperation writes transfers and the completed status together.
	CompleteOperation(ctx context.Context, op *models.Operation, transfers []*models.SenseTransfer) error
	FailOperation(ctx context.Context, op *models.Operation) error

	GetOperation(ctx context.Context, id string) (*models.Operation, error)
	ListOperations(ctx context.Context) ([]*models.Operation, error)
	ListOperationsByStatus(ctx context.Context, status models.OperationStatus) ([]*models.Operation, error)
	ListStuckOperations(ctx context.Context, horizon time.Duration, now time.Time) ([]*models.Operation, error)

	ListTransfers(ctx context.Context) ([]*models.SenseTransfer, error)
	TransfersBySense(ctx context.Context, senseID string) ([]*models.SenseTransfer, error)
	TransfersByEntry(ctx context.Context, entryID string) ([]*models.SenseTransfer, error)
}

// Engine runs merge/split operations against an entry store.
// It is safe for concurrent use.
type Engine struct {
	entries  docstore.Store
	journal  Journal
	atomic   docstore.AtomicCommitter // set when entries and journal share one transactional store
	recorder audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	locks    *entryLocks
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the audit recorder called once per finished operation.
func WithRecorder(r audit.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides how operation and entry IDs are minted.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// NewEngine creates an engine over an entry store and a journal. When both
// are the same store and it implements docstore.AtomicCommitter, every
// operation commits in a single transaction.
func NewEngine(entries docstore.Store, journal Journal, opts ...Option) *Engine {
	e := &Engine{
		entries: entries,
		journal: journal,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		locks:   newEntryLocks(),
	}
	if ac, ok := entries.(docstore.AtomicCommitter); ok && any(entries) == any(journal) {
		e.atomic = ac
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newOperation builds the pending record for a request.
func (e *Engine) newOperation(typ models.OperationType, actor string, senseIDs []string) *models.Operation {
	return &models.Operation{
		ID:        e.newID(),
		Type:      typ,
		SenseIDs:  append([]string(nil), senseIDs...),
		Status:    models.StatusPending,
		Actor:     actor,
		Timestamp: e.now(),
		Metadata:  map[string]string{},
	}
}
