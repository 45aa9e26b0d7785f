package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/lexmerge/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps entries as JSON documents in a SQLite database.
// Multi-entry writes share one SQL transaction.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ Store       = (*SQLiteStore)(nil)
	_ BatchWriter = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens the database and creates the schema if needed
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		headword TEXT NOT NULL,
		category TEXT,
		revision INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		document JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_headword ON entries(headword);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetEntry loads one entry
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	return getEntrySQL(ctx, s.db, id)
}

// GetSense loads one sense of an entry
func (s *SQLiteStore) GetSense(ctx context.Context, entryID, senseID string) (*models.Sense, error) {
	e, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return FindSense(e, senseID)
}

// CreateEntry inserts a new entry
func (s *SQLiteStore) CreateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	c := entry.Clone()
	if err := s.WriteEntries(ctx, []*models.Entry{c}, nil); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateEntry replaces an entry if its revision still matches
func (s *SQLiteStore) UpdateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	c := entry.Clone()
	if err := s.WriteEntries(ctx, nil, []*models.Entry{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteEntry removes an entry
func (s *SQLiteStore) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return models.WrapError(models.KindStore, "delete entry", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFound(id)
	}
	return nil
}

// ListEntries returns all entries ordered by headword
func (s *SQLiteStore) ListEntries(ctx context.Context) ([]*models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT document, revision, updated_at FROM entries ORDER BY headword, id")
	if err != nil {
		return nil, models.WrapError(models.KindStore, "list entries", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// WriteEntries inserts and conditionally updates entries in one transaction
func (s *SQLiteStore) WriteEntries(ctx context.Context, creates, updates []*models.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.WrapError(models.KindStore, "begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, e := range creates {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if err := ValidateEntry(e); err != nil {
			return err
		}
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entries (id, headword, category, revision, updated_at, document)
			VALUES (?, ?, ?, 1, ?, ?)`,
			e.ID, e.Headword, e.Category, now.Format(time.RFC3339Nano), doc,
		); err != nil {
			return models.WrapError(models.KindStore, "create entry", err)
		}
	}

	for _, e := range updates {
		if err := ValidateEntry(e); err != nil {
			return err
		}
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE entries SET headword = ?, category = ?, revision = revision + 1, updated_at = ?, document = ?
			WHERE id = ? AND revision = ?`,
			e.Headword, e.Category, now.Format(time.RFC3339Nano), doc, e.ID, e.Revision,
		)
		if err != nil {
			return models.WrapError(models.KindStore, "update entry", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			cur, err := getEntrySQL(ctx, tx, e.ID)
			if err != nil {
				return err
			}
			return RevisionMismatch(e.ID, e.Revision, cur.Revision)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.WrapError(models.KindStore, "commit transaction", err)
	}

	for _, e := range creates {
		e.Revision = 1
		e.UpdatedAt = now
	}
	for _, e := range updates {
		e.Revision++
		e.UpdatedAt = now
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func getEntrySQL(ctx context.Context, q queryer, id string) (*models.Entry, error) {
	row := q.QueryRowContext(ctx, "SELECT document, revision, updated_at FROM entries WHERE id = ?", id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, NotFound(id)
	}
	return e, err
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var doc []byte
	var revision int64
	var updatedAt string
	if err := row.Scan(&doc, &revision, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, models.WrapError(models.KindStore, "scan entry", err)
	}
	var e models.Entry
	if err := json.Unmarshal(doc, &e); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	e.Revision = revision
	e.UpdatedAt = parseTimestamp(updatedAt)
	return &e, nil
}

// parseTimestamp parses a timestamp string from SQLite in various formats
func parseTimestamp(s string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
