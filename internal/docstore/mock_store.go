package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/lexmerge/internal/models"
)

// MockStore is an in-memory Store for testing. It does not implement
// AtomicCommitter or BatchWriter, so callers fall back to per-entry writes.
type MockStore struct {
	mu sync.Mutex
	// Entries stores entries by ID
	Entries map[string]*models.Entry
	// CreateErr, when set, is consulted before every CreateEntry
	CreateErr func(e *models.Entry) error
	// UpdateErr, when set, is consulted before every UpdateEntry
	UpdateErr func(e *models.Entry) error
	// Writes logs every successful write as "create:<id>", "update:<id>" or "delete:<id>"
	Writes []string
}

// NewMockStore creates a new MockStore for testing.
func NewMockStore() *MockStore {
	return &MockStore{Entries: make(map[string]*models.Entry)}
}

var _ Store = (*MockStore)(nil)

// AddEntry seeds an entry without validation or revision checks.
func (m *MockStore) AddEntry(e *models.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := e.Clone()
	if c.Revision == 0 {
		c.Revision = 1
	}
	m.Entries[c.ID] = c
}

// GetEntry returns a copy of the stored entry.
func (m *MockStore) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Entries[id]
	if !ok {
		return nil, NotFound(id)
	}
	return e.Clone(), nil
}

// GetSense returns a copy of one sense of a stored entry.
func (m *MockStore) GetSense(ctx context.Context, entryID, senseID string) (*models.Sense, error) {
	e, err := m.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return FindSense(e, senseID)
}

// CreateEntry stores a new entry.
func (m *MockStore) CreateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		if err := m.CreateErr(entry); err != nil {
			return nil, err
		}
	}
	c := entry.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := ValidateEntry(c); err != nil {
		return nil, err
	}
	if _, exists := m.Entries[c.ID]; exists {
		return nil, models.Errorf(models.KindStore, "create entry", "entry %s already exists", c.ID)
	}
	c.Revision = 1
	c.UpdatedAt = time.Now().UTC()
	m.Entries[c.ID] = c
	m.Writes = append(m.Writes, "create:"+c.ID)
	return c.Clone(), nil
}

// UpdateEntry replaces a stored entry when the revision matches.
func (m *MockStore) UpdateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		if err := m.UpdateErr(entry); err != nil {
			return nil, err
		}
	}
	cur, ok := m.Entries[entry.ID]
	if !ok {
		return nil, NotFound(entry.ID)
	}
	if cur.Revision != entry.Revision {
		return nil, RevisionMismatch(entry.ID, entry.Revision, cur.Revision)
	}
	if err := ValidateEntry(entry); err != nil {
		return nil, err
	}
	c := entry.Clone()
	c.Revision = cur.Revision + 1
	c.UpdatedAt = time.Now().UTC()
	m.Entries[c.ID] = c
	m.Writes = append(m.Writes, "update:"+c.ID)
	return c.Clone(), nil
}

// DeleteEntry removes an entry.
func (m *MockStore) DeleteEntry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Entries[id]; !ok {
		return NotFound(id)
	}
	delete(m.Entries, id)
	m.Writes = append(m.Writes, "delete:"+id)
	return nil
}

// ListEntries returns copies of all entries sorted by headword then ID.
func (m *MockStore) ListEntries(ctx context.Context) ([]*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.Clone())
	}
	SortEntries(out)
	return out, nil
}

// SortEntries orders entries by headword, then ID.
func SortEntries(entries []*models.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Headword != entries[j].Headword {
			return entries[i].Headword < entries[j].Headword
		}
		return entries[i].ID < entries[j].ID
	})
}
