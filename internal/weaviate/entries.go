package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/lexmerge/internal/docstore"
	"github.com/kilupskalvis/lexmerge/internal/models"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// DefaultClassName is the Weaviate class holding entries.
const DefaultClassName = "LexEntry"

// Property names of the entry class.
const (
	propEntryID  = "entryId"
	propHeadword = "headword"
	propCategory = "category"
	propRevision = "revision"
	propDocument = "document"
)

// entryNamespace derives object UUIDs for entry IDs that are not UUIDs.
var entryNamespace = uuid.MustParse("8f2d0c6e-5a1b-4c7e-9d3f-2b6a1e4c8d70")

// EntryStore is a docstore.Store keeping one Weaviate object per entry.
// Weaviate has no multi-object transactions, so conditional writes are
// checked and applied under a process-local lock.
type EntryStore struct {
	objects   ObjectClient
	className string
	mu        sync.Mutex
}

var _ docstore.Store = (*EntryStore)(nil)

// NewEntryStore creates an entry store over objects. An empty className
// means DefaultClassName.
func NewEntryStore(objects ObjectClient, className string) *EntryStore {
	if className == "" {
		className = DefaultClassName
	}
	return &EntryStore{objects: objects, className: className}
}

// ObjectID maps an entry ID to its Weaviate object UUID.
func ObjectID(entryID string) string {
	if id, err := uuid.Parse(entryID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(entryNamespace, []byte(entryID)).String()
}

// EnsureSchema creates the entry class when it is missing.
func (s *EntryStore) EnsureSchema(ctx context.Context) error {
	classes, err := s.objects.GetClasses(ctx)
	if err != nil {
		return fmt.Errorf("get classes: %w", err)
	}
	for _, c := range classes {
		if c == s.className {
			return nil
		}
	}
	if err := s.objects.CreateClass(ctx, entryClass(s.className)); err != nil {
		return fmt.Errorf("create class %s: %w", s.className, err)
	}
	return nil
}

func entryClass(name string) *weaviatemodels.Class {
	text := func(name, desc string) *weaviatemodels.Property {
		return &weaviatemodels.Property{Name: name, DataType: []string{"text"}, Description: desc}
	}
	return &weaviatemodels.Class{
		Class:       name,
		Description: "Lexicon entry with its senses",
		Vectorizer:  "none",
		Properties: []*weaviatemodels.Property{
			text(propEntryID, "Entry ID"),
			text(propHeadword, "Headword"),
			text(propCategory, "Grammatical category"),
			{Name: propRevision, DataType: []string{"int"}, Description: "Conditional write token"},
			text(propDocument, "Entry JSON document"),
		},
	}
}

// GetEntry retrieves an entry by ID.
func (s *EntryStore) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	obj, err := s.objects.GetObject(ctx, s.className, ObjectID(id))
	if err != nil {
		return nil, models.WrapError(models.KindStore, "get entry", err)
	}
	if obj == nil {
		return nil, docstore.NotFound(id)
	}
	return decodeEntry(obj)
}

// GetSense retrieves one sense of an entry.
func (s *EntryStore) GetSense(ctx context.Context, entryID, senseID string) (*models.Sense, error) {
	e, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return docstore.FindSense(e, senseID)
}

// CreateEntry stores a new entry, assigning an ID when empty.
func (s *EntryStore) CreateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := entry.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := docstore.ValidateEntry(c); err != nil {
		return nil, err
	}
	existing, err := s.objects.GetObject(ctx, s.className, ObjectID(c.ID))
	if err != nil {
		return nil, models.WrapError(models.KindStore, "create entry", err)
	}
	if existing != nil {
		return nil, models.Errorf(models.KindStore, "create entry", "entry %s already exists", c.ID)
	}

	c.Revision = 1
	c.UpdatedAt = time.Now().UTC()
	obj, err := s.encodeEntry(c)
	if err != nil {
		return nil, err
	}
	if err := s.objects.CreateObject(ctx, obj); err != nil {
		return nil, models.WrapError(models.KindStore, "create entry", err)
	}
	return c, nil
}

// UpdateEntry replaces an entry when its revision matches the stored one.
func (s *EntryStore) UpdateEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.GetEntry(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if cur.Revision != entry.Revision {
		return nil, docstore.RevisionMismatch(entry.ID, entry.Revision, cur.Revision)
	}
	if err := docstore.ValidateEntry(entry); err != nil {
		return nil, err
	}

	c := entry.Clone()
	c.Revision = cur.Revision + 1
	c.UpdatedAt = time.Now().UTC()
	obj, err := s.encodeEntry(c)
	if err != nil {
		return nil, err
	}
	if err := s.objects.UpdateObject(ctx, obj); err != nil {
		return nil, models.WrapError(models.KindStore, "update entry", err)
	}
	return c, nil
}

// DeleteEntry removes an entry.
func (s *EntryStore) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.GetEntry(ctx, id); err != nil {
		return err
	}
	if err := s.objects.DeleteObject(ctx, s.className, ObjectID(id)); err != nil {
		return models.WrapError(models.KindStore, "delete entry", err)
	}
	return nil
}

// ListEntries returns all entries sorted by headword.
func (s *EntryStore) ListEntries(ctx context.Context) ([]*models.Entry, error) {
	objs, err := s.objects.ListObjects(ctx, s.className)
	if err != nil {
		return nil, models.WrapError(models.KindStore, "list entries", err)
	}
	entries := make([]*models.Entry, 0, len(objs))
	for _, obj := range objs {
		e, err := decodeEntry(obj)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	docstore.SortEntries(entries)
	return entries, nil
}

func (s *EntryStore) encodeEntry(e *models.Entry) (*Object, error) {
	doc, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	return &Object{
		ID:    ObjectID(e.ID),
		Class: s.className,
		Properties: map[string]interface{}{
			propEntryID:  e.ID,
			propHeadword: e.Headword,
			propCategory: e.Category,
			propRevision: e.Revision,
			propDocument: string(doc),
		},
	}, nil
}

func decodeEntry(obj *Object) (*models.Entry, error) {
	doc, ok := obj.Properties[propDocument].(string)
	if !ok {
		return nil, models.Errorf(models.KindStore, "decode entry", "object %s has no %s property", obj.ID, propDocument)
	}
	var e models.Entry
	if err := json.Unmarshal([]byte(doc), &e); err != nil {
		return nil, models.WrapError(models.KindStore, "decode entry", fmt.Errorf("unmarshal entry: %w", err))
	}
	return &e, nil
}
