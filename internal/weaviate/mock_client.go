package weaviate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// MockClient is an in-memory implementation of ObjectClient for testing.
type MockClient struct {
	mu sync.Mutex
	// Objects stores objects by "ClassName/ObjectID" key
	Objects map[string]*Object
	// Classes holds the created classes by name
	Classes map[string]*weaviatemodels.Class
	// Err can be set to make methods return an error
	Err error
}

var _ ObjectClient = (*MockClient)(nil)

// NewMockClient creates a new MockClient for testing.
func NewMockClient() *MockClient {
	return &MockClient{
		Objects: make(map[string]*Object),
		Classes: make(map[string]*weaviatemodels.Class),
	}
}

func objectKey(className, objectID string) string {
	return className + "/" + objectID
}

func copyObject(obj *Object) *Object {
	c := *obj
	c.Properties = make(map[string]interface{}, len(obj.Properties))
	for k, v := range obj.Properties {
		c.Properties[k] = v
	}
	return &c
}

// GetClasses returns the names of the created classes.
func (m *MockClient) GetClasses(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	names := make([]string, 0, len(m.Classes))
	for name := range m.Classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateClass records a class.
func (m *MockClient) CreateClass(ctx context.Context, class *weaviatemodels.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Classes[class.Class]; ok {
		return fmt.Errorf("class %s already exists", class.Class)
	}
	m.Classes[class.Class] = class
	return nil
}

// GetObject returns a copy of an object from the mock store.
func (m *MockClient) GetObject(ctx context.Context, className, objectID string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	obj, ok := m.Objects[objectKey(className, objectID)]
	if !ok {
		return nil, nil
	}
	return copyObject(obj), nil
}

// ListObjects returns copies of all objects of a class.
func (m *MockClient) ListObjects(ctx context.Context, className string) ([]*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*Object
	for _, obj := range m.Objects {
		if obj.Class == className {
			out = append(out, copyObject(obj))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateObject adds an object to the mock store.
func (m *MockClient) CreateObject(ctx context.Context, obj *Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := objectKey(obj.Class, obj.ID)
	if _, ok := m.Objects[key]; ok {
		return fmt.Errorf("object %s already exists", key)
	}
	m.Objects[key] = copyObject(obj)
	return nil
}

// UpdateObject replaces an object in the mock store.
func (m *MockClient) UpdateObject(ctx context.Context, obj *Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := objectKey(obj.Class, obj.ID)
	if _, ok := m.Objects[key]; !ok {
		return fmt.Errorf("object %s not found", key)
	}
	m.Objects[key] = copyObject(obj)
	return nil
}

// DeleteObject removes an object from the mock store.
func (m *MockClient) DeleteObject(ctx context.Context, className, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.Objects, objectKey(className, objectID))
	return nil
}
