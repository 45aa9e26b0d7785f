package weaviate

import (
	"context"

	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// Object is a Weaviate object reduced to what the entry store reads.
type Object struct {
	ID                 string
	Class              string
	Properties         map[string]interface{}
	LastUpdateTimeUnix int64
}

// ObjectClient defines the Weaviate operations the entry store needs.
// This interface enables mocking for testing.
type ObjectClient interface {
	GetClasses(ctx context.Context) ([]string, error)
	CreateClass(ctx context.Context, class *weaviatemodels.Class) error

	// GetObject returns (nil, nil) when the object does not exist.
	GetObject(ctx context.Context, className, objectID string) (*Object, error)
	ListObjects(ctx context.Context, className string) ([]*Object, error)
	CreateObject(ctx context.Context, obj *Object) error
	UpdateObject(ctx context.Context, obj *Object) error
	DeleteObject(ctx context.Context, className, objectID string) error
}
