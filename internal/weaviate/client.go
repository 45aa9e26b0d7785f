// Package weaviate stores lexicon entries as Weaviate objects. It wraps the
// Weaviate client with the object operations the entry store needs and
// supports both cursor and offset pagination depending on server version.
package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	weaviatemodels "github.com/weaviate/weaviate/entities/models"
)

// ServerVersion holds parsed Weaviate version info
type ServerVersion struct {
	Version string // e.g., "1.25.0"
	Major   int
	Minor   int
	Patch   int
}

// parseVersion parses a version string like "1.25.0" into ServerVersion
func parseVersion(version string) (*ServerVersion, error) {
	re := regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)
	matches := re.FindStringSubmatch(version)
	if len(matches) < 4 {
		return nil, fmt.Errorf("invalid version format: %s", version)
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])
	patch, _ := strconv.Atoi(matches[3])

	return &ServerVersion{
		Version: version,
		Major:   major,
		Minor:   minor,
		Patch:   patch,
	}, nil
}

// SupportsFeature checks if the server supports a specific feature
func (v *ServerVersion) SupportsFeature(feature string) bool {
	switch feature {
	case "cursor_pagination":
		return v.Major > 1 || (v.Major == 1 && v.Minor >= 18)
	default:
		return true
	}
}

// Client wraps the Weaviate client with the object operations lexmerge uses
type Client struct {
	client    *weaviate.Client
	url       string
	useCursor bool
}

var _ ObjectClient = (*Client)(nil)

// NewClient creates a new Weaviate client
func NewClient(url string) (*Client, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}

	// Handle URL parsing
	if len(url) > 7 && url[:7] == "http://" {
		cfg.Host = url[7:]
		cfg.Scheme = "http"
	} else if len(url) > 8 && url[:8] == "https://" {
		cfg.Host = url[8:]
		cfg.Scheme = "https"
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	return &Client{
		client:    client,
		url:       url,
		useCursor: true,
	}, nil
}

// Ping checks if Weaviate is reachable
func (c *Client) Ping(ctx context.Context) error {
	live, err := c.client.Misc().LiveChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to Weaviate: %w", err)
	}
	if !live {
		return fmt.Errorf("weaviate is not live")
	}
	return nil
}

// Negotiate reads the server version and picks the pagination method
func (c *Client) Negotiate(ctx context.Context) (*ServerVersion, error) {
	meta, err := c.client.Misc().MetaGetter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get server metadata: %w", err)
	}
	v, err := parseVersion(meta.Version)
	if err != nil {
		return nil, err
	}
	c.useCursor = v.SupportsFeature("cursor_pagination")
	return v, nil
}

// GetClasses returns all class names in the schema
func (c *Client) GetClasses(ctx context.Context) ([]string, error) {
	schema, err := c.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, err
	}

	var classes []string
	for _, class := range schema.Classes {
		classes = append(classes, class.Class)
	}
	return classes, nil
}

// CreateClass creates a new class in Weaviate
func (c *Client) CreateClass(ctx context.Context, class *weaviatemodels.Class) error {
	return c.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

// GetObject fetches a single object by class and ID. A missing object
// yields (nil, nil).
func (c *Client) GetObject(ctx context.Context, className, objectID string) (*Object, error) {
	objs, err := c.client.Data().ObjectsGetter().
		WithClassName(className).
		WithID(objectID).
		Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(objs) == 0 {
		return nil, nil
	}
	return convertObject(objs[0]), nil
}

// ListObjects fetches all objects of a class
func (c *Client) ListObjects(ctx context.Context, className string) ([]*Object, error) {
	if c.useCursor {
		return c.listObjectsCursor(ctx, className)
	}
	return c.listObjectsOffset(ctx, className)
}

// listObjectsCursor uses WithAfter cursor pagination (Weaviate 1.18+)
func (c *Client) listObjectsCursor(ctx context.Context, className string) ([]*Object, error) {
	var all []*Object
	limit := 100
	afterCursor := ""

	for {
		getter := c.client.Data().ObjectsGetter().
			WithClassName(className).
			WithLimit(limit)
		if afterCursor != "" {
			getter = getter.WithAfter(afterCursor)
		}

		objs, err := getter.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch objects from %s: %w", className, err)
		}
		if len(objs) == 0 {
			break
		}

		for _, obj := range objs {
			if o := convertObject(obj); o != nil {
				all = append(all, o)
			}
		}

		if len(objs) < limit {
			break
		}
		afterCursor = objs[len(objs)-1].ID.String()
	}

	return all, nil
}

// listObjectsOffset uses offset/limit pagination (older Weaviate versions)
func (c *Client) listObjectsOffset(ctx context.Context, className string) ([]*Object, error) {
	var all []*Object
	limit := 100
	offset := 0

	for {
		objs, err := c.client.Data().ObjectsGetter().
			WithClassName(className).
			WithLimit(limit).
			WithOffset(offset).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch objects from %s: %w", className, err)
		}
		if len(objs) == 0 {
			break
		}

		for _, obj := range objs {
			if o := convertObject(obj); o != nil {
				all = append(all, o)
			}
		}

		if len(objs) < limit {
			break
		}
		offset += limit
	}

	return all, nil
}

// CreateObject creates a new object
func (c *Client) CreateObject(ctx context.Context, obj *Object) error {
	_, err := c.client.Data().Creator().
		WithClassName(obj.Class).
		WithID(obj.ID).
		WithProperties(obj.Properties).
		Do(ctx)
	return err
}

// UpdateObject replaces an existing object's properties
func (c *Client) UpdateObject(ctx context.Context, obj *Object) error {
	return c.client.Data().Updater().
		WithClassName(obj.Class).
		WithID(obj.ID).
		WithProperties(obj.Properties).
		Do(ctx)
}

// DeleteObject deletes an object by class and ID
func (c *Client) DeleteObject(ctx context.Context, className, objectID string) error {
	return c.client.Data().Deleter().
		WithClassName(className).
		WithID(objectID).
		Do(ctx)
}

func isNotFound(err error) bool {
	var ce *fault.WeaviateClientError
	return errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound
}

// convertObject converts a Weaviate API object to our internal model
func convertObject(obj interface{}) *Object {
	// JSON round trip copes with the interface{} fields of the v5 models
	data, err := json.Marshal(obj)
	if err != nil {
		return nil
	}

	var raw struct {
		ID                 string                 `json:"id"`
		Class              string                 `json:"class"`
		Properties         map[string]interface{} `json:"properties"`
		LastUpdateTimeUnix int64                  `json:"lastUpdateTimeUnix"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	return &Object{
		ID:                 raw.ID,
		Class:              raw.Class,
		Properties:         raw.Properties,
		LastUpdateTimeUnix: raw.LastUpdateTimeUnix,
	}
}
