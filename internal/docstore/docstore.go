// Package docstore is the document-store collaborator: collections of JSON-like
// documents addressed by path and id. Backends: SQLite (default), Firestore, MongoDB.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrExists is returned by Create when a document with the id already exists.
var ErrExists = errors.New("document already exists")

// Doc is a document body. Values must survive a JSON round trip.
type Doc map[string]any

// Snapshot is a stored document with its id.
type Snapshot struct {
	ID   string
	Data Doc
}

// Filter is an equality match on a top-level field.
type Filter struct {
	Field string
	Value any
}

func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

type Store interface {
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	// Set writes a document. With merge, top-level fields not present in data are kept.
	Set(ctx context.Context, collection, id string, data Doc, merge bool) error
	// Create writes a new document and fails with ErrExists when the id is taken.
	Create(ctx context.Context, collection, id string, data Doc) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error)
	// Add stores data under a generated id and returns it.
	Add(ctx context.Context, collection string, data Doc) (string, error)
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// Path joins collection and document segments: Path("groups", gid, "chores").
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// Encode converts a tagged struct into a Doc.
func Encode(v any) (Doc, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var d Doc
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return d, nil
}

// Decode fills v from a Doc.
func Decode(d Doc, v any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func validateCollection(collection string) error {
	if collection == "" || strings.HasPrefix(collection, "/") || strings.HasSuffix(collection, "/") {
		return fmt.Errorf("invalid collection path %q", collection)
	}
	if strings.Count(collection, "/")%2 != 0 {
		return fmt.Errorf("collection path %q has an even number of segments", collection)
	}
	return nil
}

func validateKey(collection, id string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

func validateField(field string) error {
	if field == "" {
		return fmt.Errorf("empty filter field")
	}
	for _, c := range field {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return fmt.Errorf("invalid filter field %q", field)
		}
	}
	return nil
}
