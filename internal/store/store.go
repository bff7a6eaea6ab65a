// Package store provides the persistence collaborators the mapping engine
// depends on: fetch by primary key, batch fetch, save, and join-table writes
// for collection relationships. The engine depends only on the Store
// interface, not on any particular storage engine.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Record is a domain object as the mapping engine sees it: a flat map of
// field names to values. Related objects appear as nested Records (to-one)
// or []Record (to-many) under the relationship's storage attribute.
type Record = map[string]interface{}

// Common store error types
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrMissingKind is returned when an operation is given an empty kind
	ErrMissingKind = errors.New("missing record kind")
)

// Store is the persistence collaborator. Kind is the storage-level name of
// the resource (its table name).
type Store interface {
	// Find retrieves a record by its primary key, ErrNotFound if absent
	Find(ctx context.Context, kind, id string) (Record, error)

	// FindMany retrieves the records whose primary keys appear in ids.
	// Missing ids are skipped, not reported as errors.
	FindMany(ctx context.Context, kind string, ids []string) ([]Record, error)

	// Save persists a record, assigning a primary key on first save, and
	// returns the persisted record.
	Save(ctx context.Context, kind string, record Record) (Record, error)

	// AddToCollection links target records into the collection attribute
	// of an already-persisted parent record.
	AddToCollection(ctx context.Context, kind, id, attr string, targetIDs []string) error

	// CollectionIDs reads back the target ids linked into a parent's
	// collection attribute.
	CollectionIDs(ctx context.Context, kind, id, attr string) ([]string, error)

	// List retrieves a page of records along with the total count. Sort
	// fields apply before pagination; a "-" prefix marks descending order.
	// With no sort fields records come back in stable id order.
	List(ctx context.Context, kind string, sort []string, limit, offset int) ([]Record, int, error)

	// Delete removes a record by its primary key, ErrNotFound if absent
	Delete(ctx context.Context, kind, id string) error
}

// CopyRecord copies a record along with any nested relationship records, so
// callers can mutate the result without touching the original
func CopyRecord(record Record) Record {
	out := make(Record, len(record))
	for k, v := range record {
		switch nested := v.(type) {
		case Record:
			if nested == nil {
				out[k] = Record(nil)
				continue
			}
			out[k] = CopyRecord(nested)
		case []Record:
			members := make([]Record, len(nested))
			for i, member := range nested {
				members[i] = CopyRecord(member)
			}
			out[k] = members
		default:
			out[k] = v
		}
	}
	return out
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// RecordID returns the primary key of a record as a string. Records loaded
// from SQL may carry int64 or []byte keys; the wire format always uses
// strings.
func RecordID(record Record) string {
	if record == nil {
		return ""
	}
	switch id := record["id"].(type) {
	case nil:
		return ""
	case string:
		return id
	case []byte:
		return string(id)
	default:
		return fmt.Sprintf("%v", id)
	}
}
