package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used by tests and the demo server.
// Collection links made through AddToCollection live in a join registry,
// separate from the records themselves, mirroring the join-table layout of
// the SQL store.
type MemStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]Record
	joins  map[string][]string
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		tables: make(map[string]map[string]Record),
		joins:  make(map[string][]string),
	}
}

// Find retrieves a record by its primary key
func (s *MemStore) Find(ctx context.Context, kind, id string) (Record, error) {
	if kind == "" {
		return nil, ErrMissingKind
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tables[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return CopyRecord(record), nil
}

// FindMany retrieves the records whose primary keys appear in ids,
// preserving the order of ids and skipping missing ones
func (s *MemStore) FindMany(ctx context.Context, kind string, ids []string) ([]Record, error) {
	if kind == "" {
		return nil, ErrMissingKind
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Record
	for _, id := range ids {
		if record, ok := s.tables[kind][id]; ok {
			results = append(results, CopyRecord(record))
		}
	}
	return results, nil
}

// Save persists a record, assigning a UUID primary key on first save
func (s *MemStore) Save(ctx context.Context, kind string, record Record) (Record, error) {
	if kind == "" {
		return nil, ErrMissingKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := copyRecord(record)
	if RecordID(saved) == "" {
		saved["id"] = uuid.New().String()
	}

	if s.tables[kind] == nil {
		s.tables[kind] = make(map[string]Record)
	}
	s.tables[kind][RecordID(saved)] = saved
	return saved, nil
}

// AddToCollection records the links in the join registry. The parent must
// already be persisted. The parent record itself is left untouched, like a
// SQL join-table insert.
func (s *MemStore) AddToCollection(ctx context.Context, kind, id, attr string, targetIDs []string) error {
	if kind == "" {
		return ErrMissingKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[kind][id]; !ok {
		return ErrNotFound
	}

	key := joinKey(kind, id, attr)
	s.joins[key] = append(s.joins[key], targetIDs...)
	return nil
}

// CollectionIDs returns the target ids linked into a parent's collection
// attribute, in link order
func (s *MemStore) CollectionIDs(ctx context.Context, kind, id, attr string) ([]string, error) {
	if kind == "" {
		return nil, ErrMissingKind
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.joins[joinKey(kind, id, attr)]
	result := make([]string, len(ids))
	copy(result, ids)
	return result, nil
}

func joinKey(kind, id, attr string) string {
	return kind + ":" + id + ":" + attr
}

// List returns a page of records plus the total count. Sort fields apply
// before the page is cut; without them records come back in id order.
func (s *MemStore) List(ctx context.Context, kind string, sortFields []string, limit, offset int) ([]Record, int, error) {
	if kind == "" {
		return nil, 0, ErrMissingKind
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	table := s.tables[kind]
	all := make([]Record, 0, len(table))
	for _, record := range table {
		all = append(all, record)
	}
	sort.Slice(all, func(i, j int) bool {
		return RecordID(all[i]) < RecordID(all[j])
	})
	sortRecords(all, sortFields)

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}

	results := make([]Record, 0, end-offset)
	for _, record := range all[offset:end] {
		results = append(results, CopyRecord(record))
	}
	return results, total, nil
}

// sortRecords orders records by the given fields, descending when the field
// carries a "-" prefix. The sort is stable so the id order survives as a
// tiebreak.
func sortRecords(records []Record, sortFields []string) {
	for i := len(sortFields) - 1; i >= 0; i-- {
		field := sortFields[i]
		desc := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")

		sort.SliceStable(records, func(a, b int) bool {
			cmp := compareValues(records[a][field], records[b][field])
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
}

// compareValues orders two field values, numerically when both are numbers
// and lexically otherwise
func compareValues(a, b interface{}) int {
	af, aok := numericValue(a)
	bf, bok := numericValue(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Delete removes a record by its primary key
func (s *MemStore) Delete(ctx context.Context, kind, id string) error {
	if kind == "" {
		return ErrMissingKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[kind][id]; !ok {
		return ErrNotFound
	}
	delete(s.tables[kind], id)
	return nil
}

// Seed inserts a record with a preset id, for test and demo fixtures
func (s *MemStore) Seed(kind string, record Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := copyRecord(record)
	if RecordID(saved) == "" {
		saved["id"] = uuid.New().String()
	}
	if s.tables[kind] == nil {
		s.tables[kind] = make(map[string]Record)
	}
	s.tables[kind][RecordID(saved)] = saved
	return saved
}
