package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryDoc struct {
	data      map[string]any
	createdAt time.Time
	updatedAt time.Time
}

// MemoryStore is an in-process Store with the same ordering, filter and range
// semantics as PostgresStore. It backs local runs and tests.
type MemoryStore struct {
	mx          sync.RWMutex
	collections map[string]map[string]memoryDoc
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]memoryDoc),
		now:         time.Now,
	}
}

func (s *MemoryStore) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filters := make([][]byte, len(q.filters))
	for i, f := range q.filters {
		raw, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", f.field, err)
		}
		filters[i] = raw
	}

	s.mx.RLock()
	defer s.mx.RUnlock()

	type candidate struct {
		doc Document
		key string
	}
	var matched []candidate

	for id, stored := range s.collections[q.collection] {
		if !matchesFilters(stored.data, q.filters, filters) {
			continue
		}

		var key string
		if q.orderBy != "" {
			var ok bool
			key, ok = orderKey(stored.data[q.orderBy])
			if !ok {
				continue
			}
			if q.startAt != nil && key < *q.startAt {
				continue
			}
			if q.endAt != nil && key > *q.endAt {
				continue
			}
		}

		matched = append(matched, candidate{
			doc: Document{
				ID:        id,
				Data:      copyData(stored.data),
				CreatedAt: stored.createdAt,
				UpdatedAt: stored.updatedAt,
			},
			key: key,
		})
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.key != b.key {
			if q.direction == Desc {
				return a.key > b.key
			}
			return a.key < b.key
		}
		return a.doc.ID < b.doc.ID
	})

	if q.limit > 0 && len(matched) > q.limit {
		matched = matched[:q.limit]
	}

	docs := make([]Document, len(matched))
	for i, c := range matched {
		docs[i] = c.doc
	}
	return docs, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	s.mx.RLock()
	defer s.mx.RUnlock()

	stored, ok := s.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{
		ID:        id,
		Data:      copyData(stored.data),
		CreatedAt: stored.createdAt,
		UpdatedAt: stored.updatedAt,
	}, nil
}

// Apply stages all ops against a copy of the touched documents and commits
// only when every op succeeds.
func (s *MemoryStore) Apply(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	now := s.now().UTC()
	type docKey struct{ collection, id string }
	staged := make(map[docKey]*memoryDoc)

	lookup := func(k docKey) *memoryDoc {
		if d, ok := staged[k]; ok {
			return d
		}
		stored, ok := s.collections[k.collection][k.id]
		if !ok {
			staged[k] = nil
			return nil
		}
		d := &memoryDoc{data: copyData(stored.data), createdAt: stored.createdAt, updatedAt: stored.updatedAt}
		staged[k] = d
		return d
	}

	for _, op := range ops {
		k := docKey{op.Collection, op.ID}
		current := lookup(k)

		switch op.Kind {
		case OpSet:
			data, _, err := normalize(op.Fields)
			if err != nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
			}
			created := now
			if current != nil {
				created = current.createdAt
			}
			staged[k] = &memoryDoc{data: data, createdAt: created, updatedAt: now}
		case OpUpdate:
			if current == nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, ErrNotFound)
			}
			matched, err := matchesExpect(current.data, op.Expect)
			if err != nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
			}
			if !matched {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, ErrConflict)
			}
			patch, _, err := normalize(op.Fields)
			if err != nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
			}
			for field, v := range patch {
				current.data[field] = v
			}
			current.updatedAt = now
		case OpIncrement:
			if current == nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, ErrNotFound)
			}
			var base int64
			if n, ok := current.data[op.Field].(json.Number); ok {
				if v, err := n.Int64(); err == nil {
					base = v
				}
			}
			current.data[op.Field] = json.Number(fmt.Sprint(base + int64(op.Delta)))
			current.updatedAt = now
		case OpAppend:
			if current == nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, ErrNotFound)
			}
			value, _, err := normalize(map[string]any{op.Field: op.Value})
			if err != nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
			}
			existing, _ := current.data[op.Field].([]any)
			items := make([]any, 0, len(existing)+1)
			items = append(items, existing...)
			current.data[op.Field] = append(items, value[op.Field])
			current.updatedAt = now
		case OpDelete:
			if current == nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, ErrNotFound)
			}
			staged[k] = nil
		default:
			return fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}

	for k, d := range staged {
		if d == nil {
			delete(s.collections[k.collection], k.id)
			continue
		}
		coll, ok := s.collections[k.collection]
		if !ok {
			coll = make(map[string]memoryDoc)
			s.collections[k.collection] = coll
		}
		coll[k.id] = *d
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// orderKey mirrors the SQL ordering key: the timestampValue of a stored
// timestamp, otherwise the value rendered as text.
func orderKey(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		if val {
			return "true", true
		}
		return "false", true
	case map[string]any:
		if ts, ok := val[timestampKey].(string); ok {
			return ts, true
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// matchesExpect compares the JSON encoding of every expected field.
func matchesExpect(data, expect map[string]any) (bool, error) {
	for field, want := range expect {
		wantRaw, err := json.Marshal(want)
		if err != nil {
			return false, err
		}
		v, ok := data[field]
		if !ok {
			return false, nil
		}
		gotRaw, err := json.Marshal(v)
		if err != nil || !bytes.Equal(gotRaw, wantRaw) {
			return false, nil
		}
	}
	return true, nil
}

func matchesFilters(data map[string]any, filters []filter, encoded [][]byte) bool {
	for i, f := range filters {
		v, ok := data[f.field]
		if !ok {
			return false
		}
		raw, err := json.Marshal(v)
		if err != nil || !bytes.Equal(raw, encoded[i]) {
			return false
		}
	}
	return true
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyData(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// MemoryHistory is the in-process StatusHistory.
type MemoryHistory struct {
	mx      sync.RWMutex
	entries map[string][]HistoryEntry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]HistoryEntry)}
}

func (h *MemoryHistory) Record(_ context.Context, entry HistoryEntry) error {
	h.mx.Lock()
	defer h.mx.Unlock()
	h.entries[entry.OrderDocID] = append(h.entries[entry.OrderDocID], entry)
	return nil
}

func (h *MemoryHistory) List(_ context.Context, orderDocID string) ([]HistoryEntry, error) {
	h.mx.RLock()
	defer h.mx.RUnlock()
	out := make([]HistoryEntry, len(h.entries[orderDocID]))
	copy(out, h.entries[orderDocID])
	return out, nil
}
