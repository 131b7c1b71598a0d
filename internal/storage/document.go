package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PrefixSentinel is appended to a prefix to form the inclusive upper bound of
// a prefix range scan. It sorts after every character typed in practice.
const PrefixSentinel = "\uf8ff"

// TimestampLayout is fixed width so that stored timestamps order correctly
// as text.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

const timestampKey = "timestampValue"

// Timestamp encodes t as the store-native timestamp value.
func Timestamp(t time.Time) map[string]any {
	return map[string]any{timestampKey: t.UTC().Format(TimestampLayout)}
}

type Document struct {
	ID        string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// String returns the field as text. Numbers and booleans are formatted;
// missing or structured values yield "".
func (d Document) String(field string) string {
	switch v := d.Data[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Int returns the field as an integer, or 0 when absent or not numeric.
func (d Document) Int(field string) int {
	switch v := d.Data[field].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

// Strings returns a string array field, skipping non-string elements.
func (d Document) Strings(field string) []string {
	var out []string
	switch v := d.Data[field].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	}
	return out
}

// Timestamp decodes a store-native timestamp. Plain RFC 3339 strings are
// accepted as well; anything else reports false.
func (d Document) Timestamp(field string) (time.Time, bool) {
	switch v := d.Data[field].(type) {
	case time.Time:
		return v, !v.IsZero()
	case map[string]any:
		s, ok := v[timestampKey].(string)
		if !ok {
			return time.Time{}, false
		}
		return parseTimestamp(s)
	case string:
		return parseTimestamp(v)
	}
	return time.Time{}, false
}

func parseTimestamp(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

type filter struct {
	field string
	value any
}

// Query describes a read of one collection. Builder methods return copies,
// so a base query can be shared.
type Query struct {
	collection string
	orderBy    string
	direction  Direction
	filters    []filter
	startAt    *string
	endAt      *string
	limit      int
}

func Collection(name string) Query {
	return Query{collection: name}
}

func (q Query) CollectionName() string {
	return q.collection
}

func (q Query) OrderBy(field string, dir Direction) Query {
	q.orderBy = field
	q.direction = dir
	return q
}

// Where adds an equality filter.
func (q Query) Where(field string, value any) Query {
	filters := make([]filter, len(q.filters), len(q.filters)+1)
	copy(filters, q.filters)
	q.filters = append(filters, filter{field: field, value: value})
	return q
}

func (q Query) StartAt(v string) Query {
	q.startAt = &v
	return q
}

func (q Query) EndAt(v string) Query {
	q.endAt = &v
	return q
}

// Prefix restricts the ordered field to values starting with p.
func (q Query) Prefix(p string) Query {
	return q.StartAt(p).EndAt(p + PrefixSentinel)
}

func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

func (q Query) validate() error {
	if q.collection == "" {
		return fmt.Errorf("query without collection")
	}
	if (q.startAt != nil || q.endAt != nil) && q.orderBy == "" {
		return fmt.Errorf("range bounds on %s require an order by field", q.collection)
	}
	return nil
}

// normalize round-trips data through JSON so both backends see the same
// value shapes (numbers as json.Number, times as strings).
func normalize(data map[string]any) (map[string]any, []byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, nil, err
	}
	out, err := decodeData(raw)
	return out, raw, err
}

func decodeData(raw []byte) (map[string]any, error) {
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
