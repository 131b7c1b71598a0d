package listview

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Sort struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Toggle flips the direction when field is already active and otherwise
// selects field ascending.
func (s Sort) Toggle(field string) Sort {
	if s.Field == field {
		if s.Direction == Asc {
			return Sort{Field: field, Direction: Desc}
		}
		return Sort{Field: field, Direction: Asc}
	}
	return Sort{Field: field, Direction: Asc}
}

// SortKey describes one sortable column. Time takes precedence over Text.
type SortKey[R any] struct {
	Field string
	Label string
	Text  func(R) string
	Time  func(R) time.Time
}

type Schema[R any] struct {
	ID       func(R) string
	SortKeys []SortKey[R]
	// Strings lists the string-valued fields searched by the filter.
	Strings func(R) []string
}

func (s Schema[R]) SortKey(field string) (SortKey[R], bool) {
	for _, k := range s.SortKeys {
		if k.Field == field {
			return k, true
		}
	}
	return SortKey[R]{}, false
}

// Derive sorts rows by sort and keeps those having a string field that
// contains search, ignoring case. The input slice is not modified.
func Derive[R any](schema Schema[R], rows []R, s Sort, search string) []R {
	out := make([]R, 0, len(rows))
	needle := strings.ToLower(search)
	for _, row := range rows {
		if Matches(schema, row, needle) {
			out = append(out, row)
		}
	}

	key, ok := schema.SortKey(s.Field)
	if !ok {
		return out
	}

	var less func(a, b R) int
	if key.Time != nil {
		less = func(a, b R) int {
			return key.Time(a).Compare(key.Time(b))
		}
	} else {
		// Collators are not safe for concurrent use.
		col := collate.New(language.English)
		less = func(a, b R) int {
			return col.CompareString(key.Text(a), key.Text(b))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := less(out[i], out[j])
		if s.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Matches reports whether some string field of row contains needle, which
// must already be lower case. An empty needle matches every row.
func Matches[R any](schema Schema[R], row R, needle string) bool {
	if needle == "" {
		return true
	}
	for _, v := range schema.Strings(row) {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// Distinct keeps the first occurrence of each value, up to limit entries.
func Distinct(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, limit)
	for _, v := range values {
		if len(out) == limit {
			break
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
