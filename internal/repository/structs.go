package repository

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrObjectNotFound  = errors.New("not found")
	ErrConditionFailed = errors.New("condition failed")
)

type Document struct {
	Project    string          `db:"project"`
	Collection string          `db:"collection"`
	ID         string          `db:"id"`
	Data       json.RawMessage `db:"data"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

type DocumentKey struct {
	Project    string
	Collection string
	ID         string
}

// FieldFilter matches documents whose top-level field equals Value (JSON encoded).
type FieldFilter struct {
	Field string
	Value json.RawMessage
}

// DocumentQuery selects documents of one collection. StartAt and EndAt are
// inclusive bounds on the OrderBy key compared in code point order.
type DocumentQuery struct {
	Project    string
	Collection string
	OrderBy    string
	Descending bool
	Filters    []FieldFilter
	StartAt    *string
	EndAt      *string
	Limit      int
}

type HistoryEntry struct {
	ID         int64     `db:"id"`
	Project    string    `db:"project"`
	OrderDocID string    `db:"order_doc_id"`
	OldStatus  string    `db:"old_status"`
	NewStatus  string    `db:"new_status"`
	ChangedAt  time.Time `db:"changed_at"`
}
