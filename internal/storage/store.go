//go:generate mockgen -source ./store.go -destination=./mocks/store.go -package=mock_storage
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/repository"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document does not match the expected fields")
)

// Store is the document store capability handed to every consumer.
type Store interface {
	Find(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Apply executes all ops atomically.
	Apply(ctx context.Context, ops ...Op) error
	Ping(ctx context.Context) error
}

// EventSink accepts integration events for asynchronous delivery.
type EventSink interface {
	Enqueue(ctx context.Context, topic string, payload any) error
}

type HistoryEntry struct {
	OrderDocID string    `json:"order_doc_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	ChangedAt  time.Time `json:"changed_at"`
}

type StatusHistory interface {
	Record(ctx context.Context, entry HistoryEntry) error
	List(ctx context.Context, orderDocID string) ([]HistoryEntry, error)
}

type DocumentRepository interface {
	Find(ctx context.Context, q repository.DocumentQuery) ([]*repository.Document, error)
	GetByID(ctx context.Context, key repository.DocumentKey) (*repository.Document, error)
	CreateTx(ctx context.Context, tx db.Tx, doc *repository.Document) error
	MergeTx(ctx context.Context, tx db.Tx, key repository.DocumentKey, patch json.RawMessage, updatedAt time.Time) error
	MergeIfTx(ctx context.Context, tx db.Tx, key repository.DocumentKey, expect, patch json.RawMessage, updatedAt time.Time) error
	AppendTx(ctx context.Context, tx db.Tx, key repository.DocumentKey, field string, values json.RawMessage, updatedAt time.Time) error
	IncrementTx(ctx context.Context, tx db.Tx, key repository.DocumentKey, field string, delta int, updatedAt time.Time) error
	DeleteTx(ctx context.Context, tx db.Tx, key repository.DocumentKey) error
}

type HistoryRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, entry *repository.HistoryEntry) error
	GetByOrder(ctx context.Context, project, orderDocID string) ([]*repository.HistoryEntry, error)
}

type OutboxTaskRepository interface {
	CreateTx(ctx context.Context, tx db.Tx, task *repository.OutboxTask) error
	GetProcessableTasksTx(ctx context.Context, tx db.Tx, limit int) ([]*repository.OutboxTask, error)
	UpdateTaskStatusTx(ctx context.Context, tx db.Tx, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
	UpdateTaskStatus(ctx context.Context, db db.DB, id uuid.UUID, status repository.TaskStatus, attempts int, lastError *string, completedAt *time.Time) error
}

type OpKind int

const (
	OpSet OpKind = iota
	OpUpdate
	OpIncrement
	OpDelete
	OpAppend
)

// Op is one write inside an atomic batch.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Fields     map[string]any
	Expect     map[string]any
	Field      string
	Delta      int
	Value      any
}

// Set creates the document or replaces it entirely.
func Set(collection, id string, data map[string]any) Op {
	return Op{Kind: OpSet, Collection: collection, ID: id, Fields: data}
}

// Update merges fields into an existing document.
func Update(collection, id string, fields map[string]any) Op {
	return Op{Kind: OpUpdate, Collection: collection, ID: id, Fields: fields}
}

// UpdateIf merges fields only while every field in expect still holds its
// expected value. A mismatch fails the batch with ErrConflict.
func UpdateIf(collection, id string, expect, fields map[string]any) Op {
	return Op{Kind: OpUpdate, Collection: collection, ID: id, Fields: fields, Expect: expect}
}

func Increment(collection, id, field string, delta int) Op {
	return Op{Kind: OpIncrement, Collection: collection, ID: id, Field: field, Delta: delta}
}

func Delete(collection, id string) Op {
	return Op{Kind: OpDelete, Collection: collection, ID: id}
}

// Append adds value to the end of an array field, creating the array when
// the field is absent.
func Append(collection, id, field string, value any) Op {
	return Op{Kind: OpAppend, Collection: collection, ID: id, Field: field, Value: value}
}
