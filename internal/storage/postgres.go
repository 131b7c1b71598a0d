package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/repository"
)

// PostgresStore keeps every collection of a project in the documents table.
type PostgresStore struct {
	db        db.DB
	documents DocumentRepository
	project   string
	now       func() time.Time
}

func NewPostgresStore(database db.DB, documents DocumentRepository, project string) *PostgresStore {
	return &PostgresStore{
		db:        database,
		documents: documents,
		project:   project,
		now:       time.Now,
	}
}

func (s *PostgresStore) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	dq := repository.DocumentQuery{
		Project:    s.project,
		Collection: q.collection,
		OrderBy:    q.orderBy,
		Descending: q.direction == Desc,
		StartAt:    q.startAt,
		EndAt:      q.endAt,
		Limit:      q.limit,
	}
	for _, f := range q.filters {
		raw, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", f.field, err)
		}
		dq.Filters = append(dq.Filters, repository.FieldFilter{Field: f.field, Value: raw})
	}

	rows, err := s.documents.Find(ctx, dq)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		doc, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row, err := s.documents.GetByID(ctx, repository.DocumentKey{Project: s.project, Collection: collection, ID: id})
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return fromRow(row)
}

func (s *PostgresStore) Apply(ctx context.Context, ops ...Op) error {
	if len(ops) == 0 {
		return nil
	}
	now := s.now().UTC()

	err := db.WithTx(ctx, s.db, func(tx db.Tx) error {
		for _, op := range ops {
			if err := s.applyTx(ctx, tx, op, now); err != nil {
				return fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, err)
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, repository.ErrObjectNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrConditionFailed):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (s *PostgresStore) applyTx(ctx context.Context, tx db.Tx, op Op, now time.Time) error {
	key := repository.DocumentKey{Project: s.project, Collection: op.Collection, ID: op.ID}

	switch op.Kind {
	case OpSet:
		raw, err := json.Marshal(op.Fields)
		if err != nil {
			return err
		}
		return s.documents.CreateTx(ctx, tx, &repository.Document{
			Project:    key.Project,
			Collection: key.Collection,
			ID:         key.ID,
			Data:       raw,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	case OpUpdate:
		raw, err := json.Marshal(op.Fields)
		if err != nil {
			return err
		}
		if len(op.Expect) == 0 {
			return s.documents.MergeTx(ctx, tx, key, raw, now)
		}
		expect, err := json.Marshal(op.Expect)
		if err != nil {
			return err
		}
		return s.documents.MergeIfTx(ctx, tx, key, expect, raw, now)
	case OpAppend:
		values, err := json.Marshal([]any{op.Value})
		if err != nil {
			return err
		}
		return s.documents.AppendTx(ctx, tx, key, op.Field, values, now)
	case OpIncrement:
		return s.documents.IncrementTx(ctx, tx, key, op.Field, op.Delta, now)
	case OpDelete:
		return s.documents.DeleteTx(ctx, tx, key)
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func fromRow(row *repository.Document) (Document, error) {
	data, err := decodeData(row.Data)
	if err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", row.Collection, row.ID, err)
	}
	return Document{
		ID:        row.ID,
		Data:      data,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpIncrement:
		return "increment"
	case OpDelete:
		return "delete"
	case OpAppend:
		return "append"
	default:
		return "unknown"
	}
}

// OutboxSink persists events as outbox tasks; the publisher delivers them.
type OutboxSink struct {
	db    db.DB
	tasks OutboxTaskRepository
}

func NewOutboxSink(database db.DB, tasks OutboxTaskRepository) *OutboxSink {
	return &OutboxSink{db: database, tasks: tasks}
}

func (s *OutboxSink) Enqueue(ctx context.Context, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return db.WithTx(ctx, s.db, func(tx db.Tx) error {
		return s.tasks.CreateTx(ctx, tx, &repository.OutboxTask{
			Payload: raw,
			Topic:   topic,
		})
	})
}

type PostgresHistory struct {
	db      db.DB
	repo    HistoryRepository
	project string
}

func NewPostgresHistory(database db.DB, repo HistoryRepository, project string) *PostgresHistory {
	return &PostgresHistory{db: database, repo: repo, project: project}
}

func (h *PostgresHistory) Record(ctx context.Context, entry HistoryEntry) error {
	return db.WithTx(ctx, h.db, func(tx db.Tx) error {
		return h.repo.CreateTx(ctx, tx, &repository.HistoryEntry{
			Project:    h.project,
			OrderDocID: entry.OrderDocID,
			OldStatus:  entry.OldStatus,
			NewStatus:  entry.NewStatus,
			ChangedAt:  entry.ChangedAt,
		})
	})
}

func (h *PostgresHistory) List(ctx context.Context, orderDocID string) ([]HistoryEntry, error) {
	rows, err := h.repo.GetByOrder(ctx, h.project, orderDocID)
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, HistoryEntry{
			OrderDocID: row.OrderDocID,
			OldStatus:  row.OldStatus,
			NewStatus:  row.NewStatus,
			ChangedAt:  row.ChangedAt,
		})
	}
	return entries, nil
}
