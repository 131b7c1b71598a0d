package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

const documentColumns = "project, collection, id, data, created_at, updated_at"

type DocumentRepo struct {
	db db.DB
}

func NewDocumentRepo(db db.DB) storage.DocumentRepository {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Find(ctx context.Context, q repository.DocumentQuery) ([]*repository.Document, error) {
	query, args := buildFindQuery(q)

	var docs []*repository.Document
	if err := r.db.Select(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", q.Collection, err)
	}
	return docs, nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, key repository.DocumentKey) (*repository.Document, error) {
	var doc repository.Document
	err := r.db.Get(ctx, &doc,
		"SELECT "+documentColumns+" FROM documents WHERE project = $1 AND collection = $2 AND id = $3",
		key.Project, key.Collection, key.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) CreateTx(ctx context.Context, tx db.Tx, doc *repository.Document) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO documents (
            project, collection, id, data, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (project, collection, id)
        DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
    `, doc.Project, doc.Collection, doc.ID, doc.Data, doc.CreatedAt, doc.UpdatedAt)
	return err
}

// MergeTx overlays patch onto the stored document's top-level fields.
func (r *DocumentRepo) MergeTx(ctx context.Context, tx db.Tx, key repository.DocumentKey, patch json.RawMessage, updatedAt time.Time) error {
	tag, err := tx.Exec(ctx, `
        UPDATE documents
        SET
            data = data || $4::jsonb,
            updated_at = $5
        WHERE project = $1 AND collection = $2 AND id = $3
    `, key.Project, key.Collection, key.ID, patch, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

// MergeIfTx overlays patch only when the stored document contains expect.
func (r *DocumentRepo) MergeIfTx(ctx context.Context, tx db.Tx, key repository.DocumentKey, expect, patch json.RawMessage, updatedAt time.Time) error {
	tag, err := tx.Exec(ctx, `
        UPDATE documents
        SET
            data = data || $5::jsonb,
            updated_at = $6
        WHERE project = $1 AND collection = $2 AND id = $3
          AND data @> $4::jsonb
    `, key.Project, key.Collection, key.ID, expect, patch, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = tx.Get(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM documents WHERE project = $1 AND collection = $2 AND id = $3)",
		key.Project, key.Collection, key.ID)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrObjectNotFound
	}
	return repository.ErrConditionFailed
}

// AppendTx concatenates values (a JSON array) onto an array field. A missing
// or non-array field starts out empty.
func (r *DocumentRepo) AppendTx(ctx context.Context, tx db.Tx, key repository.DocumentKey, field string, values json.RawMessage, updatedAt time.Time) error {
	tag, err := tx.Exec(ctx, `
        UPDATE documents
        SET
            data = jsonb_set(
                data,
                ARRAY[$4::text],
                CASE WHEN jsonb_typeof(data -> $4::text) = 'array' THEN data -> $4::text ELSE '[]'::jsonb END || $5::jsonb
            ),
            updated_at = $6
        WHERE project = $1 AND collection = $2 AND id = $3
    `, key.Project, key.Collection, key.ID, field, values, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

// IncrementTx adds delta to a numeric field, treating a missing or
// non-numeric value as zero.
func (r *DocumentRepo) IncrementTx(ctx context.Context, tx db.Tx, key repository.DocumentKey, field string, delta int, updatedAt time.Time) error {
	tag, err := tx.Exec(ctx, `
        UPDATE documents
        SET
            data = jsonb_set(
                data,
                ARRAY[$4::text],
                to_jsonb(CASE WHEN jsonb_typeof(data -> $4) = 'number' THEN (data ->> $4)::numeric ELSE 0 END + $5)
            ),
            updated_at = $6
        WHERE project = $1 AND collection = $2 AND id = $3
    `, key.Project, key.Collection, key.ID, field, delta, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *DocumentRepo) DeleteTx(ctx context.Context, tx db.Tx, key repository.DocumentKey) error {
	tag, err := tx.Exec(ctx, "DELETE FROM documents WHERE project = $1 AND collection = $2 AND id = $3",
		key.Project, key.Collection, key.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

// buildFindQuery renders q as SQL. Field names always travel as parameters;
// the sort key prefers the timestampValue of a stored timestamp over the raw
// text so chronological fields order correctly.
func buildFindQuery(q repository.DocumentQuery) (string, []interface{}) {
	args := []interface{}{q.Project, q.Collection}
	param := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + documentColumns + " FROM documents WHERE project = $1 AND collection = $2")

	for _, f := range q.Filters {
		fmt.Fprintf(&sb, " AND data -> %s::text = %s::jsonb", param(f.Field), param(f.Value))
	}

	var key string
	if q.OrderBy != "" {
		field := param(q.OrderBy) + "::text"
		key = fmt.Sprintf("COALESCE(data -> %s ->> 'timestampValue', data ->> %s)", field, field)
		fmt.Fprintf(&sb, " AND data -> %s IS NOT NULL", field)

		if q.StartAt != nil {
			fmt.Fprintf(&sb, " AND %s COLLATE \"C\" >= %s", key, param(*q.StartAt))
		}
		if q.EndAt != nil {
			fmt.Fprintf(&sb, " AND %s COLLATE \"C\" <= %s", key, param(*q.EndAt))
		}
	}

	if key != "" {
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s COLLATE \"C\" %s, id ASC", key, direction)
	} else {
		sb.WriteString(" ORDER BY id ASC")
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %s", param(q.Limit))
	}

	return sb.String(), args
}
