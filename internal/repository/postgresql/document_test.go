package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/repository"
)

func strPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}

func TestBuildFindQuery(t *testing.T) {
	tests := []struct {
		name         string
		query        repository.DocumentQuery
		expectedSQL  string
		expectedArgs []interface{}
	}{
		{
			name:  "collection only",
			query: repository.DocumentQuery{Project: "demo", Collection: "returnOrders"},
			expectedSQL: "SELECT " + documentColumns + " FROM documents WHERE project = $1 AND collection = $2" +
				" ORDER BY id ASC",
			expectedArgs: []interface{}{"demo", "returnOrders"},
		},
		{
			name: "ordered prefix with filter and limit",
			query: repository.DocumentQuery{
				Project:    "demo",
				Collection: "returnOrders",
				OrderBy:    "distributor",
				Descending: true,
				Filters:    []repository.FieldFilter{{Field: "status", Value: json.RawMessage(`"Draft"`)}},
				StartAt:    strPtr("Ac"),
				EndAt:      strPtr("Ac"),
				Limit:      25,
			},
			expectedSQL: "SELECT " + documentColumns + " FROM documents WHERE project = $1 AND collection = $2" +
				" AND data -> $3::text = $4::jsonb" +
				" AND data -> $5::text IS NOT NULL" +
				" AND COALESCE(data -> $5::text ->> 'timestampValue', data ->> $5::text) COLLATE \"C\" >= $6" +
				" AND COALESCE(data -> $5::text ->> 'timestampValue', data ->> $5::text) COLLATE \"C\" <= $7" +
				" ORDER BY COALESCE(data -> $5::text ->> 'timestampValue', data ->> $5::text) COLLATE \"C\" DESC, id ASC" +
				" LIMIT $8",
			expectedArgs: []interface{}{"demo", "returnOrders", "status", json.RawMessage(`"Draft"`), "distributor", "Ac", "Ac", 25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildFindQuery(tt.query)
			assert.Equal(t, tt.expectedSQL, sql)
			assert.Equal(t, tt.expectedArgs, args)
		})
	}
}

func TestDocumentRepo_GetByID(t *testing.T) {
	ctx := context.Background()
	key := repository.DocumentKey{Project: "demo", Collection: "returnOrders", ID: "o1"}

	t.Run("document found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewDocumentRepo(mockDB)

		now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
		expected := &repository.Document{
			Project:    key.Project,
			Collection: key.Collection,
			ID:         key.ID,
			Data:       json.RawMessage(`{"distributor":"Acme"}`),
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), key.Project, key.Collection, key.ID).
			DoAndReturn(func(_ context.Context, dest *repository.Document, _ string, _ ...interface{}) error {
				*dest = *expected
				return nil
			})

		doc, err := repo.GetByID(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, expected, doc)
	})

	t.Run("document not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewDocumentRepo(mockDB)

		mockDB.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgx.ErrNoRows)

		doc, err := repo.GetByID(ctx, key)
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
		assert.Nil(t, doc)
	})
}

func TestDocumentRepo_Find(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDB := mock_database.NewMockDB(ctrl)
	repo := NewDocumentRepo(mockDB)

	expectedErr := errors.New("database error")
	mockDB.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), "demo", "returnRequests").Return(expectedErr)

	docs, err := repo.Find(ctx, repository.DocumentQuery{Project: "demo", Collection: "returnRequests"})
	assert.ErrorIs(t, err, expectedErr)
	assert.Nil(t, docs)
}

func TestDocumentRepo_Writes(t *testing.T) {
	ctx := context.Background()
	key := repository.DocumentKey{Project: "demo", Collection: "returnOrders", ID: "o1"}
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	t.Run("merge", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewDocumentRepo(mock_database.NewMockDB(ctrl))

		patch := json.RawMessage(`{"status":"Pending Delivery"}`)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), key.Project, key.Collection, key.ID, patch, now).
			Return(pgconn.CommandTag("UPDATE 1"), nil)

		assert.NoError(t, repo.MergeTx(ctx, mockTx, key, patch, now))
	})

	t.Run("merge missing document", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewDocumentRepo(mock_database.NewMockDB(ctrl))

		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(pgconn.CommandTag("UPDATE 0"), nil)

		err := repo.MergeTx(ctx, mockTx, key, json.RawMessage(`{}`), now)
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})

	t.Run("conditional merge", func(t *testing.T) {
		expect := json.RawMessage(`{"status":"Return Order created"}`)
		patch := json.RawMessage(`{"status":"Pending Delivery"}`)

		tests := []struct {
			name        string
			tag         pgconn.CommandTag
			exists      *bool
			expectedErr error
		}{
			{name: "matched", tag: pgconn.CommandTag("UPDATE 1")},
			{name: "status changed", tag: pgconn.CommandTag("UPDATE 0"), exists: boolPtr(true), expectedErr: repository.ErrConditionFailed},
			{name: "missing document", tag: pgconn.CommandTag("UPDATE 0"), exists: boolPtr(false), expectedErr: repository.ErrObjectNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				mockTx := mock_database.NewMockTx(ctrl)
				repo := NewDocumentRepo(mock_database.NewMockDB(ctrl))

				mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), key.Project, key.Collection, key.ID, expect, patch, now).
					Return(tt.tag, nil)
				if tt.exists != nil {
					mockTx.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any(), key.Project, key.Collection, key.ID).
						DoAndReturn(func(_ context.Context, dest interface{}, _ string, _ ...interface{}) error {
							*dest.(*bool) = *tt.exists
							return nil
						})
				}

				err := repo.MergeIfTx(ctx, mockTx, key, expect, patch, now)
				if tt.expectedErr != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("append", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewDocumentRepo(mock_database.NewMockDB(ctrl))

		values := json.RawMessage(`["returnOrders/o1/label.pdf"]`)
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), key.Project, key.Collection, key.ID, "documents", values, now).
			Return(pgconn.CommandTag("UPDATE 0"), nil)

		err := repo.AppendTx(ctx, mockTx, key, "documents", values, now)
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})

	t.Run("increment", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewDocumentRepo(mock_database.NewMockDB(ctrl))

		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), key.Project, key.Collection, key.ID, "noOfItems", 1, now).
			Return(pgconn.CommandTag("UPDATE 1"), nil)

		assert.NoError(t, repo.IncrementTx(ctx, mockTx, key, "noOfItems", 1, now))
	})

	t.Run("delete error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewDocumentRepo(mock_database.NewMockDB(ctrl))

		expectedErr := errors.New("database error")
		mockTx.EXPECT().Exec(gomock.Any(), gomock.Any(), key.Project, key.Collection, key.ID).
			Return(nil, expectedErr)

		assert.Equal(t, expectedErr, repo.DeleteTx(ctx, mockTx, key))
	})
}
