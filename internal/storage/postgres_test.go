package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db"
	mock_database "gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
	mock_storage "gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage/mocks"
)

func TestPostgresStore_Find(t *testing.T) {
	ctx := context.Background()

	t.Run("translates query", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockDocs := mock_storage.NewMockDocumentRepository(ctrl)
		store := storage.NewPostgresStore(mockDB, mockDocs, "demo")

		created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
		mockDocs.EXPECT().Find(ctx, gomock.Any()).DoAndReturn(
			func(_ context.Context, q repository.DocumentQuery) ([]*repository.Document, error) {
				assert.Equal(t, "demo", q.Project)
				assert.Equal(t, "returnOrders", q.Collection)
				assert.Equal(t, "distributor", q.OrderBy)
				assert.False(t, q.Descending)
				require.NotNil(t, q.StartAt)
				require.NotNil(t, q.EndAt)
				assert.Equal(t, "Ac", *q.StartAt)
				assert.Equal(t, "Ac"+storage.PrefixSentinel, *q.EndAt)
				assert.Equal(t, 25, q.Limit)
				require.Len(t, q.Filters, 1)
				assert.Equal(t, "status", q.Filters[0].Field)
				assert.JSONEq(t, `"Draft"`, string(q.Filters[0].Value))

				return []*repository.Document{{
					Project:    "demo",
					Collection: "returnOrders",
					ID:         "r1",
					Data:       json.RawMessage(`{"distributor":"Acme","noOfItems":3}`),
					CreatedAt:  created,
					UpdatedAt:  created,
				}}, nil
			})

		q := storage.Collection("returnOrders").
			OrderBy("distributor", storage.Asc).
			Where("status", "Draft").
			Prefix("Ac").
			Limit(25)

		docs, err := store.Find(ctx, q)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "r1", docs[0].ID)
		assert.Equal(t, "Acme", docs[0].String("distributor"))
		assert.Equal(t, 3, docs[0].Int("noOfItems"))
		assert.Equal(t, created, docs[0].CreatedAt)
	})

	t.Run("range without order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := storage.NewPostgresStore(mock_database.NewMockDB(ctrl), mock_storage.NewMockDocumentRepository(ctrl), "demo")

		_, err := store.Find(ctx, storage.Collection("returnOrders").StartAt("a"))
		assert.Error(t, err)
	})

	t.Run("repository error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDocs := mock_storage.NewMockDocumentRepository(ctrl)
		store := storage.NewPostgresStore(mock_database.NewMockDB(ctrl), mockDocs, "demo")

		expectedErr := errors.New("database error")
		mockDocs.EXPECT().Find(ctx, gomock.Any()).Return(nil, expectedErr)

		docs, err := store.Find(ctx, storage.Collection("returnOrders"))
		assert.ErrorIs(t, err, expectedErr)
		assert.Nil(t, docs)
	})
}

func TestPostgresStore_Get(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDocs := mock_storage.NewMockDocumentRepository(ctrl)
	store := storage.NewPostgresStore(mock_database.NewMockDB(ctrl), mockDocs, "demo")

	key := repository.DocumentKey{Project: "demo", Collection: "returnOrders", ID: "missing"}
	mockDocs.EXPECT().GetByID(ctx, key).Return(nil, repository.ErrObjectNotFound)

	_, err := store.Get(ctx, "returnOrders", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresStore_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("commits all ops in one transaction", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		mockDocs := mock_storage.NewMockDocumentRepository(ctrl)
		store := storage.NewPostgresStore(mockDB, mockDocs, "demo")

		orderKey := repository.DocumentKey{Project: "demo", Collection: "returnOrders", ID: "o1"}
		requestKey := repository.DocumentKey{Project: "demo", Collection: "returnRequests", ID: "q1"}

		gomock.InOrder(
			mockDB.EXPECT().BeginTx(ctx).Return(mockTx, nil),
			mockDocs.EXPECT().IncrementTx(ctx, mockTx, orderKey, "noOfItems", 1, gomock.Any()).Return(nil),
			mockDocs.EXPECT().MergeTx(ctx, mockTx, requestKey, gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, _ db.Tx, _ repository.DocumentKey, patch json.RawMessage, _ time.Time) error {
					assert.JSONEq(t, `{"returnOrderId":"o1"}`, string(patch))
					return nil
				}),
			mockTx.EXPECT().Commit(ctx).Return(nil),
		)
		mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := store.Apply(ctx,
			storage.Increment("returnOrders", "o1", "noOfItems", 1),
			storage.Update("returnRequests", "q1", map[string]any{"returnOrderId": "o1"}),
		)
		assert.NoError(t, err)
	})

	t.Run("missing document rolls back", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		mockDocs := mock_storage.NewMockDocumentRepository(ctrl)
		store := storage.NewPostgresStore(mockDB, mockDocs, "demo")

		mockDB.EXPECT().BeginTx(ctx).Return(mockTx, nil)
		mockDocs.EXPECT().DeleteTx(ctx, mockTx, gomock.Any()).Return(repository.ErrObjectNotFound)
		mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := store.Apply(ctx, storage.Delete("returnOrders", "o1"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("guarded update and append", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		mockTx := mock_database.NewMockTx(ctrl)
		mockDocs := mock_storage.NewMockDocumentRepository(ctrl)
		store := storage.NewPostgresStore(mockDB, mockDocs, "demo")

		orderKey := repository.DocumentKey{Project: "demo", Collection: "returnOrders", ID: "o1"}

		gomock.InOrder(
			mockDB.EXPECT().BeginTx(ctx).Return(mockTx, nil),
			mockDocs.EXPECT().AppendTx(ctx, mockTx, orderKey, "documents", gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, _ db.Tx, _ repository.DocumentKey, _ string, values json.RawMessage, _ time.Time) error {
					assert.JSONEq(t, `["returnOrders/o1/label.pdf"]`, string(values))
					return nil
				}),
			mockDocs.EXPECT().MergeIfTx(ctx, mockTx, orderKey, gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, _ db.Tx, _ repository.DocumentKey, expect, patch json.RawMessage, _ time.Time) error {
					assert.JSONEq(t, `{"status":"Return Order created"}`, string(expect))
					assert.JSONEq(t, `{"status":"Pending Delivery"}`, string(patch))
					return repository.ErrConditionFailed
				}),
		)
		mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

		err := store.Apply(ctx,
			storage.Append("returnOrders", "o1", "documents", "returnOrders/o1/label.pdf"),
			storage.UpdateIf("returnOrders", "o1",
				map[string]any{"status": "Return Order created"},
				map[string]any{"status": "Pending Delivery"}),
		)
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("no ops", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := storage.NewPostgresStore(mock_database.NewMockDB(ctrl), mock_storage.NewMockDocumentRepository(ctrl), "demo")
		assert.NoError(t, store.Apply(ctx))
	})
}

func TestOutboxSink_Enqueue(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDB := mock_database.NewMockDB(ctrl)
	mockTx := mock_database.NewMockTx(ctrl)
	mockTasks := mock_storage.NewMockOutboxTaskRepository(ctrl)
	sink := storage.NewOutboxSink(mockDB, mockTasks)

	mockDB.EXPECT().BeginTx(ctx).Return(mockTx, nil)
	mockTasks.EXPECT().CreateTx(ctx, mockTx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ db.Tx, task *repository.OutboxTask) error {
			assert.Equal(t, "return_actions", task.Topic)
			assert.JSONEq(t, `{"action":"fax"}`, string(task.Payload))
			return nil
		})
	mockTx.EXPECT().Commit(ctx).Return(nil)
	mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

	err := sink.Enqueue(ctx, "return_actions", map[string]string{"action": "fax"})
	assert.NoError(t, err)
}

func TestPostgresHistory(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDB := mock_database.NewMockDB(ctrl)
	mockTx := mock_database.NewMockTx(ctrl)
	mockRepo := mock_storage.NewMockHistoryRepository(ctrl)
	history := storage.NewPostgresHistory(mockDB, mockRepo, "demo")

	changed := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	mockDB.EXPECT().BeginTx(ctx).Return(mockTx, nil)
	mockRepo.EXPECT().CreateTx(ctx, mockTx, &repository.HistoryEntry{
		Project:    "demo",
		OrderDocID: "o1",
		OldStatus:  "Return Order created",
		NewStatus:  "Pending Delivery",
		ChangedAt:  changed,
	}).Return(nil)
	mockTx.EXPECT().Commit(ctx).Return(nil)
	mockTx.EXPECT().Rollback(gomock.Any()).Return(nil)

	require.NoError(t, history.Record(ctx, storage.HistoryEntry{
		OrderDocID: "o1",
		OldStatus:  "Return Order created",
		NewStatus:  "Pending Delivery",
		ChangedAt:  changed,
	}))

	mockRepo.EXPECT().GetByOrder(ctx, "demo", "o1").Return([]*repository.HistoryEntry{{
		ID:         1,
		Project:    "demo",
		OrderDocID: "o1",
		OldStatus:  "Return Order created",
		NewStatus:  "Pending Delivery",
		ChangedAt:  changed,
	}}, nil)

	entries, err := history.List(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Pending Delivery", entries[0].NewStatus)
}
