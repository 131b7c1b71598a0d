package returns

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	mock_returns "gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns/mocks"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
	mock_storage "gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage/mocks"
)

type serviceFixture struct {
	store   *storage.MemoryStore
	events  *mock_storage.MockEventSink
	history *storage.MemoryHistory
	files   *mock_returns.MockFileStore
	svc     *Service
}

func newServiceFixture(t *testing.T, ctrl *gomock.Controller) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		store:   seededStore(t),
		events:  mock_storage.NewMockEventSink(ctrl),
		history: storage.NewMemoryHistory(),
		files:   mock_returns.NewMockFileStore(ctrl),
	}
	f.svc = NewService(f.store, f.events, f.history, f.files, "return_actions", zap.NewNop())
	f.svc.now = func() time.Time { return fixedNow }
	f.svc.newID = func() string { return "1b4e28ba-2fa1-11d2-883f-0016d3cca427" }
	return f
}

func TestService_MarkAsSent(t *testing.T) {
	ctx := context.Background()

	t.Run("return order created moves to pending delivery", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newServiceFixture(t, ctrl)

		require.NoError(t, f.svc.MarkAsSent(ctx, "o2"))

		doc, err := f.store.Get(ctx, OrdersCollection, "o2")
		require.NoError(t, err)
		assert.Equal(t, string(StatusPendingDelivery), doc.String(FieldStatus))

		entries, err := f.svc.History(ctx, "o2")
		require.NoError(t, err)
		assert.Equal(t, []storage.HistoryEntry{{
			OrderDocID: "o2",
			OldStatus:  string(StatusReturnOrderCreated),
			NewStatus:  string(StatusPendingDelivery),
			ChangedAt:  fixedNow,
		}}, entries)
	})

	t.Run("other statuses are rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newServiceFixture(t, ctrl)

		assert.ErrorIs(t, f.svc.MarkAsSent(ctx, "o1"), ErrInvalidTransition)
		assert.ErrorIs(t, f.svc.MarkAsSent(ctx, "missing"), storage.ErrNotFound)
	})
}

func TestService_MarkAsSentConcurrent(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.MarkAsSent(ctx, "o2")
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)

	entries, err := f.svc.History(ctx, "o2")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_Track(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	f.events.EXPECT().Enqueue(ctx, "return_actions", ActionEvent{
		EventID:    "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		Type:       EventTrack,
		Collection: OrdersCollection,
		DocumentID: "o3",
		OrderID:    "RO-200",
		OccurredAt: fixedNow,
	}).Return(nil)

	require.NoError(t, f.svc.Track(ctx, "o3"))
	assert.ErrorIs(t, f.svc.Track(ctx, "o2"), ErrInvalidTransition)
}

func TestService_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("fax", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newServiceFixture(t, ctrl)

		f.events.EXPECT().Enqueue(ctx, "return_actions", gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, payload any) error {
				event, ok := payload.(ActionEvent)
				require.True(t, ok)
				assert.Equal(t, EventAction, event.Type)
				assert.Equal(t, ChannelFax, event.Channel)
				assert.Equal(t, "q1", event.DocumentID)
				return nil
			})

		require.NoError(t, f.svc.Send(ctx, RequestsCollection, "q1", ChannelFax))
	})

	t.Run("sink failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newServiceFixture(t, ctrl)

		expectedErr := errors.New("outbox unavailable")
		f.events.EXPECT().Enqueue(ctx, gomock.Any(), gomock.Any()).Return(expectedErr)

		assert.ErrorIs(t, f.svc.Send(ctx, OrdersCollection, "o1", ChannelEmail), expectedErr)
	})

	t.Run("unknown collection", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newServiceFixture(t, ctrl)

		assert.ErrorIs(t, f.svc.Send(ctx, "users", "u1", ChannelEmail), ErrUnknownCollection)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	require.NoError(t, f.svc.Delete(ctx, OrdersCollection, "o1"))

	_, err := f.store.Get(ctx, OrdersCollection, "o1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, OrdersCollection, "o1"), storage.ErrNotFound)
}

func TestService_UploadAndDownload(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	_, err := f.svc.DownloadURL(ctx, OrdersCollection, "o1")
	assert.ErrorIs(t, err, ErrNoDocument)

	expectedKey := "returnOrder/o1/1b4e28ba-2fa1-11d2-883f-0016d3cca427-label.pdf"
	f.files.EXPECT().Put(ctx, expectedKey, "application/pdf", gomock.Any(), int64(7)).DoAndReturn(
		func(_ context.Context, _, _ string, body io.Reader, _ int64) error {
			data, err := io.ReadAll(body)
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.", string(data))
			return nil
		})

	key, err := f.svc.Upload(ctx, OrdersCollection, "o1", `C:\scans\label.pdf`, "application/pdf", strings.NewReader("%PDF-1."), 7)
	require.NoError(t, err)
	assert.Equal(t, expectedKey, key)

	doc, err := f.store.Get(ctx, OrdersCollection, "o1")
	require.NoError(t, err)
	assert.Equal(t, []string{expectedKey}, doc.Strings(FieldDocuments))

	f.files.EXPECT().PresignGet(ctx, expectedKey).Return("https://files.example/label.pdf?sig=1", nil)

	url, err := f.svc.DownloadURL(ctx, OrdersCollection, "o1")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/label.pdf?sig=1", url)
}

func TestService_ConcurrentUploadsKeepEveryKey(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	f.files.EXPECT().Put(ctx, gomock.Any(), "application/pdf", gomock.Any(), int64(0)).Return(nil).Times(4)

	names := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := f.svc.Upload(ctx, OrdersCollection, "o1", name, "application/pdf", strings.NewReader(""), 0)
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	doc, err := f.store.Get(ctx, OrdersCollection, "o1")
	require.NoError(t, err)
	var expected []string
	for _, name := range names {
		expected = append(expected, "returnOrder/o1/1b4e28ba-2fa1-11d2-883f-0016d3cca427-"+name)
	}
	assert.ElementsMatch(t, expected, doc.Strings(FieldDocuments))
}

func TestService_FilesDisabled(t *testing.T) {
	ctx := context.Background()
	svc := NewService(seededStore(t), nil, storage.NewMemoryHistory(), nil, "return_actions", zap.NewNop())

	_, err := svc.Upload(ctx, OrdersCollection, "o1", "a.pdf", "application/pdf", strings.NewReader(""), 0)
	assert.ErrorIs(t, err, ErrFilesDisabled)

	_, err = svc.DownloadURL(ctx, OrdersCollection, "o1")
	assert.ErrorIs(t, err, ErrFilesDisabled)
}

func TestService_AttachNew(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	orderDocID, err := f.svc.AttachNew(ctx, "q1")
	require.NoError(t, err)

	order, err := f.store.Get(ctx, OrdersCollection, orderDocID)
	require.NoError(t, err)
	assert.Equal(t, "RO-1B4E28BA", order.String(FieldOrderID))
	assert.Equal(t, "Acme", order.String(FieldDistributor))
	assert.Equal(t, 1, order.Int(FieldNoOfItems))
	assert.Equal(t, string(StatusDraft), order.String(FieldStatus))
	createdOn, ok := order.Timestamp(FieldCreatedOn)
	require.True(t, ok)
	assert.True(t, fixedNow.Equal(createdOn))

	req, err := f.store.Get(ctx, RequestsCollection, "q1")
	require.NoError(t, err)
	assert.Equal(t, orderDocID, req.String(FieldReturnOrderID))
}

func TestService_AttachExisting(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	f := newServiceFixture(t, ctrl)

	require.NoError(t, f.svc.AttachExisting(ctx, "q2", "o1"))

	order, err := f.store.Get(ctx, OrdersCollection, "o1")
	require.NoError(t, err)
	assert.Equal(t, 3, order.Int(FieldNoOfItems))

	assert.ErrorIs(t, f.svc.AttachExisting(ctx, "q2", "o1"), ErrAlreadyAttached)

	err = f.svc.AttachExisting(ctx, "q1", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	req, err := f.store.Get(ctx, RequestsCollection, "q1")
	require.NoError(t, err)
	assert.Empty(t, req.String(FieldReturnOrderID))
}

func TestService_Reattach(t *testing.T) {
	ctx := context.Background()

	noOfItems := func(t *testing.T, store *storage.MemoryStore, id string) int {
		t.Helper()
		doc, err := store.Get(ctx, OrdersCollection, id)
		require.NoError(t, err)
		return doc.Int(FieldNoOfItems)
	}

	t.Run("existing order takes the item from the previous one", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newServiceFixture(t, ctrl)

		require.NoError(t, f.svc.AttachExisting(ctx, "q1", "o1"))
		assert.Equal(t, 3, noOfItems(t, f.store, "o1"))

		require.NoError(t, f.svc.AttachExisting(ctx, "q1", "o2"))
		assert.Equal(t, 2, noOfItems(t, f.store, "o1"))
		assert.Equal(t, 2, noOfItems(t, f.store, "o2"))

		req, err := f.store.Get(ctx, RequestsCollection, "q1")
		require.NoError(t, err)
		assert.Equal(t, "o2", req.String(FieldReturnOrderID))
	})

	t.Run("new order takes the item from the previous one", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newServiceFixture(t, ctrl)

		require.NoError(t, f.svc.AttachExisting(ctx, "q2", "o3"))
		assert.Equal(t, 5, noOfItems(t, f.store, "o3"))

		orderDocID, err := f.svc.AttachNew(ctx, "q2")
		require.NoError(t, err)
		assert.Equal(t, 4, noOfItems(t, f.store, "o3"))
		assert.Equal(t, 1, noOfItems(t, f.store, orderDocID))
	})

	t.Run("deleted previous order is skipped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newServiceFixture(t, ctrl)

		require.NoError(t, f.svc.AttachExisting(ctx, "q1", "o1"))
		require.NoError(t, f.svc.Delete(ctx, OrdersCollection, "o1"))

		require.NoError(t, f.svc.AttachExisting(ctx, "q1", "o2"))
		assert.Equal(t, 2, noOfItems(t, f.store, "o2"))
	})

	t.Run("failed attach leaves counts untouched", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newServiceFixture(t, ctrl)

		require.NoError(t, f.svc.AttachExisting(ctx, "q1", "o1"))

		err := f.svc.AttachExisting(ctx, "q1", "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.Equal(t, 3, noOfItems(t, f.store, "o1"))
	})
}
