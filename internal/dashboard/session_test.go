package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore()
	require.NoError(t, store.Apply(context.Background(),
		storage.Set(returns.OrdersCollection, "o1", map[string]any{"orderId": "RO-1", "distributor": "Acme", "createdOn": storage.Timestamp(base), "status": "Draft"}),
		storage.Set(returns.OrdersCollection, "o2", map[string]any{"orderId": "RO-2", "distributor": "Beta", "createdOn": storage.Timestamp(base.Add(time.Hour)), "status": "Delivered"}),
		storage.Set(returns.RequestsCollection, "q1", map[string]any{"distributor": "Acme", "serialNumber": "SN-1", "createdOn": storage.Timestamp(base)}),
	))

	format := returns.NewFormatter("1/2/2006", "3:04:05 PM", time.UTC)
	return NewSession("s1", Deps{
		Orders:           returns.NewOrderSource(store, format),
		Requests:         returns.NewRequestSource(store, format),
		DebounceInterval: 10 * time.Millisecond,
		Logger:           zap.NewNop(),
	})
}

func TestSession_MountsBothViews(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Await(ctx))

	orders := s.Orders.Snapshot()
	assert.Equal(t, []string{"o2", "o1"}, viewIDs(orders.View))

	requests := s.Requests.Snapshot()
	require.Len(t, requests.View, 1)
	assert.Equal(t, returns.CylinderNA, requests.View[0].Cylinder)
}

func TestSession_QuickFilterAndReload(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s.Orders.ToggleFilter(string(returns.StatusDraft))
	require.NoError(t, s.Orders.Await(ctx))
	assert.Equal(t, []string{"o1"}, viewIDs(s.Orders.Snapshot().View))

	s.Orders.ToggleFilter(string(returns.StatusDraft))
	require.NoError(t, s.Reload(ctx))
	assert.Len(t, s.Orders.Snapshot().View, 2)
}

func TestSession_Navigation(t *testing.T) {
	s := newTestSession(t)
	defer s.Close()

	assert.Equal(t, TabOrders, s.Tab())
	s.SetTab(TabRequests)
	assert.Equal(t, TabRequests, s.Tab())

	assert.False(t, s.Collapsed())
	s.ToggleCollapsed()
	assert.True(t, s.Collapsed())

	v, err := s.View(TabRequests)
	require.NoError(t, err)
	assert.Equal(t, "requests", v.Name())

	_, err = s.View("archive")
	assert.ErrorIs(t, err, ErrInvalidTab)
}

func TestParseTab(t *testing.T) {
	tests := []struct {
		in      string
		want    Tab
		wantErr bool
	}{
		{in: "order", want: TabOrders},
		{in: "requests", want: TabRequests},
		{in: "", want: TabOrders},
		{in: "orders", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTab(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTab)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
