package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

func TestDefault(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)
	assert.Len(t, f.Orders, 5)
	assert.Len(t, f.Requests, 3)

	statuses := make(map[string]bool)
	for _, o := range f.Orders {
		statuses[o.Status] = true
	}
	for _, s := range []returns.Status{returns.StatusDraft, returns.StatusReturnOrderCreated, returns.StatusPendingDelivery, returns.StatusDelivered} {
		assert.True(t, statuses[string(s)], s)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "unknown field", input: "orders:\n  - id: a\n    color: red\n", wantErr: "color"},
		{name: "missing id", input: "requests:\n  - distributor: Acme\n", wantErr: "missing id"},
		{name: "empty document", input: "orders: []\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.input))
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	f, err := Decode(strings.NewReader(`
orders:
  - id: o1
    orderId: RO-1
    distributor: Acme
    createdOn: 2024-03-05T10:00:00Z
    noOfItems: 2
    status: Draft
requests:
  - id: q1
    distributor: Acme
    serialNumber: SN-1
`))
	require.NoError(t, err)
	require.NoError(t, Apply(ctx, store, f))

	order, err := store.Get(ctx, returns.OrdersCollection, "o1")
	require.NoError(t, err)
	assert.Equal(t, "RO-1", order.String(returns.FieldOrderID))
	assert.Equal(t, 2, order.Int(returns.FieldNoOfItems))
	createdOn, ok := order.Timestamp(returns.FieldCreatedOn)
	require.True(t, ok)
	assert.True(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC).Equal(createdOn))

	req, err := store.Get(ctx, returns.RequestsCollection, "q1")
	require.NoError(t, err)
	_, ok = req.Data[returns.FieldCylinder]
	assert.False(t, ok)
	_, ok = req.Timestamp(returns.FieldCreatedOn)
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/fixtures.yaml")
	assert.Error(t, err)
}
