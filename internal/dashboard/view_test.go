package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/listview"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type listCall struct {
	filter string
	reply  chan listReply
}

type listReply struct {
	rows []returns.ReturnOrder
	err  error
}

// scriptedSource hands every call to the test, which answers in any order.
type scriptedSource struct {
	lists    chan listCall
	mx       sync.Mutex
	suggests []string
	values   []string
	err      error
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{lists: make(chan listCall, 8)}
}

func (s *scriptedSource) List(ctx context.Context, filter string) ([]returns.ReturnOrder, error) {
	call := listCall{filter: filter, reply: make(chan listReply, 1)}
	s.lists <- call
	select {
	case r := <-call.reply:
		return r.rows, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *scriptedSource) Suggest(_ context.Context, prefix string) ([]string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.suggests = append(s.suggests, prefix)
	return s.values, s.err
}

func (s *scriptedSource) prefixes() []string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]string(nil), s.suggests...)
}

func (s *scriptedSource) next(t *testing.T) listCall {
	t.Helper()
	select {
	case call := <-s.lists:
		return call
	case <-time.After(time.Second):
		t.Fatal("expected a list call")
		return listCall{}
	}
}

func order(id, orderID string, at time.Time) returns.ReturnOrder {
	return returns.ReturnOrder{ID: id, OrderID: orderID, CreatedOn: returns.CreatedOn{At: at}}
}

func newController(t *testing.T, src Source[returns.ReturnOrder]) (*ViewController[returns.ReturnOrder], context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := NewViewController(ctx, "order", returns.OrderSchema(), returns.DefaultSort, src, 25*time.Millisecond, zap.NewNop())
	return c, func() {
		c.Close()
		cancel()
	}
}

func await(t *testing.T, c View) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Await(ctx))
}

func TestViewController_StaleFetchIsDiscarded(t *testing.T) {
	src := newScriptedSource()
	c, stop := newController(t, src)
	defer stop()

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	c.Refresh()
	first := src.next(t)
	c.ToggleFilter(string(returns.StatusDraft))
	second := src.next(t)
	assert.Equal(t, string(returns.StatusDraft), second.filter)

	second.reply <- listReply{rows: []returns.ReturnOrder{order("d1", "RO-1", base)}}
	first.reply <- listReply{rows: []returns.ReturnOrder{order("a1", "RO-9", base), order("a2", "RO-8", base)}}
	await(t, c)

	snap := c.Snapshot()
	assert.Equal(t, listview.StatusReady, snap.Status)
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "d1", snap.Rows[0].ID)
}

func TestViewController_FetchFailureKeepsRows(t *testing.T) {
	src := newScriptedSource()
	c, stop := newController(t, src)
	defer stop()

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	c.Refresh()
	src.next(t).reply <- listReply{rows: []returns.ReturnOrder{order("a1", "RO-1", base)}}
	await(t, c)

	c.Refresh()
	src.next(t).reply <- listReply{err: errors.New("unavailable")}
	await(t, c)

	snap := c.Snapshot()
	assert.Equal(t, listview.StatusFailed, snap.Status)
	assert.Len(t, snap.Rows, 1)
	assert.NotEmpty(t, snap.Notice)

	c.DismissNotice()
	assert.Empty(t, c.Snapshot().Notice)
}

func TestViewController_DebouncedSuggestions(t *testing.T) {
	src := newScriptedSource()
	src.values = []string{"RO-100", "RO-100", "RO-101"}
	c, stop := newController(t, src)
	defer stop()

	c.Type("R")
	c.Type("RO")
	c.Type("RO-1")
	await(t, c)

	assert.Equal(t, []string{"RO-1"}, src.prefixes())

	snap := c.Snapshot()
	assert.Equal(t, "RO-1", snap.Debounced)
	assert.Equal(t, []string{"RO-100", "RO-101"}, snap.Suggestions)
	assert.True(t, snap.SuggestionsVisible)

	c.PickSuggestion("RO-101")
	snap = c.Snapshot()
	assert.Equal(t, "RO-101", snap.Search)
	assert.Equal(t, "RO-101", snap.Debounced)
	assert.False(t, snap.SuggestionsVisible)
}

func TestViewController_ShortSearchClearsSuggestions(t *testing.T) {
	src := newScriptedSource()
	src.values = []string{"RO-100"}
	c, stop := newController(t, src)
	defer stop()

	c.Type("RO")
	await(t, c)
	require.NotEmpty(t, c.Snapshot().Suggestions)

	c.Type("R")
	await(t, c)
	assert.Empty(t, c.Snapshot().Suggestions)
	assert.Equal(t, []string{"RO"}, src.prefixes())
}

func TestViewController_SuggestionFailureSetsNotice(t *testing.T) {
	src := newScriptedSource()
	src.err = errors.New("unavailable")
	c, stop := newController(t, src)
	defer stop()

	c.Type("RO")
	await(t, c)

	assert.NotEmpty(t, c.Snapshot().Notice)
}

func TestViewController_Interactions(t *testing.T) {
	src := newScriptedSource()
	c, stop := newController(t, src)
	defer stop()

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	c.Refresh()
	src.next(t).reply <- listReply{rows: []returns.ReturnOrder{
		order("a", "RO-2", base),
		order("b", "RO-1", base.Add(time.Hour)),
	}}
	await(t, c)

	assert.Equal(t, []string{"b", "a"}, viewIDs(c.Snapshot().View))

	assert.True(t, c.ToggleSort(returns.FieldOrderID))
	assert.Equal(t, []string{"b", "a"}, viewIDs(c.Snapshot().View))
	assert.False(t, c.ToggleSort(returns.FieldStatus))

	c.SetAll(true)
	assert.True(t, c.Snapshot().AllSelected)
	c.ToggleRow("a")
	assert.False(t, c.Snapshot().AllSelected)

	c.ToggleMenu("a")
	assert.Equal(t, "a", c.Snapshot().OpenMenu)
	c.Remove("a")
	snap := c.Snapshot()
	assert.Empty(t, snap.OpenMenu)
	assert.Equal(t, []string{"b"}, viewIDs(snap.View))
}

func TestViewController_CloseCancelsPendingDebounce(t *testing.T) {
	src := newScriptedSource()
	c, stop := newController(t, src)

	c.Type("RO-1")
	stop()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, src.prefixes())
}

func viewIDs(rows []returns.ReturnOrder) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
