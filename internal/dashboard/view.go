package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/debounce"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/listview"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/metrics"
)

const awaitPollInterval = 10 * time.Millisecond

// Source loads the rows of one list view.
type Source[R any] interface {
	List(ctx context.Context, filter string) ([]R, error)
	Suggest(ctx context.Context, prefix string) ([]string, error)
}

// View is the tab-independent surface of a list controller.
type View interface {
	Name() string
	Refresh()
	Type(text string)
	PickSuggestion(value string)
	ToggleSort(field string) bool
	ToggleRow(id string) bool
	SetAll(checked bool)
	ToggleMenu(id string) bool
	CloseMenu()
	ToggleFilter(value string)
	DismissNotice()
	Remove(id string)
	Await(ctx context.Context) error
	Suggestions() ([]string, bool)
	Project() any
	Close()
}

// ViewController owns the state of one list and runs its store queries in
// the background. Responses older than the latest request are dropped.
type ViewController[R any] struct {
	name   string
	source Source[R]
	ctx    context.Context
	logger *zap.Logger

	mx       sync.Mutex
	state    *listview.State[R]
	inflight int

	debouncer *debounce.Debouncer[string]
}

func NewViewController[R any](ctx context.Context, name string, schema listview.Schema[R], initial listview.Sort, source Source[R], interval time.Duration, logger *zap.Logger) *ViewController[R] {
	c := &ViewController[R]{
		name:   name,
		source: source,
		ctx:    ctx,
		logger: logger.With(zap.String("view", name)),
		state:  listview.NewState(schema, initial),
	}
	c.debouncer = debounce.New(interval, c.settle)
	return c
}

func (c *ViewController[R]) Name() string {
	return c.name
}

// Refresh issues a fetch with the current quick filter.
func (c *ViewController[R]) Refresh() {
	c.mx.Lock()
	seq := c.state.BeginFetch()
	filter := c.state.Filter
	c.inflight++
	c.mx.Unlock()

	metrics.ListFetchesTotal.WithLabelValues(c.name).Inc()
	go c.fetch(seq, filter)
}

func (c *ViewController[R]) fetch(seq uint64, filter string) {
	rows, err := c.source.List(c.ctx, filter)

	c.mx.Lock()
	defer c.mx.Unlock()
	c.inflight--

	var applied bool
	if err != nil {
		c.logger.Error("list fetch failed", zap.Uint64("seq", seq), zap.Error(err))
		metrics.OperationErrorsTotal.WithLabelValues("list_" + c.name).Inc()
		applied = c.state.FetchFailed(seq, "Could not load "+c.name+". Showing the last loaded rows.")
	} else {
		applied = c.state.FetchSucceeded(seq, rows)
	}
	if !applied {
		metrics.StaleResponsesTotal.WithLabelValues(c.name, "list").Inc()
	}
}

// Type records raw search input and restarts the debounce timer.
func (c *ViewController[R]) Type(text string) {
	c.mx.Lock()
	c.state.SetSearch(text)
	c.mx.Unlock()

	c.debouncer.Set(text)
}

func (c *ViewController[R]) settle(text string) {
	c.mx.Lock()
	if !c.state.Settle(text) {
		c.mx.Unlock()
		return
	}
	seq := c.state.BeginSuggest()
	c.inflight++
	c.mx.Unlock()

	metrics.SuggestionQueriesTotal.WithLabelValues(c.name).Inc()
	go c.suggest(seq, text)
}

func (c *ViewController[R]) suggest(seq uint64, prefix string) {
	values, err := c.source.Suggest(c.ctx, prefix)

	c.mx.Lock()
	defer c.mx.Unlock()
	c.inflight--

	var applied bool
	if err != nil {
		c.logger.Error("suggestion query failed", zap.Uint64("seq", seq), zap.Error(err))
		metrics.OperationErrorsTotal.WithLabelValues("suggest_" + c.name).Inc()
		applied = c.state.SuggestFailed(seq, "Suggestions are unavailable right now.")
	} else {
		applied = c.state.SuggestSucceeded(seq, values)
	}
	if !applied {
		metrics.StaleResponsesTotal.WithLabelValues(c.name, "suggest").Inc()
	}
}

// PickSuggestion applies value immediately, skipping the debounce.
func (c *ViewController[R]) PickSuggestion(value string) {
	c.debouncer.Cancel()

	c.mx.Lock()
	defer c.mx.Unlock()
	c.state.PickSuggestion(value)
}

func (c *ViewController[R]) ToggleSort(field string) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.state.ToggleSort(field)
}

func (c *ViewController[R]) ToggleRow(id string) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.state.ToggleRow(id)
}

func (c *ViewController[R]) SetAll(checked bool) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.state.SetAll(checked)
}

func (c *ViewController[R]) ToggleMenu(id string) bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.state.ToggleMenu(id)
}

func (c *ViewController[R]) CloseMenu() {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.state.CloseMenu()
}

// ToggleFilter switches the quick filter and refetches.
func (c *ViewController[R]) ToggleFilter(value string) {
	c.mx.Lock()
	c.state.ToggleFilter(value)
	c.mx.Unlock()

	c.Refresh()
}

func (c *ViewController[R]) DismissNotice() {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.state.DismissNotice()
}

func (c *ViewController[R]) Remove(id string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.state.Remove(id)
}

// Await blocks until no debounce is pending and no query is in flight, or
// ctx is done.
func (c *ViewController[R]) Await(ctx context.Context) error {
	ticker := time.NewTicker(awaitPollInterval)
	defer ticker.Stop()

	for {
		c.mx.Lock()
		idle := c.inflight == 0
		c.mx.Unlock()

		if idle && !c.debouncer.Pending() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *ViewController[R]) Snapshot() listview.Snapshot[R] {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.state.Snapshot()
}

// Suggestions returns the current suggestion list and whether it is shown.
func (c *ViewController[R]) Suggestions() ([]string, bool) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]string(nil), c.state.Suggestions...), c.state.SuggestionsVisible && len(c.state.Suggestions) > 0
}

func (c *ViewController[R]) Project() any {
	return c.Snapshot()
}

func (c *ViewController[R]) Schema() listview.Schema[R] {
	return c.state.Schema()
}

// Close stops the debouncer. In-flight queries end with the session context.
func (c *ViewController[R]) Close() {
	c.debouncer.Stop()
}
