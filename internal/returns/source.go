package returns

import (
	"context"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/listview"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

// suggestPageSize is the number of documents read per prefix range page.
const suggestPageSize = 50

type OrderSource struct {
	store  storage.Store
	format Formatter
}

func NewOrderSource(store storage.Store, format Formatter) *OrderSource {
	return &OrderSource{store: store, format: format}
}

// List returns orders newest first, restricted to status when it is set.
func (s *OrderSource) List(ctx context.Context, status string) ([]ReturnOrder, error) {
	q := storage.Collection(OrdersCollection).OrderBy(FieldCreatedOn, storage.Desc)
	if status != "" {
		q = q.Where(FieldStatus, status)
	}

	docs, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list return orders: %w", err)
	}

	orders := make([]ReturnOrder, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, s.format.Order(doc))
	}
	return orders, nil
}

// Suggest returns distinct order ids starting with prefix.
func (s *OrderSource) Suggest(ctx context.Context, prefix string) ([]string, error) {
	return suggest(ctx, s.store, OrdersCollection, FieldOrderID, prefix)
}

type RequestSource struct {
	store  storage.Store
	format Formatter
}

func NewRequestSource(store storage.Store, format Formatter) *RequestSource {
	return &RequestSource{store: store, format: format}
}

// List returns requests newest first. Requests have no quick filter, so the
// argument is ignored.
func (s *RequestSource) List(ctx context.Context, _ string) ([]ReturnRequest, error) {
	q := storage.Collection(RequestsCollection).OrderBy(FieldCreatedOn, storage.Desc)

	docs, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list return requests: %w", err)
	}

	requests := make([]ReturnRequest, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, s.format.Request(doc))
	}
	return requests, nil
}

func (s *RequestSource) Suggest(ctx context.Context, prefix string) ([]string, error) {
	return suggest(ctx, s.store, RequestsCollection, FieldSerialNumber, prefix)
}

// suggest walks the prefix range page by page. Each page starts just past the
// last value of the previous one, so runs of duplicates are skipped and the
// scan ends once MaxSuggestions distinct values are found or the range ends.
func suggest(ctx context.Context, store storage.Store, collection, field, prefix string) ([]string, error) {
	var values []string
	start := prefix

	for {
		q := storage.Collection(collection).
			OrderBy(field, storage.Asc).
			Prefix(prefix).
			StartAt(start).
			Limit(suggestPageSize)

		docs, err := store.Find(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("suggest %s: %w", field, err)
		}

		for _, doc := range docs {
			values = append(values, doc.String(field))
		}
		values = listview.Distinct(values, listview.MaxSuggestions)

		if len(docs) < suggestPageSize || len(values) == listview.MaxSuggestions {
			return values, nil
		}

		// Postgres text cannot hold NUL, so \x01 is the smallest suffix.
		next := docs[len(docs)-1].String(field) + "\x01"
		if next <= start {
			return values, nil
		}
		start = next
	}
}
