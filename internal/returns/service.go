//go:generate mockgen -source ./service.go -destination=./mocks/service.go -package=mock_returns
package returns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

var (
	ErrInvalidTransition = errors.New("status does not allow this action")
	ErrNoDocument        = errors.New("no document uploaded")
	ErrFilesDisabled     = errors.New("document storage is not configured")
	ErrAlreadyAttached   = errors.New("request is already attached to this order")
	ErrUnknownCollection = errors.New("unknown collection")
)

// FileStore keeps uploaded row documents.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type Service struct {
	store        storage.Store
	events       storage.EventSink
	history      storage.StatusHistory
	files        FileStore
	actionsTopic string
	logger       *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService wires the row commands. files may be nil, in which case upload
// and download report ErrFilesDisabled.
func NewService(store storage.Store, events storage.EventSink, history storage.StatusHistory, files FileStore, actionsTopic string, logger *zap.Logger) *Service {
	return &Service{
		store:        store,
		events:       events,
		history:      history,
		files:        files,
		actionsTopic: actionsTopic,
		logger:       logger.With(zap.String("component", "returns")),
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
}

func checkCollection(collection string) error {
	if collection != OrdersCollection && collection != RequestsCollection {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if err := s.store.Apply(ctx, storage.Delete(collection, id)); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("delete").Inc()
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}

	s.logger.Info("row deleted", zap.String("collection", collection), zap.String("id", id))
	metrics.RowActionsTotal.WithLabelValues("delete").Inc()
	return nil
}

// MarkAsSent moves an order from Return Order created to Pending Delivery.
func (s *Service) MarkAsSent(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, OrdersCollection, id)
	if err != nil {
		return fmt.Errorf("get order %s: %w", id, err)
	}

	current := Status(doc.String(FieldStatus))
	if current.ContextAction() != ActionMarkAsSent {
		return fmt.Errorf("%w: %q", ErrInvalidTransition, current)
	}

	err = s.store.Apply(ctx, storage.UpdateIf(OrdersCollection, id,
		map[string]any{FieldStatus: string(current)},
		map[string]any{FieldStatus: string(StatusPendingDelivery)},
	))
	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("%w: order %s changed status", ErrInvalidTransition, id)
	}
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("mark_sent").Inc()
		return fmt.Errorf("update order %s: %w", id, err)
	}

	entry := storage.HistoryEntry{
		OrderDocID: id,
		OldStatus:  string(current),
		NewStatus:  string(StatusPendingDelivery),
		ChangedAt:  s.now().UTC(),
	}
	if err := s.history.Record(ctx, entry); err != nil {
		s.logger.Error("failed to record status history", zap.String("id", id), zap.Error(err))
		metrics.OperationErrorsTotal.WithLabelValues("history").Inc()
	}

	s.logger.Info("order marked as sent", zap.String("id", id))
	metrics.RowActionsTotal.WithLabelValues("mark_sent").Inc()
	return nil
}

// Track queues a tracking request for an order pending delivery.
func (s *Service) Track(ctx context.Context, id string) error {
	doc, err := s.store.Get(ctx, OrdersCollection, id)
	if err != nil {
		return fmt.Errorf("get order %s: %w", id, err)
	}

	current := Status(doc.String(FieldStatus))
	if current.ContextAction() != ActionTrack {
		return fmt.Errorf("%w: %q", ErrInvalidTransition, current)
	}

	return s.enqueue(ctx, "track", ActionEvent{
		Type:       EventTrack,
		Collection: OrdersCollection,
		DocumentID: id,
		OrderID:    doc.String(FieldOrderID),
	})
}

// Send queues delivery of the row over a fax or email channel.
func (s *Service) Send(ctx context.Context, collection, id string, channel Channel) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	docs := doc.Strings(FieldDocuments)
	var latest string
	if len(docs) > 0 {
		latest = docs[len(docs)-1]
	}

	return s.enqueue(ctx, string(channel), ActionEvent{
		Type:       EventAction,
		Channel:    channel,
		Collection: collection,
		DocumentID: id,
		OrderID:    doc.String(FieldOrderID),
		Document:   latest,
	})
}

func (s *Service) enqueue(ctx context.Context, action string, event ActionEvent) error {
	event.EventID = s.newID()
	event.OccurredAt = s.now().UTC()

	if err := s.events.Enqueue(ctx, s.actionsTopic, event); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(action).Inc()
		return fmt.Errorf("enqueue %s event: %w", action, err)
	}

	s.logger.Info("row action queued",
		zap.String("action", action),
		zap.String("collection", event.Collection),
		zap.String("id", event.DocumentID))
	metrics.RowActionsTotal.WithLabelValues(action).Inc()
	return nil
}

// Upload stores body as a new document of the row and returns its key.
func (s *Service) Upload(ctx context.Context, collection, id, filename, contentType string, body io.Reader, size int64) (string, error) {
	if s.files == nil {
		return "", ErrFilesDisabled
	}
	if err := checkCollection(collection); err != nil {
		return "", err
	}

	if _, err := s.store.Get(ctx, collection, id); err != nil {
		return "", fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "document"
	}
	key := path.Join(collection, id, s.newID()+"-"+name)

	if err := s.files.Put(ctx, key, contentType, body, size); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("upload").Inc()
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	if err := s.store.Apply(ctx, storage.Append(collection, id, FieldDocuments, key)); err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("upload").Inc()
		return "", fmt.Errorf("record document on %s/%s: %w", collection, id, err)
	}

	s.logger.Info("document uploaded", zap.String("collection", collection), zap.String("id", id), zap.String("key", key))
	metrics.RowActionsTotal.WithLabelValues("upload").Inc()
	return key, nil
}

// DownloadURL returns a short-lived link to the latest uploaded document.
func (s *Service) DownloadURL(ctx context.Context, collection, id string) (string, error) {
	if s.files == nil {
		return "", ErrFilesDisabled
	}
	if err := checkCollection(collection); err != nil {
		return "", err
	}

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return "", fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	docs := doc.Strings(FieldDocuments)
	if len(docs) == 0 {
		return "", ErrNoDocument
	}

	url, err := s.files.PresignGet(ctx, docs[len(docs)-1])
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("download").Inc()
		return "", fmt.Errorf("presign %s: %w", docs[len(docs)-1], err)
	}

	metrics.RowActionsTotal.WithLabelValues("download").Inc()
	return url, nil
}

// AttachNew creates a draft order for the request's distributor and links
// the request to it. It returns the new order's document id.
func (s *Service) AttachNew(ctx context.Context, requestID string) (string, error) {
	req, err := s.store.Get(ctx, RequestsCollection, requestID)
	if err != nil {
		return "", fmt.Errorf("get request %s: %w", requestID, err)
	}

	orderDocID := s.newID()
	order := map[string]any{
		FieldOrderID:     newOrderNumber(orderDocID),
		FieldDistributor: req.String(FieldDistributor),
		FieldCreatedOn:   storage.Timestamp(s.now()),
		FieldNoOfItems:   1,
		FieldStatus:      string(StatusDraft),
	}

	ops, err := s.relink(ctx, requestID, req.String(FieldReturnOrderID), orderDocID)
	if err != nil {
		return "", err
	}

	err = s.store.Apply(ctx, append([]storage.Op{storage.Set(OrdersCollection, orderDocID, order)}, ops...)...)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("attach_new").Inc()
		return "", fmt.Errorf("attach request %s to new order: %w", requestID, err)
	}

	s.logger.Info("request attached to new order", zap.String("request", requestID), zap.String("order", orderDocID))
	metrics.RowActionsTotal.WithLabelValues("attach_new").Inc()
	return orderDocID, nil
}

// AttachExisting adds the request to an existing order as one more item.
func (s *Service) AttachExisting(ctx context.Context, requestID, orderDocID string) error {
	req, err := s.store.Get(ctx, RequestsCollection, requestID)
	if err != nil {
		return fmt.Errorf("get request %s: %w", requestID, err)
	}
	prev := req.String(FieldReturnOrderID)
	if prev == orderDocID {
		return ErrAlreadyAttached
	}

	ops, err := s.relink(ctx, requestID, prev, orderDocID)
	if err != nil {
		return err
	}

	err = s.store.Apply(ctx, append([]storage.Op{storage.Increment(OrdersCollection, orderDocID, FieldNoOfItems, 1)}, ops...)...)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("attach_existing").Inc()
		return fmt.Errorf("attach request %s to order %s: %w", requestID, orderDocID, err)
	}

	s.logger.Info("request attached to order",
		zap.String("request", requestID),
		zap.String("order", orderDocID),
		zap.String("previous", prev))
	metrics.RowActionsTotal.WithLabelValues("attach_existing").Inc()
	return nil
}

// relink points the request at orderDocID and takes one item off the order it
// was attached to before. A previous order that no longer exists is skipped.
// The request update only applies while it still points at prev.
func (s *Service) relink(ctx context.Context, requestID, prev, orderDocID string) ([]storage.Op, error) {
	link := map[string]any{FieldReturnOrderID: orderDocID}
	if prev == "" {
		return []storage.Op{storage.Update(RequestsCollection, requestID, link)}, nil
	}

	ops := []storage.Op{
		storage.UpdateIf(RequestsCollection, requestID, map[string]any{FieldReturnOrderID: prev}, link),
	}

	_, err := s.store.Get(ctx, OrdersCollection, prev)
	switch {
	case err == nil:
		ops = append(ops, storage.Increment(OrdersCollection, prev, FieldNoOfItems, -1))
	case errors.Is(err, storage.ErrNotFound):
		s.logger.Warn("previous order is gone", zap.String("request", requestID), zap.String("order", prev))
	default:
		return nil, fmt.Errorf("get order %s: %w", prev, err)
	}
	return ops, nil
}

func (s *Service) History(ctx context.Context, orderDocID string) ([]storage.HistoryEntry, error) {
	if _, err := s.store.Get(ctx, OrdersCollection, orderDocID); err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderDocID, err)
	}
	return s.history.List(ctx, orderDocID)
}

// newOrderNumber derives a human readable order id from a document id.
func newOrderNumber(docID string) string {
	compact := strings.ToUpper(strings.ReplaceAll(docID, "-", ""))
	if len(compact) > 8 {
		compact = compact[:8]
	}
	return "RO-" + compact
}
