package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/metrics"
)

// DirectSink publishes events immediately, without the outbox table. The
// memory backend uses it.
type DirectSink struct {
	producer Producer
}

func NewDirectSink(producer Producer) *DirectSink {
	return &DirectSink{producer: producer}
}

func (s *DirectSink) Enqueue(ctx context.Context, topic string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	if err := s.producer.SendMessage(ctx, topic, []byte(uuid.NewString()), value); err != nil {
		return err
	}
	metrics.OutboxPublishedTotal.Inc()
	return nil
}
