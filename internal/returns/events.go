package returns

import (
	"time"
)

const (
	EventAction = "return.action"
	EventTrack  = "return.track"
)

type Channel string

const (
	ChannelFax   Channel = "fax"
	ChannelEmail Channel = "email"
)

// ActionEvent is published to the actions topic through the outbox.
type ActionEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	Channel    Channel   `json:"channel,omitempty"`
	Collection string    `json:"collection"`
	DocumentID string    `json:"document_id"`
	OrderID    string    `json:"order_id,omitempty"`
	Document   string    `json:"document,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
