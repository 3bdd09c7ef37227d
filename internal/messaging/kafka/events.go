package kafka

import "time"

// Topics для Kafka
const (
	TopicDeskEvents      = "orderdesk.desk.events"
	TopicDeadLetterQueue = "orderdesk.dlq"
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)

// DeskEvent: полезная нагрузка события сессии редактирования заказа.
// EventType принимает значения domain.Timeline*.
type DeskEvent struct {
	EventType  string         `json:"event_type"`
	DeskID     string         `json:"desk_id"`
	LineCount  int            `json:"line_count"`
	TotalPrice int64          `json:"total_price_minor"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewDeskEvent создаёт событие сессии с текущим временем.
func NewDeskEvent(eventType string, deskID string, lineCount int, totalPrice int64, metadata map[string]any) *DeskEvent {
	return &DeskEvent{
		EventType:  eventType,
		DeskID:     deskID,
		LineCount:  lineCount,
		TotalPrice: totalPrice,
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	}
}
