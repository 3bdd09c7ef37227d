package domain

import "time"

// OutboxPublisher публикует события журнала наружу.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository хранит события журнала до публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события сессий в хронологическом порядке.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// DeskOperation задаёт константы операций для метрик/логов.
type DeskOperation string

const (
	DeskOperationOpen     DeskOperation = "open"
	DeskOperationAdd      DeskOperation = "add_product"
	DeskOperationUndo     DeskOperation = "undo"
	DeskOperationRedo     DeskOperation = "redo"
	DeskOperationMacro    DeskOperation = "save_macro"
	DeskOperationReplay   DeskOperation = "replay_macro"
	DeskOperationSnapshot DeskOperation = "snapshot"
	DeskOperationRestore  DeskOperation = "restore"
	DeskOperationProcess  DeskOperation = "process"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
