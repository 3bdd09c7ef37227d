package health

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// SimpleChecker: проверка на основе функции
type SimpleChecker struct {
	name    string
	checkFn func() error
}

// NewSimpleChecker создаёт проверку: ошибка checkFn означает unhealthy.
func NewSimpleChecker(name string, checkFn func() error) *SimpleChecker {
	return &SimpleChecker{name: name, checkFn: checkFn}
}

// Check выполняет проверку
func (c *SimpleChecker) Check() Check {
	start := time.Now()
	err := c.checkFn()

	check := Check{Name: c.name, Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}

// OutboxBacklogChecker следит за размером backlog журнала событий.
// Backlog больше maxPending даёт degraded, ошибка чтения статистики даёт unhealthy.
type OutboxBacklogChecker struct {
	repo       domain.OutboxRepository
	maxPending int
}

// NewOutboxBacklogChecker создаёт проверку backlog outbox.
func NewOutboxBacklogChecker(repo domain.OutboxRepository, maxPending int) *OutboxBacklogChecker {
	return &OutboxBacklogChecker{repo: repo, maxPending: maxPending}
}

// Check выполняет проверку
func (c *OutboxBacklogChecker) Check() Check {
	start := time.Now()
	check := Check{Name: "outbox", Status: StatusHealthy}

	stats, err := c.repo.Stats()
	switch {
	case err != nil:
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	case c.maxPending > 0 && stats.PendingCount > c.maxPending:
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("%d pending events exceed limit %d", stats.PendingCount, c.maxPending)
	default:
		check.Message = fmt.Sprintf("%d pending events", stats.PendingCount)
	}

	check.DurationMs = time.Since(start).Milliseconds()
	return check
}

// GaugeChecker публикует значение счётчика (например, открытых сессий)
// и всегда healthy.
type GaugeChecker struct {
	name  string
	unit  string
	value func() int
}

// NewGaugeChecker создаёт информационную проверку.
func NewGaugeChecker(name, unit string, value func() int) *GaugeChecker {
	return &GaugeChecker{name: name, unit: unit, value: value}
}

// Check выполняет проверку
func (c *GaugeChecker) Check() Check {
	return Check{
		Name:    c.name,
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%d %s", c.value(), c.unit),
	}
}
