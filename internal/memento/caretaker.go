// Package memento хранит снимки заказов. Caretaker только индексирует снимки
// и не интерпретирует их содержимое.
package memento

import (
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// Caretaker: упорядоченное append-only хранилище снимков заказа.
type Caretaker struct {
	mementos []*domain.OrderMemento
}

// NewCaretaker создаёт пустой caretaker.
func NewCaretaker() *Caretaker {
	return &Caretaker{}
}

// AddMemento добавляет снимок и возвращает его индекс.
func (c *Caretaker) AddMemento(m *domain.OrderMemento) (int, error) {
	if m == nil {
		return 0, domain.ErrNullMemento
	}
	c.mementos = append(c.mementos, m)
	return len(c.mementos) - 1, nil
}

// GetMemento возвращает снимок по индексу; 0 <= index < Len().
func (c *Caretaker) GetMemento(index int) (*domain.OrderMemento, error) {
	if index < 0 || index >= len(c.mementos) {
		return nil, fmt.Errorf("%w: index %d, stored %d", domain.ErrIndexOutOfRange, index, len(c.mementos))
	}
	return c.mementos[index], nil
}

// Len возвращает количество снимков.
func (c *Caretaker) Len() int { return len(c.mementos) }
