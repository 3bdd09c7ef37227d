package domain

import (
	"slices"
	"time"
)

// OrderMemento: неизменяемый снимок строк заказа. Ссылки на сам заказ не хранит.
type OrderMemento struct {
	lines      []OrderLine
	capturedAt time.Time
}

// Lines возвращает копию строк снимка.
func (m *OrderMemento) Lines() []OrderLine {
	return slices.Clone(m.lines)
}

// CapturedAt возвращает момент создания снимка.
func (m *OrderMemento) CapturedAt() time.Time { return m.capturedAt }

// SaveStateToMemento снимает копию текущих строк заказа.
func (o *Order) SaveStateToMemento() *OrderMemento {
	return &OrderMemento{
		lines:      slices.Clone(o.lines),
		capturedAt: time.Now().UTC(),
	}
}

// RestoreStateFromMemento полностью заменяет строки заказа копией строк снимка.
// Строки, добавленные после снимка, отбрасываются.
func (o *Order) RestoreStateFromMemento(m *OrderMemento) error {
	if m == nil {
		return ErrNullMemento
	}
	o.lines = slices.Clone(m.lines)
	return nil
}
