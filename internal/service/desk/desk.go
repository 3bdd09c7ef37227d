// Package desk управляет сессиями редактирования заказов: каждая сессия
// объединяет заказ, invoker команд и caretaker снимков.
package desk

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/command"
	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
	"github.com/vladislavdragonenkov/orderdesk/internal/memento"
)

// Desk: открытая сессия. Все операции над ней сериализуются mu.
type Desk struct {
	mu        sync.Mutex
	order     *domain.Order
	invoker   *command.Invoker
	caretaker *memento.Caretaker
	openedAt  time.Time
	closed    bool
}

func newDesk(order *domain.Order, invoker *command.Invoker, openedAt time.Time) *Desk {
	return &Desk{
		order:     order,
		invoker:   invoker,
		caretaker: memento.NewCaretaker(),
		openedAt:  openedAt,
	}
}

// View: снимок состояния сессии для транспорта.
type View struct {
	ID              string             `json:"id"`
	CreatedAt       time.Time          `json:"created_at"`
	OpenedAt        time.Time          `json:"opened_at"`
	Lines           []domain.OrderLine `json:"lines"`
	TotalQuantity   int64              `json:"total_quantity"`
	TotalPriceMinor int64              `json:"total_price_minor"`
	UndoCount       int                `json:"undo_count"`
	RedoCount       int                `json:"redo_count"`
	SnapshotCount   int                `json:"snapshot_count"`
}

// view строит View; вызывается под d.mu.
func (d *Desk) view() View {
	return View{
		ID:              d.order.ID(),
		CreatedAt:       d.order.CreatedAt(),
		OpenedAt:        d.openedAt,
		Lines:           d.order.Lines(),
		TotalQuantity:   d.order.TotalQuantity(),
		TotalPriceMinor: d.order.TotalPriceMinor(),
		UndoCount:       d.invoker.UndoCount(),
		RedoCount:       d.invoker.RedoCount(),
		SnapshotCount:   d.caretaker.Len(),
	}
}

// Summary: итог обработки заказа при закрытии сессии.
type Summary struct {
	View
	ProcessedAt time.Time `json:"processed_at"`
}

// ProductView: позиция каталога с текущим остатком.
type ProductView struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	Stock          int32  `json:"stock"`
}

// CommandView описывает команду макроса.
type CommandView struct {
	Kind      command.Kind  `json:"kind"`
	Name      string        `json:"name,omitempty"`
	ProductID int64         `json:"product_id,omitempty"`
	Quantity  int32         `json:"quantity,omitempty"`
	Delta     int32         `json:"delta,omitempty"`
	Children  []CommandView `json:"children,omitempty"`
}

// MacroView описывает сохранённый макрос.
type MacroView struct {
	ID        int           `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Commands  []CommandView `json:"commands"`
}

func describeCommand(cmd command.Command) CommandView {
	view := CommandView{Kind: command.KindOf(cmd)}
	switch c := cmd.(type) {
	case *command.AddProductCommand:
		if p := c.Product(); p != nil {
			view.ProductID = p.ID
		}
		view.Quantity = c.Quantity()
	case *command.AddStockCommand:
		if p := c.Product(); p != nil {
			view.ProductID = p.ID
		}
		view.Delta = c.Delta()
	case *command.CompositeCommand:
		view.Name = c.Name()
		for _, child := range c.Children() {
			view.Children = append(view.Children, describeCommand(child))
		}
	}
	return view
}
