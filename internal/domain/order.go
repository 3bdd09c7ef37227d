package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// OrderLine: строка заказа. Сравнивается по значению: две одинаковые строки
// в одном заказе допустимы.
type OrderLine struct {
	// ProductID: идентификатор товара из каталога.
	ProductID int64
	// UnitPriceMinor: цена за единицу на момент добавления, в минимальных единицах.
	UnitPriceMinor int64
	// Quantity: количество единиц товара.
	Quantity int32
}

// Order агрегирует строки заказа. Строки меняются только командами
// (AddProduct/RemoveLineAt) и восстановлением из снимка.
type Order struct {
	id        string
	createdAt time.Time
	lines     []OrderLine
}

// NewOrder создаёт пустой заказ с новым идентификатором.
func NewOrder() *Order {
	return &Order{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
	}
}

// ID возвращает неизменяемый идентификатор заказа.
func (o *Order) ID() string { return o.id }

// CreatedAt возвращает момент создания заказа.
func (o *Order) CreatedAt() time.Time { return o.createdAt }

// Lines возвращает копию строк заказа.
func (o *Order) Lines() []OrderLine {
	return slices.Clone(o.lines)
}

// LineCount возвращает количество строк.
func (o *Order) LineCount() int { return len(o.lines) }

// AddProduct добавляет строку по товару и возвращает её индекс.
func (o *Order) AddProduct(product *Product, quantity int32) (int, error) {
	if product == nil {
		return 0, ErrProductRequired
	}
	if quantity <= 0 {
		return 0, ErrQuantityInvalid
	}

	o.lines = append(o.lines, OrderLine{
		ProductID:      product.ID,
		UnitPriceMinor: product.UnitPriceMinor,
		Quantity:       quantity,
	})
	return len(o.lines) - 1, nil
}

// LineAt возвращает строку по индексу.
func (o *Order) LineAt(index int) (OrderLine, error) {
	if index < 0 || index >= len(o.lines) {
		return OrderLine{}, fmt.Errorf("%w: line %d of %d", ErrIndexOutOfRange, index, len(o.lines))
	}
	return o.lines[index], nil
}

// RemoveLineAt удаляет строку по индексу и возвращает её.
func (o *Order) RemoveLineAt(index int) (OrderLine, error) {
	line, err := o.LineAt(index)
	if err != nil {
		return OrderLine{}, err
	}
	o.lines = slices.Delete(o.lines, index, index+1)
	return line, nil
}

// TotalQuantity возвращает суммарное количество единиц по всем строкам.
func (o *Order) TotalQuantity() int64 {
	var total int64
	for _, line := range o.lines {
		total += int64(line.Quantity)
	}
	return total
}

// TotalPriceMinor возвращает сумму заказа: qty * price по всем строкам.
func (o *Order) TotalPriceMinor() int64 {
	var total int64
	for _, line := range o.lines {
		total += int64(line.Quantity) * line.UnitPriceMinor
	}
	return total
}
