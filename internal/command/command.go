// Package command реализует обратимые команды над заказом и invoker с
// историей выполнения и буфером повтора.
package command

import (
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// Command: обратимая единица работы. Каждая команда хранит состояние,
// достаточное, чтобы точно отменить собственный эффект.
//
// Набор вариантов закрыт: *AddProductCommand, *AddStockCommand, *CompositeCommand.
// Clone, Rebind и KindOf перебирают его явно.
type Command interface {
	Execute() error
	Undo() error
}

// Kind: метка варианта команды для логов и метрик.
type Kind string

const (
	KindAddProduct Kind = "add_product"
	KindAddStock   Kind = "add_stock"
	KindComposite  Kind = "composite"
	KindUnknown    Kind = "unknown"
)

// AddProductCommand добавляет строку в заказ.
type AddProductCommand struct {
	order    *domain.Order
	product  *domain.Product
	quantity int32

	executed bool
	index    int
	line     domain.OrderLine
}

// NewAddProductCommand создаёт команду добавления товара в заказ.
func NewAddProductCommand(order *domain.Order, product *domain.Product, quantity int32) *AddProductCommand {
	return &AddProductCommand{
		order:    order,
		product:  product,
		quantity: quantity,
	}
}

// Order возвращает заказ, к которому привязана команда.
func (c *AddProductCommand) Order() *domain.Order { return c.order }

// Product возвращает товар команды.
func (c *AddProductCommand) Product() *domain.Product { return c.product }

// Quantity возвращает количество.
func (c *AddProductCommand) Quantity() int32 { return c.quantity }

// Validate проверяет предусловия до любой мутации.
func (c *AddProductCommand) Validate() error {
	switch {
	case c.order == nil:
		return domain.ErrOrderRequired
	case c.product == nil:
		return domain.ErrProductRequired
	case c.quantity <= 0:
		return domain.ErrQuantityInvalid
	case c.executed:
		return domain.ErrCommandExecuted
	}
	return nil
}

// Execute добавляет строку и запоминает её индекс.
func (c *AddProductCommand) Execute() error {
	if err := c.Validate(); err != nil {
		return err
	}
	index, err := c.order.AddProduct(c.product, c.quantity)
	if err != nil {
		return err
	}
	c.index = index
	c.line, _ = c.order.LineAt(index)
	c.executed = true
	return nil
}

// Undo удаляет ровно ту строку, которую добавил Execute (по индексу, не по значению).
func (c *AddProductCommand) Undo() error {
	if !c.executed {
		return domain.ErrCommandNotExecuted
	}
	current, err := c.order.LineAt(c.index)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLineMismatch, err)
	}
	if current != c.line {
		return domain.ErrLineMismatch
	}
	if _, err := c.order.RemoveLineAt(c.index); err != nil {
		return err
	}
	c.executed = false
	return nil
}

// Rebind переназначает команду на другой заказ. Выполненную команду
// переназначать нельзя.
func (c *AddProductCommand) Rebind(order *domain.Order) error {
	if c.executed {
		return domain.ErrCommandExecuted
	}
	if order == nil {
		return domain.ErrOrderRequired
	}
	c.order = order
	return nil
}

// AddStockCommand изменяет остаток товара на знаковый delta.
type AddStockCommand struct {
	product *domain.Product
	delta   int32

	executed bool
}

// NewAddStockCommand создаёт команду изменения остатка. Отрицательный delta
// резервирует товар.
func NewAddStockCommand(product *domain.Product, delta int32) *AddStockCommand {
	return &AddStockCommand{product: product, delta: delta}
}

// Product возвращает товар команды.
func (c *AddStockCommand) Product() *domain.Product { return c.product }

// Delta возвращает изменение остатка.
func (c *AddStockCommand) Delta() int32 { return c.delta }

// Validate проверяет предусловия до любой мутации.
func (c *AddStockCommand) Validate() error {
	switch {
	case c.product == nil:
		return domain.ErrProductRequired
	case c.delta == 0:
		return domain.ErrStockDeltaInvalid
	case c.executed:
		return domain.ErrCommandExecuted
	}
	return nil
}

// Execute применяет delta к остатку.
func (c *AddStockCommand) Execute() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.product.ApplyStockDelta(c.delta); err != nil {
		return err
	}
	c.executed = true
	return nil
}

// Undo вычитает применённый delta.
func (c *AddStockCommand) Undo() error {
	if !c.executed {
		return domain.ErrCommandNotExecuted
	}
	c.product.RevertStockDelta(c.delta)
	c.executed = false
	return nil
}

// CompositeCommand выполняет дочерние команды как одну единицу истории.
type CompositeCommand struct {
	name     string
	children []Command

	executed int
}

// NewCompositeCommand создаёт составную команду.
func NewCompositeCommand(name string, children ...Command) *CompositeCommand {
	return &CompositeCommand{name: name, children: children}
}

// Name возвращает описание составной команды.
func (c *CompositeCommand) Name() string { return c.name }

// Children возвращает копию списка дочерних команд.
func (c *CompositeCommand) Children() []Command {
	result := make([]Command, len(c.children))
	copy(result, c.children)
	return result
}

// Execute выполняет детей по порядку. При ошибке уже выполненные дети
// откатываются в обратном порядке.
func (c *CompositeCommand) Execute() error {
	if c.executed > 0 {
		return domain.ErrCommandExecuted
	}
	if len(c.children) == 0 {
		return fmt.Errorf("%w: composite %q has no children", domain.ErrInvalidCommand, c.name)
	}
	for i, child := range c.children {
		if child == nil {
			err := fmt.Errorf("%w: composite %q child %d is nil", domain.ErrInvalidCommand, c.name, i)
			return errors.Join(err, c.rollback(i))
		}
		if err := child.Execute(); err != nil {
			return errors.Join(fmt.Errorf("composite %q child %d: %w", c.name, i, err), c.rollback(i))
		}
	}
	c.executed = len(c.children)
	return nil
}

// rollback отменяет первых n детей и возвращает все ошибки отмены.
func (c *CompositeCommand) rollback(n int) error {
	var errs []error
	for i := n - 1; i >= 0; i-- {
		if err := c.children[i].Undo(); err != nil {
			errs = append(errs, fmt.Errorf("composite %q rollback child %d: %w", c.name, i, err))
		}
	}
	return errors.Join(errs...)
}

// Undo отменяет детей в обратном порядке.
func (c *CompositeCommand) Undo() error {
	if c.executed == 0 {
		return domain.ErrCommandNotExecuted
	}
	for i := c.executed - 1; i >= 0; i-- {
		if err := c.children[i].Undo(); err != nil {
			errs := []error{fmt.Errorf("composite %q undo child %d: %w", c.name, i, err)}
			// Возвращаем уже отменённых детей, чтобы команда осталась целой.
			for j := i + 1; j < c.executed; j++ {
				if err := c.children[j].Execute(); err != nil {
					errs = append(errs, fmt.Errorf("composite %q re-execute child %d: %w", c.name, j, err))
				}
			}
			return errors.Join(errs...)
		}
	}
	c.executed = 0
	return nil
}

// KindOf возвращает метку варианта команды.
func KindOf(cmd Command) Kind {
	switch cmd.(type) {
	case *AddProductCommand:
		return KindAddProduct
	case *AddStockCommand:
		return KindAddStock
	case *CompositeCommand:
		return KindComposite
	default:
		return KindUnknown
	}
}

// Clone возвращает невыполненную копию команды. Заказ и товар разделяются
// по ссылке, состояние выполнения не разделяется.
func Clone(cmd Command) (Command, error) {
	switch c := cmd.(type) {
	case *AddProductCommand:
		return NewAddProductCommand(c.order, c.product, c.quantity), nil
	case *AddStockCommand:
		return NewAddStockCommand(c.product, c.delta), nil
	case *CompositeCommand:
		children := make([]Command, 0, len(c.children))
		for _, child := range c.children {
			cloned, err := Clone(child)
			if err != nil {
				return nil, err
			}
			children = append(children, cloned)
		}
		return NewCompositeCommand(c.name, children...), nil
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnsupportedCommand, cmd)
	}
}

// Rebind привязывает все команды, работающие с заказом, к order.
// Команды без заказа не меняются.
func Rebind(cmd Command, order *domain.Order) error {
	switch c := cmd.(type) {
	case *AddProductCommand:
		return c.Rebind(order)
	case *AddStockCommand:
		return nil
	case *CompositeCommand:
		if c.executed > 0 {
			return domain.ErrCommandExecuted
		}
		for _, child := range c.children {
			if err := Rebind(child, order); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnsupportedCommand, cmd)
	}
}
