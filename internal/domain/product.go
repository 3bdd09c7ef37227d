package domain

import (
	"fmt"
	"math"
	"sync"
)

// Product: товар каталога. Один экземпляр разделяется по указателю между
// всеми командами и заказами, поэтому остаток защищён мьютексом.
type Product struct {
	ID             int64
	Name           string
	UnitPriceMinor int64

	mu    sync.Mutex
	stock int32
}

// NewProduct создаёт товар с начальным остатком.
func NewProduct(id int64, name string, unitPriceMinor int64, stock int32) *Product {
	return &Product{
		ID:             id,
		Name:           name,
		UnitPriceMinor: unitPriceMinor,
		stock:          stock,
	}
}

// Stock возвращает текущий остаток.
func (p *Product) Stock() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stock
}

// ApplyStockDelta изменяет остаток на delta. Если остаток ушёл бы в минус,
// возвращает ErrInsufficientStock и ничего не меняет.
func (p *Product) ApplyStockDelta(delta int32) error {
	if delta == 0 {
		return ErrStockDeltaInvalid
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	next := int64(p.stock) + int64(delta)
	if next < 0 {
		return fmt.Errorf("%w: product %d has %d, requested %d", ErrInsufficientStock, p.ID, p.stock, -delta)
	}
	if next > math.MaxInt32 {
		return fmt.Errorf("%w: stock overflow for product %d", ErrStockDeltaInvalid, p.ID)
	}
	p.stock = int32(next)
	return nil
}

// RevertStockDelta откатывает ранее применённый delta без проверок остатка.
func (p *Product) RevertStockDelta(delta int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stock -= delta
}
