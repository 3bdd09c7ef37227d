package desk

import (
	"fmt"
	"math"
	"slices"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type stockChange struct {
	product *domain.Product
	delta   int32
}

// rebalanceStock переводит резерв остатков со строк current на строки target:
// отброшенные строки возвращают товар на склад, вернувшиеся резервируют заново.
// При ошибке уже применённые изменения откатываются.
func (s *Service) rebalanceStock(current, target []domain.OrderLine) error {
	deltas := make(map[int64]int64)
	for _, line := range current {
		deltas[line.ProductID] += int64(line.Quantity)
	}
	for _, line := range target {
		deltas[line.ProductID] -= int64(line.Quantity)
	}

	ids := make([]int64, 0, len(deltas))
	for id, delta := range deltas {
		if delta != 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	applied := make([]stockChange, 0, len(ids))
	for _, id := range ids {
		change, err := s.applyStock(id, deltas[id])
		if err != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				applied[i].product.RevertStockDelta(applied[i].delta)
			}
			return err
		}
		applied = append(applied, change)
	}
	return nil
}

func (s *Service) applyStock(productID int64, delta int64) (stockChange, error) {
	if delta > math.MaxInt32 || delta < math.MinInt32 {
		return stockChange{}, fmt.Errorf("%w: product %d", domain.ErrStockDeltaInvalid, productID)
	}
	product, err := s.products.Get(productID)
	if err != nil {
		return stockChange{}, err
	}
	if err := product.ApplyStockDelta(int32(delta)); err != nil {
		return stockChange{}, err
	}
	return stockChange{product: product, delta: int32(delta)}, nil
}
