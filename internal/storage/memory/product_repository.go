package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// ProductRepository: in-memory каталог товаров.
// Возвращает разделяемые указатели: остаток меняют команды.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product
}

// NewProductRepository создаёт пустой каталог.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[int64]*domain.Product)}
}

// Add регистрирует товар, повторный ID перезаписывает запись.
func (r *ProductRepository) Add(product *domain.Product) error {
	if product == nil {
		return domain.ErrProductRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	return nil
}

// Get возвращает товар по ID.
func (r *ProductRepository) Get(id int64) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrProductNotFound, id)
	}
	return product, nil
}

// List возвращает товары по возрастанию ID.
func (r *ProductRepository) List() ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Product, 0, len(r.products))
	for _, product := range r.products {
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

var _ domain.ProductRepository = (*ProductRepository)(nil)
