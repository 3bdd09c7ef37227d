package domain

// ProductRepository описывает каталог товаров. Возвращает разделяемые указатели:
// остаток меняется командами напрямую.
type ProductRepository interface {
	// Add регистрирует товар. Повторный ID перезаписывает запись.
	Add(product *Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(id int64) (*Product, error)
	// List возвращает товары по возрастанию ID.
	List() ([]*Product, error)
}
