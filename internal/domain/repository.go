package domain

// ProductRepository описывает требования к хранилищу товаров.
//
// DecrementVariantStock и IncrementVariantStock — атомарные операции над
// остатком одного варианта: списание условно («уменьшить, если хватает»)
// и выполняется на стороне хранилища, а не через read-modify-write в памяти.
// Именно это закрывает гонку двух конкурентных заказов на последний остаток.
type ProductRepository interface {
	// Create сохраняет новый товар. Возвращает ошибку, если запись с таким ID уже существует.
	Create(product Product) error
	// Get возвращает товар по идентификатору или *ProductNotFoundError, если его нет.
	Get(id string) (Product, error)
	// List возвращает товары, отсортированные по номеру (limit <= 0 — без ограничения).
	List(limit int) ([]Product, error)
	// Save применяет обновления к товару с учётом optimistic locking.
	Save(product Product) error
	// DecrementVariantStock атомарно списывает qty у варианта (size, color),
	// только если остатка хватает. Возвращает *ProductNotFoundError,
	// *VariantNotFoundError или *InsufficientStockError с актуальным остатком.
	DecrementVariantStock(productID, size, color string, qty int32) error
	// IncrementVariantStock атомарно возвращает qty варианту (size, color).
	IncrementVariantStock(productID, size, color string, qty int32) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ и присваивает ему монотонный Number.
	// Возвращает сохранённый заказ или ошибку, если ID уже занят.
	Create(order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// List возвращает все заказы от новых к старым (limit <= 0 — без ограничения).
	List(limit int) ([]Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным ограничением на количество.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
	// Delete удаляет заказ или возвращает ErrOrderNotFound.
	Delete(id string) error
}
