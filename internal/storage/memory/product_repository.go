package memory

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

// productRepositoryInMemory — простая in-memory реализация ProductRepository.
// Условное списание выполняется под мьютексом репозитория, поэтому два
// конкурентных заказа не могут одновременно пройти проверку остатка.
type productRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Product
	counter atomic.Int64
}

// NewProductRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create сохраняет новый товар, если ID ещё не занят, и присваивает публичный номер.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[product.ID]; exists {
		return domain.ErrVersionConflict
	}
	if product.Number == 0 {
		product.Number = r.counter.Add(1)
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[product.ID] = cloneProduct(product)
	return nil
}

// Get возвращает товар или *ProductNotFoundError, если его нет.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, &domain.ProductNotFoundError{ProductID: id}
	}
	return cloneProduct(product), nil
}

// List возвращает товары по возрастанию номера.
func (r *productRepositoryInMemory) List(limit int) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		result = append(result, cloneProduct(product))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Number < result[j].Number
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает товар, проверяя версию (optimistic locking).
func (r *productRepositoryInMemory) Save(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.ID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: product.ID}
	}
	if current.Version != product.Version {
		return domain.ErrVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	product.Version++
	r.items[product.ID] = cloneProduct(product)
	return nil
}

// DecrementVariantStock атомарно списывает qty, только если остатка хватает.
func (r *productRepositoryInMemory) DecrementVariantStock(productID, size, color string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[productID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: productID}
	}

	idx := product.FindVariant(size, color)
	if idx < 0 {
		return &domain.VariantNotFoundError{ProductID: productID, Size: size, Color: color}
	}
	if product.Variants[idx].Stock < qty {
		return &domain.InsufficientStockError{
			ProductID: productID,
			Size:      size,
			Color:     color,
			Available: product.Variants[idx].Stock,
			Requested: qty,
		}
	}

	product = cloneProduct(product)
	product.Variants[idx].Stock -= qty
	product.Version++
	r.items[productID] = product
	return nil
}

// IncrementVariantStock атомарно возвращает qty варианту.
func (r *productRepositoryInMemory) IncrementVariantStock(productID, size, color string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[productID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: productID}
	}

	idx := product.FindVariant(size, color)
	if idx < 0 {
		return &domain.VariantNotFoundError{ProductID: productID, Size: size, Color: color}
	}

	product = cloneProduct(product)
	product.Variants[idx].Stock += qty
	product.Version++
	r.items[productID] = product
	return nil
}

// cloneProduct делает глубокую копию изменяемых срезов товара.
func cloneProduct(p domain.Product) domain.Product {
	cp := p
	if p.Variants != nil {
		cp.Variants = make([]domain.Variant, len(p.Variants))
		copy(cp.Variants, p.Variants)
	}
	if p.Images != nil {
		cp.Images = make([]string, len(p.Images))
		copy(cp.Images, p.Images)
	}
	return cp
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
