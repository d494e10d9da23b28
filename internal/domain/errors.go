package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего адреса доставки.
	ErrAddressRequired = errors.New("address is required")
	// Ошибка отсутствующего телефона получателя.
	ErrPhoneRequired = errors.New("phone is required")
	// Ошибка отсутствующего имени получателя.
	ErrRecipientNameRequired = errors.New("recipient name is required")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка позиции без идентификатора товара.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка позиции без указания размера/цвета.
	ErrItemVariantRequired = errors.New("item size and color are required")
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// Ошибка варианта без размера или цвета.
	ErrVariantKeyRequired = errors.New("variant size and color are required")
	// Ошибка отрицательного остатка варианта.
	ErrVariantStockNegative = errors.New("variant stock must be non-negative")
	// Ошибка повторяющейся пары (size, color) внутри одного товара.
	ErrVariantDuplicate = errors.New("duplicate (size, color) variant")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidStatus возвращается при неизвестном или недопустимом целевом статусе.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("version conflict")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки idempotency-слоя.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
)

// ProductNotFoundError возвращается, когда позиция заказа ссылается
// на несуществующий товар.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// VariantNotFoundError возвращается, когда у товара нет варианта
// с точным совпадением (size, color).
type VariantNotFoundError struct {
	ProductID string
	Size      string
	Color     string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s/%s not found for product %s", e.Size, e.Color, e.ProductID)
}

// InsufficientStockError возвращается, когда доступный остаток варианта
// меньше запрошенного количества.
type InsufficientStockError struct {
	ProductID string
	Size      string
	Color     string
	Available int32
	Requested int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (%s/%s): available %d, requested %d",
		e.ProductID, e.Size, e.Color, e.Available, e.Requested)
}

// PartialReservationError сигнализирует, что часть списаний батча применилась,
// а компенсация не смогла вернуть сток. Требует ручной сверки оператором.
type PartialReservationError struct {
	// Applied — позиции, списание по которым осталось применённым.
	Applied []OrderItem
	// Cause — исходная ошибка, прервавшая батч.
	Cause error
}

func (e *PartialReservationError) Error() string {
	return fmt.Sprintf("partial reservation: %d item(s) left deducted: %v", len(e.Applied), e.Cause)
}

func (e *PartialReservationError) Unwrap() error {
	return e.Cause
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsNotFound проверяет, относится ли ошибка к классу "не найдено".
func IsNotFound(err error) bool {
	var pnf *ProductNotFoundError
	return errors.Is(err, ErrOrderNotFound) || errors.As(err, &pnf)
}
