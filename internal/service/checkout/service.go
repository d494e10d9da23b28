package checkout

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
	"github.com/yassinkaabi/nemez-backend/internal/metrics"
)

// Типы событий жизненного цикла заказа, публикуемых через transactional outbox.
const (
	EventTypeOrderPlaced        = "order.created"
	EventTypeOrderCancelled     = "order.cancelled"
	EventTypeOrderStatusChanged = "order.status_changed"

	aggregateTypeOrder = "order"
)

// Причины отклонения заказа для метрик.
const (
	rejectReasonProductNotFound   = "product_not_found"
	rejectReasonVariantNotFound   = "variant_not_found"
	rejectReasonInsufficientStock = "insufficient_stock"
	rejectReasonInvalidInput      = "invalid_input"
	rejectReasonPersistence       = "persistence"
)

// ItemInput — одна запрошенная позиция заказа.
type ItemInput struct {
	ProductID string
	Size      string
	Color     string
	Qty       int32
}

// PlaceOrderInput — входные данные оформления заказа.
type PlaceOrderInput struct {
	CustomerID string
	Items      []ItemInput
	Address    string
	Phone      string
	Email      string
	Name       string
}

// PlacedOrder — результат оформления: заказ и карточки товаров для отображения.
type PlacedOrder struct {
	Order    domain.Order
	Products map[string]domain.Product
}

// Service оркестрирует оформление заказа: проверка остатков → резервирование →
// сохранение заказа, с компенсацией списаний при сбое в середине батча.
type Service struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	mailer   domain.Mailer
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
}

// NewService создаёт рабочий экземпляр сервиса.
func NewService(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	mailer domain.Mailer,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Service{
		products: products,
		orders:   orders,
		outbox:   outbox,
		mailer:   mailer,
		logger:   logger,
		metrics:  metrics.NewCheckoutMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	products domain.ProductRepository,
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	mailer domain.Mailer,
	logger *log.Entry,
) *Service {
	svc := NewService(products, orders, outbox, mailer, logger)
	svc.metrics = nil
	return svc
}

// PlaceOrder оформляет заказ.
//
// Последовательность: полная read-only проверка батча (ни одного списания,
// пока хоть одна позиция невалидна), затем условные списания по позициям,
// затем сохранение заказа в статусе pending. Письмо-подтверждение уходит
// асинхронно и на результат не влияет.
func (s *Service) PlaceOrder(input PlaceOrderInput) (PlacedOrder, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordCheckoutStarted()
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCheckoutFinished()
			s.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	resolved, err := s.validateItems(input.Items)
	if err != nil {
		s.recordRejection(err)
		return PlacedOrder{}, err
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(input.Items))
	var amountSum int64
	for _, item := range input.Items {
		product := resolved[item.ProductID]
		items = append(items, domain.OrderItem{
			ID:        uuid.NewString(),
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Qty:       item.Qty,
			// Цена фиксируется на момент оформления.
			PriceMinor: product.PriceMinor,
			CreatedAt:  now,
		})
		amountSum += int64(item.Qty) * product.PriceMinor
	}

	order := domain.Order{
		ID:          uuid.NewString(),
		CustomerID:  input.CustomerID,
		Status:      domain.OrderStatusPending,
		Items:       items,
		Address:     input.Address,
		Phone:       input.Phone,
		Email:       input.Email,
		Name:        input.Name,
		AmountMinor: amountSum,
		Version:     0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		if s.metrics != nil {
			s.metrics.RecordOrderRejected(rejectReasonInvalidInput)
		}
		return PlacedOrder{}, errs[0]
	}

	if err := s.reserveItems(order.Items); err != nil {
		s.recordRejection(err)
		return PlacedOrder{}, err
	}

	persistStart := time.Now()
	created, err := s.orders.Create(order)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		// Заказ не записан — возвращаем уже списанный сток.
		if relErr := s.releaseItems(order.Items); relErr != nil {
			return PlacedOrder{}, relErr
		}
		if s.metrics != nil {
			s.metrics.RecordOrderRejected(rejectReasonPersistence)
		}
		return PlacedOrder{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordStepDuration(string(domain.CheckoutStepPersist), time.Since(persistStart))
		s.metrics.RecordOrderPlaced()
	}

	s.emitEvent(created, EventTypeOrderPlaced, map[string]interface{}{
		"order_number": created.Number,
		"amount_minor": created.AmountMinor,
		"items_count":  len(created.Items),
	})

	productsByID := s.resolveProducts(created)
	s.notifyAsync(created, productsByID)

	s.logger.WithFields(log.Fields{
		"order_id":     created.ID,
		"order_number": created.Number,
		"amount_minor": created.AmountMinor,
		"items_count":  len(created.Items),
	}).Info("order placed")

	return PlacedOrder{Order: created, Products: productsByID}, nil
}

// validateItems выполняет read-only проверку всего батча. Ничего не списывает:
// батч либо валиден целиком, либо отклоняется без побочных эффектов.
func (s *Service) validateItems(items []ItemInput) (map[string]domain.Product, error) {
	stepStart := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordStepDuration(string(domain.CheckoutStepValidate), time.Since(stepStart))
		}
	}()

	if len(items) == 0 {
		return nil, domain.ErrItemsRequired
	}

	resolved := make(map[string]domain.Product, len(items))
	// Позиции на один вариант суммируются, чтобы батч с двумя строками
	// по 3 шт. не прошёл проверку против остатка 5.
	requested := make(map[[3]string]int32, len(items))

	for _, item := range items {
		if item.Qty <= 0 {
			return nil, domain.ErrItemQtyInvalid
		}

		product, ok := resolved[item.ProductID]
		if !ok {
			var err error
			product, err = s.products.Get(item.ProductID)
			if err != nil {
				return nil, err
			}
			resolved[item.ProductID] = product
		}

		idx := product.FindVariant(item.Size, item.Color)
		if idx < 0 {
			return nil, &domain.VariantNotFoundError{
				ProductID: item.ProductID,
				Size:      item.Size,
				Color:     item.Color,
			}
		}

		key := [3]string{item.ProductID, item.Size, item.Color}
		requested[key] += item.Qty
		if product.Variants[idx].Stock < requested[key] {
			return nil, &domain.InsufficientStockError{
				ProductID: item.ProductID,
				Size:      item.Size,
				Color:     item.Color,
				Available: product.Variants[idx].Stock,
				Requested: requested[key],
			}
		}
	}

	return resolved, nil
}

// reserveItems списывает сток по каждой позиции через условный декремент
// хранилища. Состояние могло измениться после проверки, поэтому позиции
// разрешаются заново на стороне хранилища, а не по закэшированным ссылкам.
// При сбое в середине батча уже применённые списания компенсируются; если
// компенсация тоже не удалась, возвращается PartialReservationError.
func (s *Service) reserveItems(items []domain.OrderItem) error {
	stepStart := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordStepDuration(string(domain.CheckoutStepReserve), time.Since(stepStart))
		}
	}()

	for i, item := range items {
		err := s.products.DecrementVariantStock(item.ProductID, item.Size, item.Color, item.Qty)
		if err == nil {
			continue
		}

		s.logger.WithError(err).WithFields(log.Fields{
			"product_id": item.ProductID,
			"size":       item.Size,
			"color":      item.Color,
			"qty":        item.Qty,
		}).Warn("stock deduction failed, compensating batch")

		if relErr := s.releaseItems(items[:i]); relErr != nil {
			var partial *domain.PartialReservationError
			if errors.As(relErr, &partial) {
				partial.Cause = err
				return partial
			}
			return relErr
		}
		return err
	}

	return nil
}

// releaseItems возвращает сток по позициям (зеркало reserveItems).
// Каждая позиция разрешается заново на стороне хранилища. Если часть
// возвратов не применилась, возвращается PartialReservationError со
// списком позиций, оставшихся списанными.
func (s *Service) releaseItems(items []domain.OrderItem) error {
	stepStart := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordStepDuration(string(domain.CheckoutStepRelease), time.Since(stepStart))
		}
	}()

	var stuck []domain.OrderItem
	var firstErr error

	for _, item := range items {
		err := s.products.IncrementVariantStock(item.ProductID, item.Size, item.Color, item.Qty)
		if err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"product_id": item.ProductID,
				"size":       item.Size,
				"color":      item.Color,
			}).Error("stock restoration failed")
			stuck = append(stuck, item)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordStockRestored()
		}
	}

	if len(stuck) > 0 {
		return &domain.PartialReservationError{Applied: stuck, Cause: firstErr}
	}
	return nil
}

// resolveProducts подтягивает карточки товаров заказа для ответа и письма.
// Товар мог быть удалён после оформления — такие позиции просто пропускаются.
func (s *Service) resolveProducts(order domain.Order) map[string]domain.Product {
	result := make(map[string]domain.Product, len(order.Items))
	for _, item := range order.Items {
		if _, ok := result[item.ProductID]; ok {
			continue
		}
		product, err := s.products.Get(item.ProductID)
		if err != nil {
			s.logger.WithError(err).WithField("product_id", item.ProductID).Debug("product summary unavailable")
			continue
		}
		result[item.ProductID] = product
	}
	return result
}

// notifyAsync отправляет письмо-подтверждение fire-and-forget:
// ошибка отправки логируется и никогда не откатывает заказ.
func (s *Service) notifyAsync(order domain.Order, products map[string]domain.Product) {
	if s.mailer == nil || order.Email == "" {
		return
	}

	go func() {
		stepStart := time.Now()
		err := s.mailer.SendOrderConfirmation(order.Email, order, products)
		if s.metrics != nil {
			s.metrics.RecordStepDuration(string(domain.CheckoutStepNotify), time.Since(stepStart))
		}
		if err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"email":    order.Email,
			}).Warn("order confirmation email failed")
		}
	}()
}

func (s *Service) recordRejection(err error) {
	if s.metrics == nil {
		return
	}

	var (
		productNotFound *domain.ProductNotFoundError
		variantNotFound *domain.VariantNotFoundError
		insufficient    *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &productNotFound):
		s.metrics.RecordOrderRejected(rejectReasonProductNotFound)
	case errors.As(err, &variantNotFound):
		s.metrics.RecordOrderRejected(rejectReasonVariantNotFound)
	case errors.As(err, &insufficient):
		s.metrics.RecordOrderRejected(rejectReasonInsufficientStock)
	default:
		s.metrics.RecordOrderRejected(rejectReasonInvalidInput)
	}
}

// emitEvent кладёт событие жизненного цикла заказа в transactional outbox.
// Ошибка публикации логируется и не влияет на результат операции.
func (s *Service) emitEvent(order domain.Order, eventType string, payload map[string]interface{}) {
	if s.outbox == nil {
		return
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["status"] = string(order.Status)
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to marshal event payload")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       body,
	}); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"event_type": eventType,
		}).Warn("failed to enqueue outbox event")
	}
}
