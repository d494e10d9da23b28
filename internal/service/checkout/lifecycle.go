package checkout

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

// CancelOrder удаляет заказ, возвращая сток по каждой позиции, если заказ
// ещё в статусе pending. Для любого другого статуса сток считается
// окончательно потреблённым и не восстанавливается.
//
// Перед возвратом стока pending-заказ захватывается переводом в cancelled
// через версионный Save: из конкурирующих отмен возврат выполняет ровно
// одна, проигравшая перечитывает заказ и сток уже не трогает.
func (s *Service) CancelOrder(orderID string) error {
	const maxRetries = 3

	for attempt := 0; attempt < maxRetries; attempt++ {
		order, err := s.orders.Get(orderID)
		if err != nil {
			return err
		}

		restored := false
		if order.Status == domain.OrderStatusPending {
			claimed := order
			claimed.Status = domain.OrderStatusCancelled
			claimed.UpdatedAt = time.Now().UTC()

			if err := s.orders.Save(claimed); err != nil {
				if domain.IsVersionConflict(err) {
					continue
				}
				return err
			}
			order = claimed
			order.Version++

			if err := s.releaseItems(order.Items); err != nil {
				// Часть возвратов не применилась: заказ не удаляем,
				// оператору нужна сверка остатков.
				s.logger.WithError(err).WithField("order_id", order.ID).Error("cancel left partial stock restoration")
				return err
			}
			restored = true
		}

		if err := s.orders.Delete(order.ID); err != nil {
			return err
		}

		if s.metrics != nil {
			s.metrics.RecordOrderCancelled()
		}

		s.emitEvent(order, EventTypeOrderCancelled, map[string]interface{}{
			"order_number":   order.Number,
			"stock_restored": restored,
		})

		s.logger.WithFields(log.Fields{
			"order_id":       order.ID,
			"order_number":   order.Number,
			"stock_restored": restored,
		}).Info("order cancelled")

		return nil
	}

	return domain.ErrVersionConflict
}

// UpdateStatus переводит заказ в новый статус. Смена статуса не трогает
// сток: резерв зафиксирован при создании заказа. Неизвестный или
// недопустимый целевой статус отклоняется с ErrInvalidStatus.
func (s *Service) UpdateStatus(orderID string, target domain.OrderStatus) (domain.Order, error) {
	if !target.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		order, err := s.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}

		if order.Status == target {
			return order, nil
		}
		if !domain.CanTransition(order.Status, target) {
			return domain.Order{}, domain.ErrInvalidStatus
		}

		previous := order.Status
		order.Status = target
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				s.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
				}).Warn("version conflict on status update, retrying")
				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist status")
			return domain.Order{}, err
		}
		order.Version = prevVersion + 1

		s.emitEvent(order, EventTypeOrderStatusChanged, map[string]interface{}{
			"order_number": order.Number,
			"from":         string(previous),
			"to":           string(target),
		})

		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"from":     previous,
			"to":       target,
		}).Info("order status updated")

		return order, nil
	}

	return domain.Order{}, domain.ErrVersionConflict
}

// GetOrder возвращает заказ вместе с карточками товаров для отображения.
func (s *Service) GetOrder(orderID string) (PlacedOrder, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return PlacedOrder{}, err
	}
	return PlacedOrder{Order: order, Products: s.resolveProducts(order)}, nil
}

// ListOrders возвращает все заказы от новых к старым (админская выборка).
func (s *Service) ListOrders(limit int) ([]domain.Order, error) {
	return s.orders.List(limit)
}

// ListCustomerOrders возвращает заказы одного клиента.
func (s *Service) ListCustomerOrders(customerID string, limit int) ([]domain.Order, error) {
	return s.orders.ListByCustomer(customerID, limit)
}
