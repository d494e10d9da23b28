package checkout_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
	"github.com/yassinkaabi/nemez-backend/internal/service/checkout"
	"github.com/yassinkaabi/nemez-backend/internal/service/notification"
	"github.com/yassinkaabi/nemez-backend/internal/storage/memory"
)

type fixture struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	outbox   interface {
		domain.OutboxRepository
		AllPending() []domain.OutboxMessage
	}
	mailer  *notification.MockMailer
	service *checkout.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	baseLogger := log.New()
	baseLogger.SetLevel(log.PanicLevel)

	f := &fixture{
		products: memory.NewProductRepository(),
		orders:   memory.NewOrderRepository(),
		outbox:   memory.NewOutboxRepository(),
		mailer:   notification.NewMockMailer(),
	}
	f.service = checkout.NewServiceWithoutMetrics(
		f.products, f.orders, f.outbox, f.mailer,
		baseLogger.WithField("test", t.Name()),
	)
	return f
}

func (f *fixture) seedProduct(t *testing.T, id string, price int64, variants ...domain.Variant) {
	t.Helper()
	now := time.Now().UTC()
	err := f.products.Create(domain.Product{
		ID:         id,
		Name:       "Product " + id,
		PriceMinor: price,
		Variants:   variants,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func (f *fixture) variantStock(t *testing.T, productID, size, color string) int32 {
	t.Helper()
	product, err := f.products.Get(productID)
	if err != nil {
		t.Fatalf("get product %s: %v", productID, err)
	}
	idx := product.FindVariant(size, color)
	if idx < 0 {
		t.Fatalf("variant %s/%s missing on %s", size, color, productID)
	}
	return product.Variants[idx].Stock
}

func placeInput(items ...checkout.ItemInput) checkout.PlaceOrderInput {
	return checkout.PlaceOrderInput{
		CustomerID: "customer-1",
		Items:      items,
		Address:    "12 rue de la Paix",
		Phone:      "+21612345678",
		Email:      "client@example.com",
		Name:       "Client",
	}
}

func TestPlaceOrder_DeductsEachVariant(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900,
		domain.Variant{Size: "M", Color: "black", Stock: 5},
		domain.Variant{Size: "L", Color: "white", Stock: 4},
	)
	f.seedProduct(t, "product-2", 5100,
		domain.Variant{Size: "38", Color: "red", Stock: 2},
	)

	placed, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 3},
		checkout.ItemInput{ProductID: "product-1", Size: "L", Color: "white", Qty: 1},
		checkout.ItemInput{ProductID: "product-2", Size: "38", Color: "red", Qty: 2},
	))
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	if placed.Order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending status, got %s", placed.Order.Status)
	}
	if placed.Order.Number == 0 {
		t.Error("expected assigned order number")
	}
	wantAmount := int64(3*2900 + 1*2900 + 2*5100)
	if placed.Order.AmountMinor != wantAmount {
		t.Errorf("expected amount %d, got %d", wantAmount, placed.Order.AmountMinor)
	}

	if got := f.variantStock(t, "product-1", "M", "black"); got != 2 {
		t.Errorf("expected stock 2, got %d", got)
	}
	if got := f.variantStock(t, "product-1", "L", "white"); got != 3 {
		t.Errorf("expected stock 3, got %d", got)
	}
	if got := f.variantStock(t, "product-2", "38", "red"); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}

	// Цена зафиксирована на момент оформления.
	for _, item := range placed.Order.Items {
		if item.PriceMinor == 0 {
			t.Error("expected captured item price")
		}
	}
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "missing", Size: "M", Color: "black", Qty: 1},
	))

	var notFound *domain.ProductNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ProductNotFoundError, got %v", err)
	}
}

func TestPlaceOrder_VariantNotFound(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	_, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "Black", Qty: 1},
	))

	var notFound *domain.VariantNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected VariantNotFoundError for case mismatch, got %v", err)
	}
	if got := f.variantStock(t, "product-1", "M", "black"); got != 5 {
		t.Fatalf("expected stock unchanged at 5, got %d", got)
	}
}

// Отклонение любого элемента батча не должно менять ни одного остатка.
func TestPlaceOrder_RejectedBatchLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})
	f.seedProduct(t, "product-2", 5100, domain.Variant{Size: "38", Color: "red", Stock: 1})

	_, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 2},
		checkout.ItemInput{ProductID: "product-2", Size: "38", Color: "red", Qty: 3},
	))

	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if got := f.variantStock(t, "product-1", "M", "black"); got != 5 {
		t.Errorf("expected product-1 stock unchanged at 5, got %d", got)
	}
	if got := f.variantStock(t, "product-2", "38", "red"); got != 1 {
		t.Errorf("expected product-2 stock unchanged at 1, got %d", got)
	}

	if orders, _ := f.orders.List(0); len(orders) != 0 {
		t.Errorf("expected no persisted orders, got %d", len(orders))
	}
}

// Две строки батча на один вариант суммируются при проверке остатка.
func TestPlaceOrder_DuplicateVariantRowsAggregate(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	_, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 3},
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 3},
	))

	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if got := f.variantStock(t, "product-1", "M", "black"); got != 5 {
		t.Fatalf("expected stock unchanged at 5, got %d", got)
	}
}

func TestPlaceOrder_ThenExhaustedThenCancelRestores(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	first, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 3},
	))
	if err != nil {
		t.Fatalf("first order failed: %v", err)
	}
	if got := f.variantStock(t, "product-1", "M", "black"); got != 2 {
		t.Fatalf("expected stock 2 after first order, got %d", got)
	}

	_, err = f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 3},
	))
	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 2 || insufficient.Requested != 3 {
		t.Fatalf("expected available=2 requested=3, got %+v", insufficient)
	}

	if err := f.service.CancelOrder(first.Order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got := f.variantStock(t, "product-1", "M", "black"); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}
	if _, err := f.orders.Get(first.Order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order deleted, got %v", err)
	}
}

func TestCancelOrder_ConfirmedLeavesStock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	placed, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 3},
	))
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if _, err := f.service.UpdateStatus(placed.Order.ID, domain.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	if err := f.service.CancelOrder(placed.Order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Подтверждённый заказ уже потребил сток — возврата нет.
	if got := f.variantStock(t, "product-1", "M", "black"); got != 2 {
		t.Fatalf("expected stock to stay at 2, got %d", got)
	}
	if _, err := f.orders.Get(placed.Order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order deleted, got %v", err)
	}
}

func TestCancelOrder_NotFound(t *testing.T) {
	f := newFixture(t)
	if err := f.service.CancelOrder("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	placed, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 1},
	))
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	_, err = f.service.UpdateStatus(placed.Order.ID, domain.OrderStatus("shipped-twice"))
	if !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	stored, _ := f.orders.Get(placed.Order.ID)
	if stored.Status != domain.OrderStatusPending {
		t.Fatalf("expected order untouched in pending, got %s", stored.Status)
	}
}

func TestUpdateStatus_IllegalTransitionRejected(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	placed, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 1},
	))
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	// pending → delivered минует confirmed/shipped.
	if _, err := f.service.UpdateStatus(placed.Order.ID, domain.OrderStatusDelivered); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateStatus_FullFlow(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	placed, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 2},
	))
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	for _, target := range []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		updated, err := f.service.UpdateStatus(placed.Order.ID, target)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", target, err)
		}
		if updated.Status != target {
			t.Fatalf("expected status %s, got %s", target, updated.Status)
		}
	}

	// Смена статусов не трогает сток.
	if got := f.variantStock(t, "product-1", "M", "black"); got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}
}

func TestPlaceOrder_MailerFailureDoesNotUndoOrder(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})
	f.mailer.SendErr = errors.New("smtp unavailable")

	placed, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 1},
	))
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	select {
	case <-f.mailer.Sent():
	case <-time.After(2 * time.Second):
		t.Fatal("expected confirmation dispatch attempt")
	}

	if _, err := f.orders.Get(placed.Order.ID); err != nil {
		t.Fatalf("order must survive mailer failure: %v", err)
	}
}

func TestPlaceOrder_EnqueuesOutboxEvent(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	placed, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 1},
	))
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	pending := f.outbox.AllPending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(pending))
	}
	if pending[0].EventType != checkout.EventTypeOrderPlaced {
		t.Errorf("expected %s event, got %s", checkout.EventTypeOrderPlaced, pending[0].EventType)
	}
	if pending[0].AggregateID != placed.Order.ID {
		t.Errorf("expected aggregate %s, got %s", placed.Order.ID, pending[0].AggregateID)
	}
}

// Конкурентные отмены одного pending-заказа возвращают сток ровно один раз.
func TestCancelOrder_ConcurrentCancelsRestoreOnce(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	placed, err := f.service.PlaceOrder(placeInput(
		checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 3},
	))
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if got := f.variantStock(t, "product-1", "M", "black"); got != 2 {
		t.Fatalf("expected stock 2 after placement, got %d", got)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.service.CancelOrder(placed.Order.ID)
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := f.variantStock(t, "product-1", "M", "black"); got != 5 {
		t.Fatalf("expected stock restored to 5 exactly once, got %d", got)
	}
	if _, err := f.orders.Get(placed.Order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order deleted, got %v", err)
	}
}

// Ровно один из конкурентных заказов на полный остаток должен пройти.
func TestPlaceOrder_ConcurrentLastUnits(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "product-1", 2900, domain.Variant{Size: "M", Color: "black", Stock: 5})

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.PlaceOrder(placeInput(
				checkout.ItemInput{ProductID: "product-1", Size: "M", Color: "black", Qty: 5},
			))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	insufficientCount := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			insufficientCount++
			continue
		}
		t.Fatalf("unexpected error: %v", err)
	}

	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}
	if insufficientCount != workers-1 {
		t.Fatalf("expected %d insufficient-stock rejections, got %d", workers-1, insufficientCount)
	}
	if got := f.variantStock(t, "product-1", "M", "black"); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
	if orders, _ := f.orders.List(0); len(orders) != 1 {
		t.Fatalf("expected exactly one persisted order, got %d", len(orders))
	}
}
