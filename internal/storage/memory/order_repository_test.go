package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
	"github.com/yassinkaabi/nemez-backend/internal/storage/memory"
)

func newOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         "order-1",
		CustomerID: "customer-1",
		Status:     domain.OrderStatusPending,
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "product-1", Size: "M", Color: "black", Qty: 2, PriceMinor: 2900, CreatedAt: now},
		},
		Address:     "12 rue de la Paix",
		Phone:       "+21612345678",
		Name:        "Client",
		AmountMinor: 5800,
		Version:     0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder()

	created, err := repo.Create(order)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Number == 0 {
		t.Fatal("expected assigned order number")
	}

	stored, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != order.ID {
		t.Fatalf("expected id %s, got %s", order.ID, stored.ID)
	}
}

func TestOrderRepository_NumbersAreMonotonic(t *testing.T) {
	repo := memory.NewOrderRepository()

	first := newOrder()
	second := newOrder()
	second.ID = "order-2"

	a, err := repo.Create(first)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	b, err := repo.Create(second)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if b.Number <= a.Number {
		t.Fatalf("expected monotonic numbers, got %d then %d", a.Number, b.Number)
	}
}

func TestOrderRepository_ListByCustomer(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder()
	if _, err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	orders, err := repo.ListByCustomer(order.CustomerID, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}

	orders, err = repo.ListByCustomer("someone-else", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders, got %d", len(orders))
	}
}

func TestOrderRepository_Save(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder()
	if _, err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	stored.Status = domain.OrderStatusConfirmed
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if updated.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected status confirmed, got %s", updated.Status)
	}
	if updated.Version != stored.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder()
	if _, err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	order.Version = 42
	if err := repo.Save(order); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestOrderRepository_Delete(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder()
	if _, err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.Delete(order.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.Get(order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if err := repo.Delete(order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on double delete, got %v", err)
	}
}
