package rest

import (
	"time"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
	"github.com/yassinkaabi/nemez-backend/internal/service/checkout"
)

// createOrderRequest — тело POST /api/orders.
type createOrderRequest struct {
	CustomerID string             `json:"customer_id"`
	Items      []orderItemRequest `json:"items"`
	Address    string             `json:"address"`
	Phone      string             `json:"phone"`
	Email      string             `json:"email"`
	Name       string             `json:"name"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Qty       int32  `json:"qty"`
}

func (r createOrderRequest) toInput() checkout.PlaceOrderInput {
	items := make([]checkout.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, checkout.ItemInput{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Qty:       item.Qty,
		})
	}
	return checkout.PlaceOrderInput{
		CustomerID: r.CustomerID,
		Items:      items,
		Address:    r.Address,
		Phone:      r.Phone,
		Email:      r.Email,
		Name:       r.Name,
	}
}

// updateStatusRequest — тело PUT /api/orders/{id}/status.
type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderItemView struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Size        string `json:"size"`
	Color       string `json:"color"`
	Qty         int32  `json:"qty"`
	PriceMinor  int64  `json:"price_minor"`
}

type orderView struct {
	ID          string          `json:"id"`
	Number      int64           `json:"number"`
	CustomerID  string          `json:"customer_id"`
	Status      string          `json:"status"`
	Items       []orderItemView `json:"items"`
	Address     string          `json:"address"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email,omitempty"`
	Name        string          `json:"name"`
	AmountMinor int64           `json:"amount_minor"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type variantView struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	Stock int32  `json:"stock"`
}

type productView struct {
	ID          string        `json:"id"`
	Number      int64         `json:"number"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	PriceMinor  int64         `json:"price_minor"`
	CategoryID  string        `json:"category_id,omitempty"`
	Images      []string      `json:"images,omitempty"`
	Variants    []variantView `json:"variants"`
	TotalStock  int32         `json:"total_stock"`
}

func newOrderView(order domain.Order, products map[string]domain.Product) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		view := orderItemView{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Size:       item.Size,
			Color:      item.Color,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		}
		if product, ok := products[item.ProductID]; ok {
			view.ProductName = product.Name
		}
		items = append(items, view)
	}
	return orderView{
		ID:          order.ID,
		Number:      order.Number,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		Items:       items,
		Address:     order.Address,
		Phone:       order.Phone,
		Email:       order.Email,
		Name:        order.Name,
		AmountMinor: order.AmountMinor,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func newOrderViews(orders []domain.Order) []orderView {
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order, nil))
	}
	return views
}

func newProductView(product domain.Product) productView {
	variants := make([]variantView, 0, len(product.Variants))
	for _, v := range product.Variants {
		variants = append(variants, variantView{Size: v.Size, Color: v.Color, Stock: v.Stock})
	}
	return productView{
		ID:          product.ID,
		Number:      product.Number,
		Name:        product.Name,
		Description: product.Description,
		PriceMinor:  product.PriceMinor,
		CategoryID:  product.CategoryID,
		Images:      product.Images,
		Variants:    variants,
		TotalStock:  product.TotalStock(),
	}
}
