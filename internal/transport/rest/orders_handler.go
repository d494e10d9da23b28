package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
	"github.com/yassinkaabi/nemez-backend/internal/service/checkout"
)

const customerIDHeader = "X-Customer-ID"

// OrdersHandler обслуживает REST-операции над заказами.
type OrdersHandler struct {
	service  *checkout.Service
	idemRepo domain.IdempotencyRepository
	logger   *log.Entry
}

// NewOrdersHandler создаёт handler заказов.
// idemRepo может быть nil — тогда POST /api/orders работает без idempotency-протокола.
func NewOrdersHandler(service *checkout.Service, idemRepo domain.IdempotencyRepository, logger *log.Entry) *OrdersHandler {
	if logger == nil {
		logger = log.WithField("component", "orders-handler")
	}
	return &OrdersHandler{
		service:  service,
		idemRepo: idemRepo,
		logger:   logger,
	}
}

// Register навешивает маршруты заказов на router.
func (h *OrdersHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/orders",
		withIdempotency(h.idemRepo, h.logger, "CreateOrder", h.createOrder)).Methods(http.MethodPost)
	router.HandleFunc("/api/orders", h.listOrders).Methods(http.MethodGet)
	router.HandleFunc("/api/orders/{id}", h.getOrder).Methods(http.MethodGet)
	router.HandleFunc("/api/orders/{id}", h.cancelOrder).Methods(http.MethodDelete)
	router.HandleFunc("/api/orders/{id}/status", h.updateStatus).Methods(http.MethodPut)
	router.HandleFunc("/api/my-orders", h.listMyOrders).Methods(http.MethodGet)
}

func (h *OrdersHandler) createOrder(w *bufferedResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithError(err).Warn("failed to decode create order request")
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	placed, err := h.service.PlaceOrder(req.toInput())
	if err != nil {
		h.logger.WithError(err).WithField("customer_id", req.CustomerID).Warn("order placement rejected")
		respondWithDomainError(w, err)
		return
	}

	h.logger.WithFields(log.Fields{
		"order_id":     placed.Order.ID,
		"order_number": placed.Order.Number,
		"customer_id":  placed.Order.CustomerID,
		"amount_minor": placed.Order.AmountMinor,
		"items_count":  len(placed.Order.Items),
	}).Info("order placed")

	respondWithJSON(w, http.StatusCreated, newOrderView(placed.Order, placed.Products))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	placed, err := h.service.GetOrder(orderID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newOrderView(placed.Order, placed.Products))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(parseLimit(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newOrderViews(orders))
}

func (h *OrdersHandler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	customerID := r.Header.Get(customerIDHeader)
	if customerID == "" {
		customerID = r.URL.Query().Get("customer_id")
	}
	if customerID == "" {
		respondWithError(w, http.StatusBadRequest, "customer id is required")
		return
	}

	orders, err := h.service.ListCustomerOrders(customerID, parseLimit(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newOrderViews(orders))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	if err := h.service.CancelOrder(orderID); err != nil {
		h.logger.WithError(err).WithField("order_id", orderID).Warn("order cancellation failed")
		respondWithDomainError(w, err)
		return
	}

	h.logger.WithField("order_id", orderID).Info("order cancelled")
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.service.UpdateStatus(orderID, domain.OrderStatus(req.Status))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	h.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   updated.Status,
	}).Info("order status updated")
	respondWithJSON(w, http.StatusOK, newOrderView(updated, nil))
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
