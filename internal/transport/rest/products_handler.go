package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

// ProductsHandler обслуживает read-only витрину каталога.
type ProductsHandler struct {
	products domain.ProductRepository
	logger   *log.Entry
}

// NewProductsHandler создаёт handler каталога.
func NewProductsHandler(products domain.ProductRepository, logger *log.Entry) *ProductsHandler {
	if logger == nil {
		logger = log.WithField("component", "products-handler")
	}
	return &ProductsHandler{products: products, logger: logger}
}

// Register навешивает маршруты каталога на router.
func (h *ProductsHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/products", h.listProducts).Methods(http.MethodGet)
	router.HandleFunc("/api/products/{id}", h.getProduct).Methods(http.MethodGet)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(parseLimit(r))
	if err != nil {
		h.logger.WithError(err).Error("failed to list products")
		respondWithDomainError(w, err)
		return
	}

	views := make([]productView, 0, len(products))
	for _, product := range products {
		views = append(views, newProductView(product))
	}
	respondWithJSON(w, http.StatusOK, views)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]

	product, err := h.products.Get(productID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newProductView(product))
}
