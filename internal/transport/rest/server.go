package rest

import (
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
	"github.com/yassinkaabi/nemez-backend/internal/service/checkout"
)

// NewRouter собирает REST-роутер магазина: заказы, витрина каталога,
// логирование и HTTP-метрики.
func NewRouter(
	service *checkout.Service,
	products domain.ProductRepository,
	idemRepo domain.IdempotencyRepository,
	logger *log.Entry,
) *mux.Router {
	if logger == nil {
		logger = log.WithField("component", "rest")
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(logger))

	NewOrdersHandler(service, idemRepo, logger.WithField("handler", "orders")).Register(router)
	NewProductsHandler(products, logger.WithField("handler", "products")).Register(router)

	return router
}
