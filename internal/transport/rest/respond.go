package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

// respondWithDomainError переводит доменную ошибку в HTTP-статус.
//
// Товар не найден — 404; нет варианта или не хватает остатка — 400
// (клиент прислал неисполнимый батч); конфликт версий — 409; всё
// остальное — 500 без деталей наружу.
//
// Частично применённое списание проверяется первым: оно оборачивает
// исходную причину, и классификация по Cause выдала бы клиенту 4xx,
// хотя сток требует ручной сверки на стороне сервиса.
func respondWithDomainError(w http.ResponseWriter, err error) {
	var (
		partial         *domain.PartialReservationError
		productNotFound *domain.ProductNotFoundError
		variantNotFound *domain.VariantNotFoundError
		insufficient    *domain.InsufficientStockError
	)

	switch {
	case errors.As(err, &partial):
		respondWithError(w, http.StatusInternalServerError, "internal error")
	case errors.As(err, &productNotFound):
		respondWithError(w, http.StatusNotFound, productNotFound.Error())
	case errors.As(err, &variantNotFound):
		respondWithError(w, http.StatusBadRequest, variantNotFound.Error())
	case errors.As(err, &insufficient):
		respondWithError(w, http.StatusBadRequest, insufficient.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		respondWithError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrInvalidStatus):
		respondWithError(w, http.StatusBadRequest, "invalid status transition")
	case isValidationError(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		respondWithError(w, http.StatusConflict, "order was modified concurrently, retry")
	default:
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		domain.ErrItemsRequired,
		domain.ErrAddressRequired,
		domain.ErrPhoneRequired,
		domain.ErrRecipientNameRequired,
		domain.ErrItemQtyInvalid,
		domain.ErrItemPriceInvalid,
		domain.ErrItemProductRequired,
		domain.ErrItemVariantRequired,
		domain.ErrAmountNegative,
		domain.ErrAmountMismatch,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
