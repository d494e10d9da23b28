package rest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
)

// withIdempotency оборачивает мутирующий HTTP-handler в idempotency-протокол.
//
// Ключ берётся из заголовка Idempotency-Key; его отсутствие не ошибка — запрос
// обрабатывается напрямую. Повтор с тем же ключом и тем же телом воспроизводит
// сохранённый ответ; повтор с другим телом отклоняется 409; повтор, пока
// первый запрос ещё в обработке, отклоняется 409.
func withIdempotency(
	repo domain.IdempotencyRepository,
	logger *log.Entry,
	method string,
	handler func(w *bufferedResponseWriter, r *http.Request),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(idempotencyKeyHeader)
		if repo == nil || key == "" {
			buffered := newBufferedResponseWriter()
			handler(buffered, r)
			buffered.flushTo(w)
			return
		}

		reqHash, err := requestHash(method, r)
		if err != nil {
			logger.WithError(err).Warn("failed to hash request for idempotency")
			respondWithError(w, http.StatusInternalServerError, "internal error")
			return
		}

		record, err := repo.CreateProcessing(key, reqHash, time.Now().UTC().Add(idempotencyTTL))
		if err != nil {
			replayIdempotency(w, logger, err, record)
			return
		}

		buffered := newBufferedResponseWriter()
		handler(buffered, r)
		buffered.flushTo(w)

		if buffered.status >= 200 && buffered.status < 300 {
			if err := repo.MarkDone(key, buffered.body.Bytes(), buffered.status); err != nil {
				logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
			}
			return
		}
		if err := repo.MarkFailed(key, buffered.body.Bytes(), buffered.status); err != nil {
			logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent failure response")
		}
	}
}

func replayIdempotency(w http.ResponseWriter, logger *log.Entry, createErr error, record domain.IdempotencyRecord) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		respondWithError(w, http.StatusConflict, "idempotency key is already used with different request payload")
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch {
		case record.Status == domain.IdempotencyStatusProcessing:
			respondWithError(w, http.StatusConflict, "request with the same idempotency key is already processing")
		case record.Status.Terminal():
			replayCachedResponse(w, record)
		default:
			respondWithError(w, http.StatusInternalServerError, "unknown idempotency record status")
		}
	default:
		logger.WithError(createErr).Warn("failed to create idempotency record")
		respondWithError(w, http.StatusInternalServerError, "failed to initialize idempotency request")
	}
}

func replayCachedResponse(w http.ResponseWriter, record domain.IdempotencyRecord) {
	status := record.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

// requestHash связывает idempotency-key с конкретным телом запроса,
// чтобы повтор ключа с другим payload был различим.
func requestHash(method string, r *http.Request) (string, error) {
	var body json.RawMessage
	if r.Body != nil {
		if err := decodeAndRestoreBody(r, &body); err != nil {
			return "", err
		}
	}

	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}
