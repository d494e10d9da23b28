package rest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// bufferedResponseWriter накапливает ответ handler-а, чтобы его можно было
// сохранить в idempotency-кэше до отдачи клиенту.
type bufferedResponseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{
		header: make(http.Header),
		status: http.StatusOK,
	}
}

func (w *bufferedResponseWriter) Header() http.Header {
	return w.header
}

func (w *bufferedResponseWriter) WriteHeader(status int) {
	w.status = status
}

func (w *bufferedResponseWriter) Write(p []byte) (int, error) {
	return w.body.Write(p)
}

func (w *bufferedResponseWriter) flushTo(dst http.ResponseWriter) {
	for key, values := range w.header {
		for _, value := range values {
			dst.Header().Add(key, value)
		}
	}
	dst.WriteHeader(w.status)
	_, _ = dst.Write(w.body.Bytes())
}

var _ http.ResponseWriter = (*bufferedResponseWriter)(nil)

// decodeAndRestoreBody вычитывает тело запроса и возвращает его на место,
// чтобы handler мог декодировать его повторно.
func decodeAndRestoreBody(r *http.Request, raw *json.RawMessage) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	*raw = data
	return nil
}
