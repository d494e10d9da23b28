package notification

import (
	"sync"

	"github.com/yassinkaabi/nemez-backend/internal/domain"
)

// MockMailer — конфигурируемая заглушка Mailer для тестов.
type MockMailer struct {
	mu sync.Mutex

	SendErr error

	SendCalls  int
	LastEmail  string
	LastOrder  domain.Order
	sendSignal chan struct{}
}

// NewMockMailer возвращает mock с успешным сценарием по умолчанию.
func NewMockMailer() *MockMailer {
	return &MockMailer{sendSignal: make(chan struct{}, 16)}
}

// SendOrderConfirmation возвращает заранее настроенную ошибку и считает вызовы.
func (m *MockMailer) SendOrderConfirmation(email string, order domain.Order, _ map[string]domain.Product) error {
	m.mu.Lock()
	m.SendCalls++
	m.LastEmail = email
	m.LastOrder = order
	err := m.SendErr
	m.mu.Unlock()

	select {
	case m.sendSignal <- struct{}{}:
	default:
	}
	return err
}

// Calls возвращает число вызовов под мьютексом (отправка идёт из горутины).
func (m *MockMailer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SendCalls
}

// Sent сигнализирует о каждой завершённой отправке; нужен тестам,
// чтобы дождаться fire-and-forget горутины без sleep.
func (m *MockMailer) Sent() <-chan struct{} {
	return m.sendSignal
}

var _ domain.Mailer = (*MockMailer)(nil)
