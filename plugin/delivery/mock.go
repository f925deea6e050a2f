package delivery

import (
	"context"
	"sync"
)

// Delivered is one recorded send.
type Delivered struct {
	RecipientID      string
	Message          string
	IdempotencyToken string
}

// MockDeliverer records deliveries for tests. FailFirst makes the first
// N attempts per token fail, to exercise retry paths.
type MockDeliverer struct {
	mu        sync.Mutex
	delivered []Delivered
	failFirst int
	attempts  map[string]int
	failAll   error
}

// NewMockDeliverer creates a recording mock.
func NewMockDeliverer() *MockDeliverer {
	return &MockDeliverer{attempts: make(map[string]int)}
}

// FailFirst makes the first n attempts for each idempotency token fail.
func (m *MockDeliverer) FailFirst(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFirst = n
	m.failAll = err
}

// FailAlways makes every attempt fail.
func (m *MockDeliverer) FailAlways(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFirst = -1
	m.failAll = err
}

func (m *MockDeliverer) Deliver(_ context.Context, recipientID, message, idempotencyToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts[idempotencyToken]++
	if m.failFirst < 0 {
		return m.failAll
	}
	if m.attempts[idempotencyToken] <= m.failFirst {
		return m.failAll
	}

	m.delivered = append(m.delivered, Delivered{
		RecipientID:      recipientID,
		Message:          message,
		IdempotencyToken: idempotencyToken,
	})
	return nil
}

func (m *MockDeliverer) Name() string {
	return "mock"
}

// Delivered returns a copy of every successful send.
func (m *MockDeliverer) Delivered() []Delivered {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Delivered, len(m.delivered))
	copy(out, m.delivered)
	return out
}

// Attempts returns how many times the token was tried.
func (m *MockDeliverer) Attempts(idempotencyToken string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[idempotencyToken]
}

var _ Deliverer = (*MockDeliverer)(nil)
