package parser

import (
	"context"
	"sync"

	rerrors "github.com/fieldops/remindd/internal/errors"
)

// MockClient is a scripted parser for tests. Responses are returned in
// order; once exhausted, Parse fails with CodeParserUnavailable.
type MockClient struct {
	mu        sync.Mutex
	responses []*Candidate
	errs      []error
	requests  []*Request
}

// NewMockClient creates an empty mock. Queue responses with Enqueue.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Enqueue adds a scripted response. Pass a nil candidate with a non-nil
// err to script a failure.
func (m *MockClient) Enqueue(candidate *Candidate, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, candidate)
	m.errs = append(m.errs, err)
}

func (m *MockClient) Parse(_ context.Context, req *Request) (*Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(m.responses) == 0 {
		return nil, rerrors.New(rerrors.CodeParserUnavailable, "mock exhausted")
	}

	candidate, err := m.responses[0], m.errs[0]
	m.responses = m.responses[1:]
	m.errs = m.errs[1:]
	return candidate, err
}

// Requests returns a copy of every request seen so far.
func (m *MockClient) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.requests))
	copy(out, m.requests)
	return out
}

var _ Client = (*MockClient)(nil)
