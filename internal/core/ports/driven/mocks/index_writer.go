package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/moviesync/internal/core/domain"
)

// MockIndexWriter is a mock implementation of IndexWriter for testing.
// It keeps the last applied payload per document id, so idempotence checks
// can compare index contents across repeated batches.
type MockIndexWriter struct {
	mu sync.RWMutex

	docs    map[string]any
	batches [][]domain.Operation

	// FailApplyTimes makes the next N ApplyBatch calls fail wholesale
	FailApplyTimes int
	// RejectIDs are reported as per-document failures without failing the call
	RejectIDs map[string]bool
	// EnsureErr, when non-nil, is returned by EnsureIndex
	EnsureErr error
	// HealthErr, when non-nil, is returned by HealthCheck
	HealthErr error

	ensureCalls  int
	indexPresent bool
}

// NewMockIndexWriter creates a new MockIndexWriter
func NewMockIndexWriter() *MockIndexWriter {
	return &MockIndexWriter{
		docs:      make(map[string]any),
		RejectIDs: make(map[string]bool),
	}
}

func (m *MockIndexWriter) EnsureIndex(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureCalls++
	if m.EnsureErr != nil {
		return false, m.EnsureErr
	}
	if m.indexPresent {
		return false, nil
	}
	m.indexPresent = true
	return true, nil
}

func (m *MockIndexWriter) ApplyBatch(ctx context.Context, ops []domain.Operation, batchSize int) (int, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailApplyTimes > 0 {
		m.FailApplyTimes--
		return 0, nil, domain.ErrIndexUnavailable
	}

	m.batches = append(m.batches, append([]domain.Operation(nil), ops...))

	var (
		succeeded int
		failedIDs []string
	)
	for _, op := range ops {
		if m.RejectIDs[op.DocID] {
			failedIDs = append(failedIDs, op.DocID)
			continue
		}
		m.docs[op.DocID] = op.Payload
		succeeded++
	}
	return succeeded, failedIDs, nil
}

func (m *MockIndexWriter) HealthCheck(ctx context.Context) error {
	return m.HealthErr
}

// Helper methods for testing

// Doc returns the last applied payload for a document id
func (m *MockIndexWriter) Doc(id string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.docs[id]
	return payload, ok
}

// DocCount returns the number of distinct documents written
func (m *MockIndexWriter) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Batches returns every ApplyBatch call's operations in order
func (m *MockIndexWriter) Batches() [][]domain.Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]domain.Operation(nil), m.batches...)
}

// EnsureCalls returns how many times EnsureIndex was invoked
func (m *MockIndexWriter) EnsureCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ensureCalls
}
