package mocks

import (
	"context"
	"sync"
)

// MockStateStore is a mock implementation of StateStore for testing
type MockStateStore struct {
	mu     sync.RWMutex
	values map[string]string

	// SetErr, when non-nil, is returned by every Set call
	SetErr error
	// GetErr, when non-nil, is returned by every Get call
	GetErr error

	setCalls int
}

// NewMockStateStore creates a new MockStateStore
func NewMockStateStore() *MockStateStore {
	return &MockStateStore{
		values: make(map[string]string),
	}
}

func (m *MockStateStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetErr != nil {
		return "", false, m.GetErr
	}
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *MockStateStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.SetErr != nil {
		return m.SetErr
	}
	m.values[key] = value
	return nil
}

// Helper methods for testing

// Seed sets a value without counting as a Set call
func (m *MockStateStore) Seed(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Value returns the stored value for a key
func (m *MockStateStore) Value(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok
}

// SetCalls returns how many times Set was invoked
func (m *MockStateStore) SetCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.setCalls
}
