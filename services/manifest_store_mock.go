package services

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockManifestStore is an in-memory ManifestStore for testing
type MockManifestStore struct {
	objects map[string][]byte // map of object key to content
	mu      sync.RWMutex
}

// NewMockManifestStore creates a new mock manifest store
func NewMockManifestStore() *MockManifestStore {
	return &MockManifestStore{
		objects: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global manifest store for testing
func (m *MockManifestStore) SetAsMockForTesting() {
	SetManifestStore(m)
}

// Put stores a copy of body under key
func (m *MockManifestStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	content := make([]byte, len(body))
	copy(content, body)

	m.mu.Lock()
	m.objects[key] = content
	m.mu.Unlock()
	return nil
}

// PresignedURL returns a fake link for a stored object
func (m *MockManifestStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("object not found in mock store: %s", key)
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true&expires=%d", key, int(ttl.Seconds())), nil
}

// Objects returns all stored objects (for testing assertions)
func (m *MockManifestStore) Objects() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		objects[k] = v
	}
	return objects
}

// Clear removes all stored objects
func (m *MockManifestStore) Clear() {
	m.mu.Lock()
	m.objects = make(map[string][]byte)
	m.mu.Unlock()
}
