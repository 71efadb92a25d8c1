package credential

import (
	"context"
	"errors"
	"sync"
)

// Keys persisted by the client.
const (
	KeyAccessToken = "accessToken"
	KeyMemberID    = "memberId"
	KeyPassword    = "password"
	KeyDeviceToken = "zipcodexpress-device-token"
	KeyLaunchCount = "appLaunchCount"
)

// ErrNotFound is returned by Read when the key is absent.
var ErrNotFound = errors.New("credential not found")

// Store is durable key-value persistence for secrets. Each call is an
// independent operation; Keychain adds multi-key consistency on top.
type Store interface {
	Save(ctx context.Context, key, value string) error
	Read(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps values in process memory. Useful for tests and for
// hosts that must not persist anything.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Save(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Read(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
