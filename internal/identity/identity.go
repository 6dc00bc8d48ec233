// Package identity persists the id of the signed-in user between client
// runs. Only the user id is ever stored.
package identity

import (
	"context"
	"sync"
)

type Store interface {
	Load(ctx context.Context) (userID int64, ok bool, err error)
	Save(ctx context.Context, userID int64) error
	Clear(ctx context.Context) error
}

// Event reports the identity found after an external change.
type Event struct {
	UserID  int64
	Present bool
}

type MemoryStore struct {
	mu     sync.Mutex
	userID int64
}

func (m *MemoryStore) Load(ctx context.Context) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID, m.userID > 0, nil
}

func (m *MemoryStore) Save(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = userID
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = 0
	return nil
}
