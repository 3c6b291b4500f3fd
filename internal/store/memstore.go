package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/arialabs/aria/internal/turn"
)

// MemorySessionStore is an in-process SessionStore used in tests and when
// the service starts without PostgreSQL. State blobs are copied on both
// reads and writes so callers never share a live pointer across turns.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]byte)}
}

// Load returns a copy of the stored state, or (nil, nil) if absent.
func (m *MemorySessionStore) Load(_ context.Context, key SessionKey) (*turn.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.sessions[key.String()]
	if !ok {
		return nil, nil
	}
	var st turn.State
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Save stores a copy of the state under the composite key.
func (m *MemorySessionStore) Save(_ context.Context, key SessionKey, st *turn.State) error {
	blob, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key.String()] = blob
	return nil
}
