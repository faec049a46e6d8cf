package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pocketwise/server/internal/agent/model"
)

// MemoryStateStore keeps thread checkpoints in-process. Used when no Redis
// address is configured, and by tests.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string][]byte)}
}

// Load returns a copy of the checkpoint, or nil when the thread is unknown.
func (m *MemoryStateStore) Load(ctx context.Context, threadID string) (*model.ConversationState, error) {
	m.mu.RLock()
	raw, ok := m.states[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var state model.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal thread state: %w", err)
	}
	return &state, nil
}

// Save snapshots the state. Serialization isolates the caller's state from
// later mutation, matching the Redis store's behaviour.
func (m *MemoryStateStore) Save(ctx context.Context, threadID string, state *model.ConversationState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal thread state: %w", err)
	}
	m.mu.Lock()
	m.states[threadID] = b
	m.mu.Unlock()
	return nil
}

// Delete removes a thread's checkpoint.
func (m *MemoryStateStore) Delete(ctx context.Context, threadID string) error {
	m.mu.Lock()
	delete(m.states, threadID)
	m.mu.Unlock()
	return nil
}

var _ model.StateStore = (*MemoryStateStore)(nil)
