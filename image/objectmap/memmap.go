package objectmap

import (
	"context"
	"sync"

	"github.com/in-han/objimage/image/workqueue"
)

// MemMap is an in-memory Map, used by tests and by images that do not
// need the bitmap to survive a restart.
type MemMap struct {
	mu     sync.RWMutex
	states map[uint64]State
	km     *keyMutex
	queue  workqueue.Queue
}

// NewMemMap returns an empty MemMap whose AioUpdate callbacks are
// dispatched through q.
func NewMemMap(q workqueue.Queue) *MemMap {
	return &MemMap{
		states: make(map[uint64]State),
		km:     newKeyMutex(),
		queue:  q,
	}
}

// Set seeds objectNo's state without going through AioUpdate. Used by
// tests to set up fixtures.
func (m *MemMap) Set(objectNo uint64, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[objectNo] = s
}

func (m *MemMap) get(objectNo uint64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[objectNo]
	if !ok {
		return StateNonexistent
	}
	return s
}

// MayExist implements Map.
func (m *MemMap) MayExist(ctx context.Context, objectNo uint64) bool {
	return m.get(objectNo) != StateNonexistent
}

// UpdateRequired implements Map.
func (m *MemMap) UpdateRequired(ctx context.Context, objectNo uint64, newState State) bool {
	return m.get(objectNo) != newState
}

// AioUpdate implements Map.
func (m *MemMap) AioUpdate(ctx context.Context, objectNo uint64, newState State, expected *State, cb func(error)) bool {
	if err := m.km.Lock(ctx, objectNo); err != nil {
		m.queue.Queue(ctx, func(context.Context) { cb(err) })
		return true
	}

	m.mu.Lock()
	current, ok := m.states[objectNo]
	if !ok {
		current = StateNonexistent
	}
	if expected != nil && current != *expected {
		m.mu.Unlock()
		m.km.Unlock(objectNo)
		return false
	}
	if current == newState {
		m.mu.Unlock()
		m.km.Unlock(objectNo)
		return false
	}
	m.states[objectNo] = newState
	m.mu.Unlock()

	m.queue.Queue(ctx, func(context.Context) {
		defer m.km.Unlock(objectNo)
		cb(nil)
	})
	return true
}
