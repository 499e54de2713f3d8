package store

import "sync"

// Memory is an in-process Store used for tests and session-local state.
type Memory struct {
	mu          sync.RWMutex
	data        map[string][]byte
	subscribers map[int]func(Change)
	nextSub     int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:        make(map[string][]byte),
		subscribers: make(map[int]func(Change)),
	}
}

func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp, nil
}

func (m *Memory) Set(key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	m.mu.Lock()
	m.data[key] = cp
	subs := m.snapshotSubscribers()
	m.mu.Unlock()

	for _, fn := range subs {
		fn(Change{Key: key, Value: cp})
	}
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	subs := m.snapshotSubscribers()
	m.mu.Unlock()

	for _, fn := range subs {
		fn(Change{Key: key, Value: nil})
	}
	return nil
}

func (m *Memory) Subscribe(fn func(Change)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// snapshotSubscribers copies the subscriber set so change callbacks run
// without holding the store lock. Callers must hold mu.
func (m *Memory) snapshotSubscribers() []func(Change) {
	subs := make([]func(Change), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	return subs
}
