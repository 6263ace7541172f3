package catalog

import "sync"

// identityMap holds the single live handle for each row of one table.
// Entries are never evicted except on explicit delete.
type identityMap[T any] struct {
	mu    sync.Mutex
	items map[int64]*T
}

func newIdentityMap[T any]() *identityMap[T] {
	return &identityMap[T]{items: make(map[int64]*T)}
}

// get returns the cached handle for id, registering create() if there is none.
func (m *identityMap[T]) get(id int64, create func() *T) *T {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.items[id]; ok {
		return item
	}
	item := create()
	m.items[id] = item
	return item
}

// peek returns the cached handle without registering a new one.
func (m *identityMap[T]) peek(id int64) (*T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	return item, ok
}

func (m *identityMap[T]) evict(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, id)
}

func (m *identityMap[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items)
}
