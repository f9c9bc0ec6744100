package searchindex

import (
	"fmt"
	"sync"
)

// StatusMap holds one IndexStatus for every IndexType. Its key set is fixed at
// construction, only values change afterwards.
type StatusMap struct {
	mu       sync.RWMutex
	statuses map[IndexType]IndexStatus
}

func NewStatusMap() *StatusMap {
	m := &StatusMap{
		statuses: make(map[IndexType]IndexStatus, len(indexTypes)),
	}
	for _, t := range indexTypes {
		m.statuses[t] = IndexStatusNotCreated
	}
	return m
}

func (m *StatusMap) Get(t IndexType) (IndexStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.statuses[t]
	return s, ok
}

// Set updates the status of t. Unknown index types are rejected so the key set
// never grows.
func (m *StatusMap) Set(t IndexType, status IndexStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.statuses[t]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidIndexType, t)
	}
	m.statuses[t] = status
	return nil
}

func (m *StatusMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.statuses)
}

// Snapshot returns a copy of the current statuses.
func (m *StatusMap) Snapshot() map[IndexType]IndexStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	res := make(map[IndexType]IndexStatus, len(m.statuses))
	for k, v := range m.statuses {
		res[k] = v
	}
	return res
}
