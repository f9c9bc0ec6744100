package ledger

import (
	"context"
	"sync"
)

type memoryEntry struct {
	record    []byte
	timestamp int64
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[Key]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[Key]memoryEntry{},
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) ([]byte, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, 0, false, nil
	}
	out := make([]byte, len(e.record))
	copy(out, e.record)
	return out, e.timestamp, true, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, key Key, expected *int64, record []byte, timestamp int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	switch {
	case expected == nil && ok:
		return false, nil
	case expected != nil && (!ok || e.timestamp != *expected):
		return false, nil
	}

	stored := make([]byte, len(record))
	copy(stored, record)
	s.entries[key] = memoryEntry{record: stored, timestamp: timestamp}
	return true, nil
}
