package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultCapacity is the entry limit used when MemStore is constructed with
// a non-positive capacity.
const DefaultCapacity = 1000

// MemStore is a bounded in-process store. Eviction is strictly FIFO by
// insertion order: overwriting an existing key keeps its original place in
// the eviction queue, a fresh key is always the newest. Expired entries are
// reaped lazily on Get and pruned ahead of eviction on Set.
//
// Construct one per process and hand it to every caller; fresh instances
// give tests isolation.
type MemStore struct {
	lk       sync.Mutex
	capacity int
	entries  map[string]Entry
	order    []string // insertion order, oldest first

	now func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore(capacity int) *MemStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemStore{
		capacity: capacity,
		entries:  make(map[string]Entry),
		now:      time.Now,
	}
}

func (s *MemStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !ent.Valid(s.now()) {
		s.remove(key)
		return nil, nil
	}
	return &ent, nil
}

func (s *MemStore) Set(ctx context.Context, entry Entry) error {
	s.lk.Lock()
	defer s.lk.Unlock()

	now := s.now()
	for _, key := range append([]string(nil), s.order...) {
		ent := s.entries[key]
		if !ent.Valid(now) {
			s.remove(key)
		}
	}

	if _, exists := s.entries[entry.Key]; exists {
		// overwrite keeps the old eviction priority
		s.entries[entry.Key] = entry
		return nil
	}

	for len(s.entries) >= s.capacity && len(s.order) > 0 {
		s.remove(s.order[0])
	}

	s.entries[entry.Key] = entry
	s.order = append(s.order, entry.Key)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.remove(key)
	return nil
}

// Close is a no-op; the store lives for the life of the process.
func (s *MemStore) Close() error {
	return nil
}

// remove must be called with lk held.
func (s *MemStore) remove(key string) {
	if _, ok := s.entries[key]; !ok {
		return
	}
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of live entries, expired or not.
func (s *MemStore) Len() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.entries)
}
