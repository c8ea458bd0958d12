package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps keys in process. It is used when no Redis URL is set.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	records map[string]memoryRecord
}

type memoryRecord struct {
	Record
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{ttl: ttl, now: time.Now, records: make(map[string]memoryRecord)}
}

func (s *MemoryStore) Reserve(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if rec, ok := s.records[key]; ok && now.Before(rec.expiresAt) {
		return rec.Record, false, nil
	}
	s.records[key] = memoryRecord{Record: Record{State: StatePending}, expiresAt: now.Add(s.ttl)}
	return Record{State: StatePending}, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = memoryRecord{
		Record:    Record{State: StateDone, Value: value},
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}
