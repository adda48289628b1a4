package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/submission-hub/submission-hub/internal/domain/snapshot"
)

// SnapshotStore implements snapshot.Store in memory. No durability: it exists
// for tests and degraded operation when no durable backend is configured.
type SnapshotStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]snapshot.Record
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{records: make(map[uuid.UUID]snapshot.Record)}
}

func (s *SnapshotStore) Persist(ctx context.Context, records []snapshot.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.EnvelopeUUID] = r
	}
	return nil
}

func (s *SnapshotStore) RetrieveAll(ctx context.Context) ([]snapshot.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]snapshot.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *SnapshotStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[uuid.UUID]snapshot.Record)
	return nil
}
