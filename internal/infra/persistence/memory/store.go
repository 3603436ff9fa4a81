// Package memory provides the in-memory persistent store used by tests and
// ephemeral sessions, and the snapshot import/export the durable backends
// build on.
package memory

import (
	"context"
	"sort"
	"sync"

	"cellcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// Store keeps manager records in process memory. Records are never evicted;
// a re-registration of the same manager id overwrites the previous record.
type Store struct {
	mu      sync.RWMutex
	records map[domain.ManagerID]domain.ManagerRecord
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{records: make(map[domain.ManagerID]domain.ManagerRecord)}
}

// PutManager stores a registration record. Last write wins.
func (s *Store) PutManager(_ context.Context, rec domain.ManagerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

// Managers returns all records ordered by creation time, then id for
// determinism.
func (s *Store) Managers(_ context.Context) ([]domain.ManagerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ManagerRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Snapshot is the serializable form of the store state.
type Snapshot struct {
	Managers []domain.ManagerRecord `json:"managers"`
}

// ExportState returns a snapshot of all records.
func (s *Store) ExportState() Snapshot {
	records, _ := s.Managers(context.Background())
	return Snapshot{Managers: records}
}

// ImportState replaces the store contents with the snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[domain.ManagerID]domain.ManagerRecord, len(snapshot.Managers))
	for _, rec := range snapshot.Managers {
		s.records[rec.ID] = rec.Clone()
	}
}
