package core

import (
	"sync"

	"cellcore/pkg/domain"
)

// ManagerStore is the explicit, constructed home of registration state. It
// replaces ambient class-attached globals with an object that has clear init
// and teardown. Two indices are kept: a global one from (model class,
// dataset identity) to the manager that last registered that dataset, and a
// per-instance one disambiguating concurrent model instances that share a
// dataset.
//
// All reads and writes go through one mutex so a validate-then-install
// sequence observes a consistent view; the service additionally re-checks the
// dataset's stamped manager identifier under its own registration lock so two
// racing validators converge on a single manager.
type ManagerStore struct {
	mu        sync.RWMutex
	global    map[string]map[domain.DatasetID]*domain.Manager
	instances map[domain.ModelID]map[domain.DatasetID]*domain.Manager
}

// NewManagerStore constructs an empty store.
func NewManagerStore() *ManagerStore {
	s := &ManagerStore{}
	s.reset()
	return s
}

func (s *ManagerStore) reset() {
	s.global = make(map[string]map[domain.DatasetID]*domain.Manager)
	s.instances = make(map[domain.ModelID]map[domain.DatasetID]*domain.Manager)
}

// RegisterManager records mgr in the global index under its model class and
// dataset identity. Last write wins.
func (s *ManagerStore) RegisterManager(mgr *domain.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDataset, ok := s.global[mgr.ModelClass]
	if !ok {
		byDataset = make(map[domain.DatasetID]*domain.Manager)
		s.global[mgr.ModelClass] = byDataset
	}
	byDataset[mgr.DatasetID] = mgr.Clone()
}

// GetFromRegistry returns the manager that last registered the dataset under
// the model class.
func (s *ManagerStore) GetFromRegistry(modelClass string, id domain.DatasetID) (*domain.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mgr, ok := s.global[modelClass][id]
	if !ok {
		return nil, domain.UnregisteredDatasetError{ModelClass: modelClass, Dataset: id}
	}
	return mgr.Clone(), nil
}

// AssociateInstance records mgr in the per-instance index.
func (s *ManagerStore) AssociateInstance(instance domain.ModelID, mgr *domain.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDataset, ok := s.instances[instance]
	if !ok {
		byDataset = make(map[domain.DatasetID]*domain.Manager)
		s.instances[instance] = byDataset
	}
	byDataset[mgr.DatasetID] = mgr.Clone()
}

// InstanceManager returns the manager associated with (instance, dataset).
func (s *ManagerStore) InstanceManager(instance domain.ModelID, id domain.DatasetID) (*domain.Manager, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mgr, ok := s.instances[instance][id]
	if !ok {
		return nil, false
	}
	return mgr.Clone(), true
}

// DropInstance removes all per-instance associations for a model instance.
func (s *ManagerStore) DropInstance(instance domain.ModelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, instance)
}

// Managers lists every manager in the global index.
func (s *ManagerStore) Managers() []*domain.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Manager
	for _, byDataset := range s.global {
		for _, mgr := range byDataset {
			out = append(out, mgr.Clone())
		}
	}
	return out
}

// Reset clears both indices. Intended for teardown between test cases.
func (s *ManagerStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
