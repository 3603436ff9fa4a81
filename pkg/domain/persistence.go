package domain

import (
	"context"
	"fmt"
	"time"
)

// ManagerRecord is the serializable form of a manager plus the registry it was
// built from. Snapshot stores persist these so an interactive session can be
// rehydrated without re-running registration.
type ManagerRecord struct {
	ID           ManagerID               `json:"id"`
	ModelClass   string                  `json:"model_class"`
	DatasetID    DatasetID               `json:"dataset_id"`
	Args         SetupArgs               `json:"args"`
	Descriptors  []FieldDescriptor       `json:"descriptors"`
	Summaries    map[string]FieldSummary `json:"summaries"`
	Provenance   map[ReservedSlot]string `json:"provenance"`
	Minification MinificationKind        `json:"minification,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}

// RecordFromManager flattens a manager into its persistent form.
func RecordFromManager(m *Manager, minification MinificationKind) ManagerRecord {
	cp := m.Clone()
	return ManagerRecord{
		ID:           cp.ID,
		ModelClass:   cp.ModelClass,
		DatasetID:    cp.DatasetID,
		Args:         cp.Registry.Args(),
		Descriptors:  cp.Registry.Descriptors(),
		Summaries:    cp.Summaries,
		Provenance:   cp.Provenance,
		Minification: minification,
		CreatedAt:    cp.CreatedAt,
	}
}

// Manager reconstructs the in-memory manager from the record.
func (r ManagerRecord) Manager() (*Manager, error) {
	registry, err := BuildRegistry(r.Descriptors, r.Args)
	if err != nil {
		return nil, fmt.Errorf("rebuild registry for manager %s: %w", r.ID, err)
	}
	m := &Manager{
		ID:         r.ID,
		ModelClass: r.ModelClass,
		DatasetID:  r.DatasetID,
		Registry:   registry,
		Summaries:  make(map[string]FieldSummary, len(r.Summaries)),
		Provenance: make(map[ReservedSlot]string, len(r.Provenance)),
		CreatedAt:  r.CreatedAt,
	}
	for k, v := range r.Summaries {
		m.Summaries[k] = v.Clone()
	}
	for k, v := range r.Provenance {
		m.Provenance[k] = v
	}
	return m, nil
}

// Clone returns a deep copy of the record.
func (r ManagerRecord) Clone() ManagerRecord {
	cp := r
	cp.Args = r.Args.clone()
	cp.Descriptors = cloneDescriptors(r.Descriptors)
	if r.Summaries != nil {
		cp.Summaries = make(map[string]FieldSummary, len(r.Summaries))
		for k, v := range r.Summaries {
			cp.Summaries[k] = v.Clone()
		}
	}
	if r.Provenance != nil {
		cp.Provenance = make(map[ReservedSlot]string, len(r.Provenance))
		for k, v := range r.Provenance {
			cp.Provenance[k] = v
		}
	}
	return cp
}

// PersistentStore durably records registration events. Implementations
// snapshot after every write; entries are never evicted.
type PersistentStore interface {
	PutManager(ctx context.Context, rec ManagerRecord) error
	Managers(ctx context.Context) ([]ManagerRecord, error)
	Close() error
}
