package domain

import "time"

// FieldSummary captures the derived statistics one field contributed during
// registration: dimensionality for matrix and numeric fields, the first-seen
// category order and category-to-code mapping for categorical ones.
type FieldSummary struct {
	Kind         FieldKind           `json:"kind"`
	Observations int                 `json:"observations"`
	Dimension    int                 `json:"dimension"`
	Categories   []string            `json:"categories,omitempty"` // first-seen order
	Codes        map[string]int      `json:"codes,omitempty"`
	PerSource    map[string][]string `json:"per_source,omitempty"` // joint categorical: categories per column
}

// Clone returns a deep copy of the summary.
func (s FieldSummary) Clone() FieldSummary {
	cp := s
	cp.Categories = append([]string(nil), s.Categories...)
	if s.Codes != nil {
		cp.Codes = make(map[string]int, len(s.Codes))
		for k, v := range s.Codes {
			cp.Codes[k] = v
		}
	}
	if s.PerSource != nil {
		cp.PerSource = make(map[string][]string, len(s.PerSource))
		for k, v := range s.PerSource {
			cp.PerSource[k] = append([]string(nil), v...)
		}
	}
	return cp
}

// Manager is the versioned, identified record of one registration event bound
// to one dataset instance. Managers are never mutated in place: replay and
// transfer create fresh ones.
type Manager struct {
	ID         ManagerID               `json:"id"`
	ModelClass string                  `json:"model_class"`
	DatasetID  DatasetID               `json:"dataset_id"`
	Registry   Registry                `json:"-"`
	Summaries  map[string]FieldSummary `json:"summaries"`
	Provenance map[ReservedSlot]string `json:"provenance"` // derived slot -> producing field
	CreatedAt  time.Time               `json:"created_at"`
}

// Summary returns the summary recorded for the named field.
func (m *Manager) Summary(field string) (FieldSummary, bool) {
	s, ok := m.Summaries[field]
	if !ok {
		return FieldSummary{}, false
	}
	return s.Clone(), true
}

// Clone returns a deep copy of the manager sharing the immutable registry.
func (m *Manager) Clone() *Manager {
	cp := *m
	cp.Summaries = make(map[string]FieldSummary, len(m.Summaries))
	for k, v := range m.Summaries {
		cp.Summaries[k] = v.Clone()
	}
	cp.Provenance = make(map[ReservedSlot]string, len(m.Provenance))
	for k, v := range m.Provenance {
		cp.Provenance[k] = v
	}
	return &cp
}
