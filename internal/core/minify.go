package core

import (
	"context"
	"fmt"

	"cellcore/pkg/dataset"
	"cellcore/pkg/domain"
)

// Minify transitions a model's bound dataset from full observations to a
// cached posterior summary. The transition produces a new dataset object:
// the caller's original reference is left untouched and still reflects full
// state. Minification is not reversible in place.
//
// Preconditions: the model class composes the minification capability, the
// model is trained, and the caller has attached per-observation posterior
// mean and variance to the dataset's reserved slots.
func (s *Service) Minify(ctx context.Context, m *Model, kind domain.MinificationKind) (out *dataset.Dataset, err error) {
	defer s.observe(OpMinify, s.nowFn())(&err)
	if !kind.Minified() {
		return nil, fmt.Errorf("minify: kind must name a reduced representation")
	}
	if !m.class.Capabilities.Minify {
		return nil, domain.UnsupportedMinifiedDataError{ModelClass: m.class.Name, Kind: kind}
	}
	if !m.trained {
		return nil, fmt.Errorf("minify: model %s must be trained first", m.id)
	}
	rs := m.dataset.Reserved()
	if rs.Minification.Minified() {
		return nil, fmt.Errorf("minify: dataset is already minified (kind %q)", rs.Minification)
	}
	if rs.PosteriorMean == nil {
		return nil, fmt.Errorf("minify: missing attached summary %q", domain.SlotPosteriorMean)
	}
	if rs.PosteriorVariance == nil {
		return nil, fmt.Errorf("minify: missing attached summary %q", domain.SlotPosteriorVariance)
	}
	obs, vars := m.dataset.Shape()
	if r, _ := rs.PosteriorMean.Shape(); r != obs {
		return nil, fmt.Errorf("minify: posterior mean has %d rows, dataset has %d observations", r, obs)
	}
	if r, _ := rs.PosteriorVariance.Shape(); r != obs {
		return nil, fmt.Errorf("minify: posterior variance has %d rows, dataset has %d observations", r, obs)
	}

	minified := m.dataset.Clone()

	// Library sizes come from the authoritative counts, computed before the
	// payload is emptied.
	payload, err := minified.Payload()
	if err != nil {
		return nil, err
	}
	libSizes := make([]float64, obs)
	for i := 0; i < obs; i++ {
		libSizes[i] = payload.RowSum(i)
	}

	// Empty the primary payload and every full-data layer, keeping shapes so
	// shape-dependent code keeps working.
	if err := minified.ReplaceX(dataset.NewEmptyCSR(obs, vars)); err != nil {
		return nil, err
	}
	for _, name := range minified.LayerNames() {
		if err := minified.ReplaceLayer(name, dataset.NewEmptyCSR(obs, vars)); err != nil {
			return nil, err
		}
	}

	mrs := minified.Reserved()
	mrs.ObservedLibSize = libSizes
	mrs.Minification = kind
	// Fresh identity: the minified dataset is a distinct instance.
	mrs.DatasetID = ""
	mrs.ManagerID = ""

	s.regMu.Lock()
	defer s.regMu.Unlock()
	mgr, err := s.register(m.class, m.manager.Registry, minified, m.manager)
	if err != nil {
		return nil, err
	}
	if err := s.persistManager(ctx, mgr, kind); err != nil {
		return nil, err
	}

	m.dataset = minified
	m.manager = mgr
	s.store.AssociateInstance(m.id, mgr)
	s.logger.Info("minified dataset",
		"class", m.class.Name, "kind", string(kind), "dataset", mgr.DatasetID, "manager", mgr.ID)
	return minified, nil
}
