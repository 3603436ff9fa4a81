// Package core implements the registration, validation/replay, and
// minification machinery for single-cell datasets: field encoding against a
// registry, manager identity bookkeeping, and the state transitions a model
// instance may perform on its bound dataset.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cellcore/pkg/dataset"
	"cellcore/pkg/domain"
)

// Service coordinates registration, validation, and minification against a
// manager store. It optionally snapshots registration records to a persistent
// store so sessions can be rehydrated.
type Service struct {
	// regMu serializes register/validate/replay so the read of a dataset's
	// stamped manager identifier and the install of a fresh manager form one
	// atomic step. See ManagerStore for the index-level locking.
	regMu      sync.Mutex
	store      *ManagerStore
	persistent domain.PersistentStore
	logger     Logger
	metrics    MetricsRecorder
	nowFn      func() time.Time
}

// Option configures a service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithManagerStore supplies an externally owned manager store.
func WithManagerStore(store *ManagerStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPersistentStore enables durable snapshots of registration records.
func WithPersistentStore(ps domain.PersistentStore) Option {
	return func(s *Service) { s.persistent = ps }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewService constructs a service. When a persistent store is configured the
// manager store is hydrated from its records.
func NewService(ctx context.Context, opts ...Option) (*Service, error) {
	s := &Service{
		store:   NewManagerStore(),
		logger:  NopLogger(),
		metrics: NopMetrics(),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persistent != nil {
		records, err := s.persistent.Managers(ctx)
		if err != nil {
			return nil, fmt.Errorf("hydrate manager store: %w", err)
		}
		for _, rec := range records {
			mgr, err := rec.Manager()
			if err != nil {
				return nil, err
			}
			s.store.RegisterManager(mgr)
		}
		if len(records) > 0 {
			s.logger.Info("hydrated manager store", "records", len(records))
		}
	}
	return s, nil
}

// Store returns the underlying manager store.
func (s *Service) Store() *ManagerStore { return s.store }

// Setup registers a dataset under a model class using the class's registry
// builder. The dataset is stamped with its identity (generated when absent)
// and the fresh manager's identifier; derived encodings are written into the
// reserved side-table.
func (s *Service) Setup(ctx context.Context, class ModelClass, args domain.SetupArgs, ds *dataset.Dataset) (mgr *domain.Manager, err error) {
	defer s.observe(OpSetup, s.nowFn())(&err)
	registry, err := class.BuildRegistry(args)
	if err != nil {
		return nil, fmt.Errorf("build registry for class %q: %w", class.Name, err)
	}
	s.regMu.Lock()
	defer s.regMu.Unlock()
	mgr, err = s.register(class, registry, ds, nil)
	if err != nil {
		return nil, err
	}
	if err := s.persistManager(ctx, mgr, ds.Reserved().Minification); err != nil {
		return nil, err
	}
	s.logger.Debug("registered dataset", "class", class.Name, "dataset", mgr.DatasetID, "manager", mgr.ID)
	return mgr, nil
}

// NewModel constructs a model instance bound to a dataset previously
// registered under the class. Capability modules are composed according to
// the class declaration, and the instance is associated with its manager.
func (s *Service) NewModel(ctx context.Context, class ModelClass, ds *dataset.Dataset, opts ...ModelOption) (*Model, error) {
	rs := ds.Reserved()
	if rs.DatasetID == "" {
		return nil, domain.UnregisteredDatasetError{ModelClass: class.Name}
	}
	mgr, err := s.store.GetFromRegistry(class.Name, rs.DatasetID)
	if err != nil {
		return nil, err
	}
	if rs.Minification.Minified() && !class.Capabilities.Minify {
		return nil, domain.UnsupportedMinifiedDataError{ModelClass: class.Name, Kind: rs.Minification}
	}
	m := &Model{
		id:      domain.NewModelID(),
		class:   class,
		dataset: ds,
		manager: mgr,
	}
	if class.Capabilities.Train {
		m.training = &TrainingCapability{model: m}
	}
	if class.Capabilities.Query {
		m.query = &QueryCapability{model: m}
	}
	if class.Capabilities.Minify {
		m.minify = &MinifyCapability{model: m, svc: s}
	}
	for _, opt := range opts {
		opt(m)
	}
	s.store.AssociateInstance(m.id, mgr)
	return m, nil
}

// AdoptModel installs a previously created manager and composes a model
// instance around it without re-running registration. Archive restore uses
// this: the dataset already carries the encoded reserved slots, and replaying
// registration would discard the recorded encoding.
func (s *Service) AdoptModel(ctx context.Context, class ModelClass, ds *dataset.Dataset, mgr *domain.Manager, trained bool, opts ...ModelOption) (*Model, error) {
	rs := ds.Reserved()
	if rs.DatasetID == "" || rs.DatasetID != mgr.DatasetID {
		return nil, fmt.Errorf("dataset identity %q does not match manager dataset %q", rs.DatasetID, mgr.DatasetID)
	}
	if rs.Minification.Minified() && !class.Capabilities.Minify {
		return nil, domain.UnsupportedMinifiedDataError{ModelClass: class.Name, Kind: rs.Minification}
	}
	s.regMu.Lock()
	s.store.RegisterManager(mgr)
	s.regMu.Unlock()
	if err := s.persistManager(ctx, mgr, rs.Minification); err != nil {
		return nil, err
	}
	m := &Model{
		id:      domain.NewModelID(),
		class:   class,
		dataset: ds,
		manager: mgr,
		trained: trained,
	}
	if class.Capabilities.Train {
		m.training = &TrainingCapability{model: m}
	}
	if class.Capabilities.Query {
		m.query = &QueryCapability{model: m}
	}
	if class.Capabilities.Minify {
		m.minify = &MinifyCapability{model: m, svc: s}
	}
	for _, opt := range opts {
		opt(m)
	}
	s.store.AssociateInstance(m.id, mgr)
	s.logger.Debug("adopted restored model", "class", class.Name, "dataset", mgr.DatasetID, "manager", mgr.ID)
	return m, nil
}

// ValidateDataset decides whether a candidate dataset already carries a
// consistent manager binding, needs a fresh transfer registration, or needs
// the original registration replayed because another registration clobbered
// shared derived state. After it returns, every reserved slot the model's
// downstream operations reference is fresh and attributable to the returned
// manager.
func (s *Service) ValidateDataset(ctx context.Context, m *Model, candidate *dataset.Dataset) (ds *dataset.Dataset, mgr *domain.Manager, err error) {
	defer s.observe(OpValidate, s.nowFn())(&err)
	if candidate == nil {
		// The original binding is consistent by construction.
		return m.dataset, m.manager, nil
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()

	rs := candidate.Reserved()
	var stored *domain.Manager
	if rs.DatasetID != "" {
		stored, _ = s.storedManager(m.class.Name, rs.DatasetID)
	}

	switch {
	case stored == nil:
		// Never registered under this class: best-effort transfer using the
		// original setup. Logged so the recovery is never silent.
		mgr, err = s.transfer(ctx, m, candidate)
		if err != nil {
			return nil, nil, err
		}
	case stored.ID != rs.ManagerID:
		// Stale stamp: the reserved slots were overwritten by a different
		// registration sharing this dataset object. Replay the stored
		// registration so the original encoding is restored before any
		// field is read.
		mgr, err = s.replay(ctx, m.class, stored, candidate)
		if err != nil {
			return nil, nil, err
		}
	default:
		mgr = stored
	}

	s.store.AssociateInstance(m.id, mgr)
	if rs.Minification.Minified() && !m.class.Capabilities.Minify {
		return nil, nil, domain.UnsupportedMinifiedDataError{ModelClass: m.class.Name, Kind: rs.Minification}
	}
	return candidate, mgr, nil
}

// storedManager looks up the global index without treating absence as an
// error; the caller decides between transfer and replay.
func (s *Service) storedManager(class string, id domain.DatasetID) (*domain.Manager, bool) {
	mgr, err := s.store.GetFromRegistry(class, id)
	if err != nil {
		return nil, false
	}
	return mgr, true
}

func (s *Service) transfer(ctx context.Context, m *Model, candidate *dataset.Dataset) (mgr *domain.Manager, err error) {
	defer s.observe(OpTransfer, s.nowFn())(&err)
	if counts, ok := m.manager.Summary(domain.FieldNameCounts); ok {
		_, vars := candidate.Shape()
		if vars != counts.Dimension {
			return nil, fmt.Errorf("cannot transfer registration: candidate has %d variables, original registration has %d", vars, counts.Dimension)
		}
	}
	mgr, err = s.register(m.class, m.manager.Registry, candidate, m.manager)
	if err != nil {
		return nil, err
	}
	if err := s.persistManager(ctx, mgr, candidate.Reserved().Minification); err != nil {
		return nil, err
	}
	s.logger.Info("transferred registration to unregistered dataset",
		"class", m.class.Name, "dataset", mgr.DatasetID, "manager", mgr.ID, "source_manager", m.manager.ID)
	return mgr, nil
}

func (s *Service) replay(ctx context.Context, class ModelClass, stored *domain.Manager, candidate *dataset.Dataset) (mgr *domain.Manager, err error) {
	defer s.observe(OpReplay, s.nowFn())(&err)
	mgr, err = s.register(class, stored.Registry, candidate, stored)
	if err != nil {
		return nil, err
	}
	if err := s.persistManager(ctx, mgr, candidate.Reserved().Minification); err != nil {
		return nil, err
	}
	s.logger.Info("replayed registration over stale derived state",
		"class", class.Name, "dataset", mgr.DatasetID, "stale_manager", stored.ID, "manager", mgr.ID)
	return mgr, nil
}

func (s *Service) persistManager(ctx context.Context, mgr *domain.Manager, kind domain.MinificationKind) error {
	if s.persistent == nil {
		return nil
	}
	if err := s.persistent.PutManager(ctx, domain.RecordFromManager(mgr, kind)); err != nil {
		return fmt.Errorf("persist manager %s: %w", mgr.ID, err)
	}
	return nil
}

// observe times an operation and records its status once the surrounding
// function assigns its error.
func (s *Service) observe(op string, start time.Time) func(*error) {
	return func(errp *error) {
		status := StatusOK
		if errp != nil && *errp != nil {
			status = StatusError
		}
		s.metrics.ObserveOperation(op, s.nowFn().Sub(start), status)
	}
}
