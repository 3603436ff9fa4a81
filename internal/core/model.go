package core

import (
	"context"
	"fmt"

	"cellcore/pkg/dataset"
	"cellcore/pkg/domain"
)

// Capabilities declares which capability modules a model class composes.
// Capabilities are selected explicitly at construction rather than inherited.
type Capabilities struct {
	Train  bool
	Query  bool
	Minify bool
}

// ModelClass describes a model variant: its name, the registry it builds from
// setup arguments, and the capabilities its instances compose.
type ModelClass struct {
	Name          string
	Capabilities  Capabilities
	BuildRegistry func(args domain.SetupArgs) (domain.Registry, error)
}

// NewModelClass returns a class using the default registry builder.
func NewModelClass(name string, caps Capabilities) ModelClass {
	return ModelClass{Name: name, Capabilities: caps, BuildRegistry: DefaultRegistryBuilder}
}

// DefaultRegistryBuilder derives field descriptors from setup arguments: the
// counts matrix is always required; batch, labels, and covariate fields are
// added when their keys are supplied.
func DefaultRegistryBuilder(args domain.SetupArgs) (domain.Registry, error) {
	descriptors := []domain.FieldDescriptor{
		{Name: domain.FieldNameCounts, Kind: domain.FieldLayer, Source: args.LayerName, Required: true},
	}
	if args.BatchKey != "" {
		descriptors = append(descriptors, domain.FieldDescriptor{
			Name: domain.FieldNameBatch, Kind: domain.FieldCategorical, Source: args.BatchKey, Required: true,
		})
	}
	if args.LabelsKey != "" {
		descriptors = append(descriptors, domain.FieldDescriptor{
			Name: domain.FieldNameLabels, Kind: domain.FieldCategorical, Source: args.LabelsKey, Required: true,
		})
	}
	if len(args.CategoricalCovariateKeys) > 0 {
		descriptors = append(descriptors, domain.FieldDescriptor{
			Name: domain.FieldNameCategoricalCovs, Kind: domain.FieldJointCategorical,
			Sources: append([]string(nil), args.CategoricalCovariateKeys...), Required: true,
		})
	}
	if len(args.ContinuousCovariateKeys) > 0 {
		descriptors = append(descriptors, domain.FieldDescriptor{
			Name: domain.FieldNameContinuousCovs, Kind: domain.FieldJointNumerical,
			Sources: append([]string(nil), args.ContinuousCovariateKeys...), Required: true,
		})
	}
	return domain.BuildRegistry(descriptors, args)
}

// Encoder is the trained-module surface: it maps a counts matrix to the
// per-observation posterior parameters. Treated as an opaque numerical
// collaborator.
type Encoder interface {
	Encode(x dataset.Matrix) (mean, variance *dataset.Dense, err error)
}

// Trainer fits the numerical module. Opaque; the core only tracks whether it
// ran.
type Trainer interface {
	Fit(ctx context.Context, x dataset.Matrix) error
}

// Model is one constructed model instance: its class, its bound dataset and
// manager, and the capability modules composed for it.
type Model struct {
	id      domain.ModelID
	class   ModelClass
	dataset *dataset.Dataset
	manager *domain.Manager
	trained bool

	training *TrainingCapability
	query    *QueryCapability
	minify   *MinifyCapability
}

// ID returns the instance identity.
func (m *Model) ID() domain.ModelID { return m.id }

// Class returns the model class.
func (m *Model) Class() ModelClass { return m.class }

// Dataset returns the currently bound dataset.
func (m *Model) Dataset() *dataset.Dataset { return m.dataset }

// Manager returns the manager for the bound dataset.
func (m *Model) Manager() *domain.Manager { return m.manager }

// Trained reports whether the numerical module has been fit.
func (m *Model) Trained() bool { return m.trained }

// SetTrained marks the model as trained. Exposed for callers that fit the
// numerical module outside the training capability.
func (m *Model) SetTrained(trained bool) { m.trained = trained }

// Training returns the training capability module.
func (m *Model) Training() (*TrainingCapability, error) {
	if m.training == nil {
		return nil, fmt.Errorf("model class %q does not compose the training capability", m.class.Name)
	}
	return m.training, nil
}

// Query returns the query capability module.
func (m *Model) Query() (*QueryCapability, error) {
	if m.query == nil {
		return nil, fmt.Errorf("model class %q does not compose the query capability", m.class.Name)
	}
	return m.query, nil
}

// Minification returns the minification capability module.
func (m *Model) Minification() (*MinifyCapability, error) {
	if m.minify == nil {
		return nil, fmt.Errorf("model class %q does not compose the minification capability", m.class.Name)
	}
	return m.minify, nil
}

// ModelOption configures capability collaborators at model construction.
type ModelOption func(*Model)

// WithEncoder supplies the opaque encoder backing posterior queries and
// minification summaries.
func WithEncoder(e Encoder) ModelOption {
	return func(m *Model) {
		if m.query != nil {
			m.query.encoder = e
		}
	}
}

// WithTrainer supplies the opaque trainer backing the training capability.
func WithTrainer(tr Trainer) ModelOption {
	return func(m *Model) {
		if m.training != nil {
			m.training.trainer = tr
		}
	}
}

// TrainingCapability delegates fitting to the opaque trainer and records that
// it happened.
type TrainingCapability struct {
	model   *Model
	trainer Trainer
}

// Fit trains the model on the authoritative counts of its bound dataset.
func (c *TrainingCapability) Fit(ctx context.Context) error {
	if c.trainer == nil {
		return fmt.Errorf("no trainer configured for model %s", c.model.id)
	}
	if c.model.dataset.Reserved().Minification.Minified() {
		return domain.RawDataRequiredError{Operation: "fit", Kind: c.model.dataset.Reserved().Minification}
	}
	payload, err := c.model.dataset.Payload()
	if err != nil {
		return err
	}
	if err := c.trainer.Fit(ctx, payload); err != nil {
		return fmt.Errorf("fit model %s: %w", c.model.id, err)
	}
	c.model.trained = true
	return nil
}

// QueryCapability answers posterior and library-size queries, consulting the
// minification marker before touching the primary payload.
type QueryCapability struct {
	model   *Model
	encoder Encoder
}

// Latent returns per-observation posterior mean and variance. On a minified
// dataset the cached parameters are authoritative and the encoder is skipped.
func (c *QueryCapability) Latent() (mean, variance *dataset.Dense, err error) {
	rs := c.model.dataset.Reserved()
	if rs.Minification.Minified() {
		if rs.PosteriorMean == nil || rs.PosteriorVariance == nil {
			return nil, nil, fmt.Errorf("minified dataset is missing cached posterior parameters")
		}
		return rs.PosteriorMean.Clone().(*dataset.Dense), rs.PosteriorVariance.Clone().(*dataset.Dense), nil
	}
	if !c.model.trained {
		return nil, nil, fmt.Errorf("model %s is not trained", c.model.id)
	}
	if c.encoder == nil {
		return nil, nil, fmt.Errorf("no encoder configured for model %s", c.model.id)
	}
	payload, err := c.model.dataset.Payload()
	if err != nil {
		return nil, nil, err
	}
	return c.encoder.Encode(payload)
}

// LibrarySize returns per-observation library sizes: the cached values on a
// minified dataset, row sums of the authoritative counts otherwise.
func (c *QueryCapability) LibrarySize() ([]float64, error) {
	rs := c.model.dataset.Reserved()
	if rs.Minification.Minified() {
		if rs.ObservedLibSize == nil {
			return nil, fmt.Errorf("minified dataset is missing cached library sizes")
		}
		return append([]float64(nil), rs.ObservedLibSize...), nil
	}
	payload, err := c.model.dataset.Payload()
	if err != nil {
		return nil, err
	}
	obs, _ := payload.Shape()
	out := make([]float64, obs)
	for i := 0; i < obs; i++ {
		out[i] = payload.RowSum(i)
	}
	return out, nil
}

// RawCounts returns the authoritative counts matrix. Fails fast on minified
// datasets: operations that need exact raw values cannot run there.
func (c *QueryCapability) RawCounts() (dataset.Matrix, error) {
	rs := c.model.dataset.Reserved()
	if rs.Minification.Minified() {
		return nil, domain.RawDataRequiredError{Operation: "raw_counts", Kind: rs.Minification}
	}
	return c.model.dataset.Payload()
}

// MinifyCapability exposes the minification transition for capable classes.
type MinifyCapability struct {
	model *Model
	svc   *Service
}

// Minify transitions the bound dataset to the given minified representation.
// See Service.Minify for the full contract.
func (c *MinifyCapability) Minify(ctx context.Context, kind domain.MinificationKind) (*dataset.Dataset, error) {
	return c.svc.Minify(ctx, c.model, kind)
}
