package domain

import (
	"fmt"
	"strings"
)

// FieldKind classifies what a field descriptor extracts from a dataset.
type FieldKind string

const (
	// FieldLayer selects an expression matrix (the primary payload or a named layer).
	FieldLayer FieldKind = "layer"
	// FieldCategorical selects a single per-observation categorical column.
	FieldCategorical FieldKind = "categorical"
	// FieldNumerical selects a single per-observation numeric column.
	FieldNumerical FieldKind = "numerical"
	// FieldJointCategorical selects several categorical columns encoded side by side.
	FieldJointCategorical FieldKind = "joint_categorical"
	// FieldJointNumerical selects several numeric columns stacked side by side.
	FieldJointNumerical FieldKind = "joint_numerical"
)

// Canonical field names shared by all model classes. Descriptors may add
// class-specific fields, but these names carry fixed reserved-slot targets.
const (
	FieldNameCounts          = "counts"
	FieldNameBatch           = "batch"
	FieldNameLabels          = "labels"
	FieldNameCategoricalCovs = "categorical_covariates"
	FieldNameContinuousCovs  = "continuous_covariates"
)

// FieldDescriptor describes one piece of data to extract and encode from a
// dataset during registration. Immutable once constructed.
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind"`
	Source   string    `json:"source,omitempty"`  // layer or column name; empty selects the primary payload for layer kinds
	Sources  []string  `json:"sources,omitempty"` // ordered column names for joint kinds
	Required bool      `json:"required"`
}

func (d FieldDescriptor) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("field descriptor requires a name")
	}
	switch d.Kind {
	case FieldLayer, FieldCategorical, FieldNumerical:
		if len(d.Sources) > 0 {
			return fmt.Errorf("field %q: kind %s takes a single source", d.Name, d.Kind)
		}
	case FieldJointCategorical, FieldJointNumerical:
		if d.Source != "" {
			return fmt.Errorf("field %q: joint kinds enumerate sources, not a single source", d.Name)
		}
	default:
		return fmt.Errorf("field %q: unknown kind %q", d.Name, d.Kind)
	}
	return nil
}

// SetupArgs records the arguments a model class used to build its registry.
// Persisted verbatim so a registration can be replayed or transferred to
// another dataset instance later.
type SetupArgs struct {
	LayerName                string   `json:"layer_name,omitempty"` // empty selects the primary payload
	BatchKey                 string   `json:"batch_key,omitempty"`
	LabelsKey                string   `json:"labels_key,omitempty"`
	CategoricalCovariateKeys []string `json:"categorical_covariate_keys,omitempty"`
	ContinuousCovariateKeys  []string `json:"continuous_covariate_keys,omitempty"`
}

func (a SetupArgs) clone() SetupArgs {
	cp := a
	cp.CategoricalCovariateKeys = append([]string(nil), a.CategoricalCovariateKeys...)
	cp.ContinuousCovariateKeys = append([]string(nil), a.ContinuousCovariateKeys...)
	return cp
}

// Registry is an ordered collection of field descriptors plus the setup
// arguments that produced them. Order matters only for deterministic replay.
// Immutable after construction.
type Registry struct {
	descriptors []FieldDescriptor
	args        SetupArgs
}

// BuildRegistry constructs a registry after checking descriptor name
// uniqueness. Pure construction with no side effects.
func BuildRegistry(descriptors []FieldDescriptor, args SetupArgs) (Registry, error) {
	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		if err := d.validate(); err != nil {
			return Registry{}, err
		}
		if _, dup := seen[d.Name]; dup {
			return Registry{}, fmt.Errorf("duplicate field descriptor %q", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return Registry{descriptors: cloneDescriptors(descriptors), args: args.clone()}, nil
}

// Descriptors returns the ordered descriptors as a defensive copy.
func (r Registry) Descriptors() []FieldDescriptor {
	return cloneDescriptors(r.descriptors)
}

// Args returns the setup arguments the registry was built from.
func (r Registry) Args() SetupArgs { return r.args.clone() }

// Field returns the descriptor with the given name.
func (r Registry) Field(name string) (FieldDescriptor, bool) {
	for _, d := range r.descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return FieldDescriptor{}, false
}

// Len reports the number of descriptors.
func (r Registry) Len() int { return len(r.descriptors) }

func cloneDescriptors(in []FieldDescriptor) []FieldDescriptor {
	if len(in) == 0 {
		return nil
	}
	out := make([]FieldDescriptor, len(in))
	copy(out, in)
	for i := range out {
		out[i].Sources = append([]string(nil), in[i].Sources...)
	}
	return out
}
