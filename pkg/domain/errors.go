package domain

import "fmt"

// MissingRequiredFieldError reports a required field descriptor whose source
// is absent from the dataset under registration.
type MissingRequiredFieldError struct {
	Field  string
	Source string
}

func (e MissingRequiredFieldError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("required field %q has no source in dataset", e.Field)
	}
	return fmt.Sprintf("required field %q: source %q not present in dataset", e.Field, e.Source)
}

// UnseenCategoryError reports a categorical value absent from the original
// registration's category mapping. Candidate datasets may use a subset of the
// training categories but may not introduce new ones.
type UnseenCategoryError struct {
	Field    string
	Source   string
	Category string
}

func (e UnseenCategoryError) Error() string {
	return fmt.Sprintf("field %q: category %q in column %q was not seen at registration time", e.Field, e.Category, e.Source)
}

// UnregisteredDatasetError reports a manager-store lookup for a dataset that
// was never registered under the requesting model class.
type UnregisteredDatasetError struct {
	ModelClass string
	Dataset    DatasetID
}

func (e UnregisteredDatasetError) Error() string {
	return fmt.Sprintf("dataset %s is not registered under model class %q", e.Dataset, e.ModelClass)
}

// UnsupportedMinifiedDataError reports an attempt to bind a minified dataset
// to a model class that does not declare minified-mode capability.
type UnsupportedMinifiedDataError struct {
	ModelClass string
	Kind       MinificationKind
}

func (e UnsupportedMinifiedDataError) Error() string {
	return fmt.Sprintf("model class %q cannot operate on minified data (kind %q)", e.ModelClass, e.Kind)
}

// SchemaMismatchError reports persisted state referencing a reserved key the
// current registry does not expect, e.g. loading a minification-aware save
// with a class that never registers the cached posterior slots.
type SchemaMismatchError struct {
	ModelClass string
	Key        string
}

func (e SchemaMismatchError) Error() string {
	return fmt.Sprintf("saved state references reserved key %q which model class %q does not expect", e.Key, e.ModelClass)
}

// RawDataRequiredError reports a query that strictly needs full counts being
// issued against a minified dataset.
type RawDataRequiredError struct {
	Operation string
	Kind      MinificationKind
}

func (e RawDataRequiredError) Error() string {
	return fmt.Sprintf("operation %q requires full counts but dataset is minified (kind %q)", e.Operation, e.Kind)
}
