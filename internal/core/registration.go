package core

import (
	"fmt"

	"cellcore/pkg/dataset"
	"cellcore/pkg/domain"
)

// register runs each field descriptor of the registry against the dataset in
// order, writes the derived encodings into the reserved side-table, records
// provenance, and stamps the dataset with its identity and the fresh
// manager's identifier. When prior is non-nil its category mappings are
// authoritative: values must encode to the same codes they had at the
// original registration, and novel values fail with UnseenCategoryError.
// Callers hold the service registration lock.
func (s *Service) register(class ModelClass, registry domain.Registry, ds *dataset.Dataset, prior *domain.Manager) (*domain.Manager, error) {
	rs := ds.Reserved()
	rs.ClearDerived()

	obs, _ := ds.Shape()
	summaries := make(map[string]domain.FieldSummary)
	provenance := make(map[domain.ReservedSlot]string)

	for _, d := range registry.Descriptors() {
		var priorSummary *domain.FieldSummary
		if prior != nil {
			if ps, ok := prior.Summary(d.Name); ok {
				priorSummary = &ps
			}
		}
		summary, slot, err := s.encodeField(d, ds, priorSummary)
		if err != nil {
			return nil, err
		}
		if summary == nil {
			continue // optional field with no source
		}
		summary.Observations = obs
		summaries[d.Name] = *summary
		if slot != "" {
			provenance[slot] = d.Name
		}
	}

	if rs.DatasetID == "" {
		rs.DatasetID = domain.NewDatasetID()
	}
	mgr := &domain.Manager{
		ID:         domain.NewManagerID(),
		ModelClass: class.Name,
		DatasetID:  rs.DatasetID,
		Registry:   registry,
		Summaries:  summaries,
		Provenance: provenance,
		CreatedAt:  s.nowFn(),
	}
	rs.ManagerID = mgr.ID
	s.store.RegisterManager(mgr)
	return mgr, nil
}

func (s *Service) encodeField(d domain.FieldDescriptor, ds *dataset.Dataset, prior *domain.FieldSummary) (*domain.FieldSummary, domain.ReservedSlot, error) {
	switch d.Kind {
	case domain.FieldLayer:
		return s.encodeLayer(d, ds)
	case domain.FieldCategorical:
		return s.encodeCategorical(d, ds, prior)
	case domain.FieldNumerical:
		return s.encodeNumerical(d, ds)
	case domain.FieldJointCategorical:
		return s.encodeJointCategorical(d, ds, prior)
	case domain.FieldJointNumerical:
		return s.encodeJointNumerical(d, ds)
	}
	return nil, "", fmt.Errorf("field %q: unknown kind %q", d.Name, d.Kind)
}

func (s *Service) encodeLayer(d domain.FieldDescriptor, ds *dataset.Dataset) (*domain.FieldSummary, domain.ReservedSlot, error) {
	rs := ds.Reserved()
	if d.Source != "" {
		if _, ok := ds.Layer(d.Source); !ok {
			if d.Required {
				return nil, "", domain.MissingRequiredFieldError{Field: d.Name, Source: d.Source}
			}
			return nil, "", nil
		}
	}
	rs.PayloadBound = true
	rs.PayloadSource = d.Source
	_, vars := ds.Shape()
	return &domain.FieldSummary{Kind: d.Kind, Dimension: vars}, domain.SlotPayloadSource, nil
}

func (s *Service) encodeCategorical(d domain.FieldDescriptor, ds *dataset.Dataset, prior *domain.FieldSummary) (*domain.FieldSummary, domain.ReservedSlot, error) {
	col, ok := ds.StringColumn(d.Source)
	if !ok {
		if d.Required {
			return nil, "", domain.MissingRequiredFieldError{Field: d.Name, Source: d.Source}
		}
		return nil, "", nil
	}
	var priorCodes map[string]int
	var priorOrder []string
	if prior != nil {
		priorCodes = prior.Codes
		priorOrder = prior.Categories
	}
	codes, categories, mapping, err := encodeCategories(d.Name, d.Source, col, priorCodes, priorOrder)
	if err != nil {
		return nil, "", err
	}

	rs := ds.Reserved()
	var slot domain.ReservedSlot
	switch d.Name {
	case domain.FieldNameBatch:
		rs.BatchCodes = codes
		slot = domain.SlotBatchCodes
	case domain.FieldNameLabels:
		rs.LabelCodes = codes
		slot = domain.SlotLabelCodes
	default:
		if rs.CategoricalCovariateCodes == nil {
			rs.CategoricalCovariateCodes = make(map[string][]int)
		}
		rs.CategoricalCovariateCodes[d.Source] = codes
		slot = domain.SlotCategoricalCovariates
	}
	return &domain.FieldSummary{Kind: d.Kind, Dimension: 1, Categories: categories, Codes: mapping}, slot, nil
}

func (s *Service) encodeNumerical(d domain.FieldDescriptor, ds *dataset.Dataset) (*domain.FieldSummary, domain.ReservedSlot, error) {
	col, ok := ds.NumericColumn(d.Source)
	if !ok {
		if d.Required {
			return nil, "", domain.MissingRequiredFieldError{Field: d.Name, Source: d.Source}
		}
		return nil, "", nil
	}
	rs := ds.Reserved()
	if rs.ContinuousCovariates == nil {
		rs.ContinuousCovariates = make(map[string][]float64)
	}
	rs.ContinuousCovariates[d.Source] = append([]float64(nil), col...)
	return &domain.FieldSummary{Kind: d.Kind, Dimension: 1}, domain.SlotContinuousCovariates, nil
}

func (s *Service) encodeJointCategorical(d domain.FieldDescriptor, ds *dataset.Dataset, prior *domain.FieldSummary) (*domain.FieldSummary, domain.ReservedSlot, error) {
	rs := ds.Reserved()
	perSource := make(map[string][]string, len(d.Sources))
	for _, source := range d.Sources {
		col, ok := ds.StringColumn(source)
		if !ok {
			if d.Required {
				return nil, "", domain.MissingRequiredFieldError{Field: d.Name, Source: source}
			}
			return nil, "", nil
		}
		var priorOrder []string
		var priorCodes map[string]int
		if prior != nil && prior.PerSource != nil {
			if order, ok := prior.PerSource[source]; ok {
				priorOrder = order
				priorCodes = make(map[string]int, len(order))
				for i, c := range order {
					priorCodes[c] = i
				}
			}
		}
		codes, categories, _, err := encodeCategories(d.Name, source, col, priorCodes, priorOrder)
		if err != nil {
			return nil, "", err
		}
		if rs.CategoricalCovariateCodes == nil {
			rs.CategoricalCovariateCodes = make(map[string][]int)
		}
		rs.CategoricalCovariateCodes[source] = codes
		perSource[source] = categories
	}
	return &domain.FieldSummary{Kind: d.Kind, Dimension: len(d.Sources), PerSource: perSource}, domain.SlotCategoricalCovariates, nil
}

func (s *Service) encodeJointNumerical(d domain.FieldDescriptor, ds *dataset.Dataset) (*domain.FieldSummary, domain.ReservedSlot, error) {
	rs := ds.Reserved()
	for _, source := range d.Sources {
		col, ok := ds.NumericColumn(source)
		if !ok {
			if d.Required {
				return nil, "", domain.MissingRequiredFieldError{Field: d.Name, Source: source}
			}
			return nil, "", nil
		}
		if rs.ContinuousCovariates == nil {
			rs.ContinuousCovariates = make(map[string][]float64)
		}
		rs.ContinuousCovariates[source] = append([]float64(nil), col...)
	}
	return &domain.FieldSummary{Kind: d.Kind, Dimension: len(d.Sources)}, domain.SlotContinuousCovariates, nil
}

// encodeCategories maps column values to integer codes. With a prior mapping
// the original category-to-code assignment is reproduced and novel values are
// rejected; otherwise codes are assigned in first-seen order.
func encodeCategories(field, source string, col dataset.StringColumn, priorCodes map[string]int, priorOrder []string) (codes []int, categories []string, mapping map[string]int, err error) {
	codes = make([]int, len(col))
	if priorCodes != nil {
		for i, v := range col {
			code, ok := priorCodes[v]
			if !ok {
				return nil, nil, nil, domain.UnseenCategoryError{Field: field, Source: source, Category: v}
			}
			codes[i] = code
		}
		categories = append([]string(nil), priorOrder...)
		mapping = make(map[string]int, len(priorCodes))
		for k, v := range priorCodes {
			mapping[k] = v
		}
		return codes, categories, mapping, nil
	}
	mapping = make(map[string]int)
	for i, v := range col {
		code, ok := mapping[v]
		if !ok {
			code = len(categories)
			mapping[v] = code
			categories = append(categories, v)
		}
		codes[i] = code
	}
	return codes, categories, mapping, nil
}
