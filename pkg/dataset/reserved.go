package dataset

import "cellcore/pkg/domain"

// Reserved is the typed side-table of derived state written onto a dataset
// during registration and minification. Slots are a closed set
// (domain.ReservedSlot), so derived state can never collide with user
// columns. User-visible columns live on the Dataset itself.
type Reserved struct {
	DatasetID    domain.DatasetID        `json:"dataset_id,omitempty"`
	ManagerID    domain.ManagerID        `json:"manager_id,omitempty"`
	Minification domain.MinificationKind `json:"minification,omitempty"`

	// PayloadSource names the layer the registration treats as authoritative
	// counts; empty selects the primary payload. Meaningful only when
	// PayloadBound is true.
	PayloadSource string `json:"payload_source,omitempty"`
	PayloadBound  bool   `json:"payload_bound,omitempty"`

	BatchCodes                []int                `json:"batch_codes,omitempty"`
	LabelCodes                []int                `json:"label_codes,omitempty"`
	CategoricalCovariateCodes map[string][]int     `json:"categorical_covariate_codes,omitempty"`
	ContinuousCovariates      map[string][]float64 `json:"continuous_covariates,omitempty"`

	PosteriorMean     *Dense    `json:"-"`
	PosteriorVariance *Dense    `json:"-"`
	ObservedLibSize   []float64 `json:"observed_lib_size,omitempty"`
}

// Has reports whether the slot currently holds derived state.
func (r *Reserved) Has(slot domain.ReservedSlot) bool {
	switch slot {
	case domain.SlotPayloadSource:
		return r.PayloadBound
	case domain.SlotBatchCodes:
		return r.BatchCodes != nil
	case domain.SlotLabelCodes:
		return r.LabelCodes != nil
	case domain.SlotCategoricalCovariates:
		return len(r.CategoricalCovariateCodes) > 0
	case domain.SlotContinuousCovariates:
		return len(r.ContinuousCovariates) > 0
	case domain.SlotPosteriorMean:
		return r.PosteriorMean != nil
	case domain.SlotPosteriorVariance:
		return r.PosteriorVariance != nil
	case domain.SlotObservedLibSize:
		return r.ObservedLibSize != nil
	}
	return false
}

// Slots lists the slots currently populated, in enumeration order.
func (r *Reserved) Slots() []domain.ReservedSlot {
	all := []domain.ReservedSlot{
		domain.SlotPayloadSource,
		domain.SlotBatchCodes,
		domain.SlotLabelCodes,
		domain.SlotCategoricalCovariates,
		domain.SlotContinuousCovariates,
		domain.SlotPosteriorMean,
		domain.SlotPosteriorVariance,
		domain.SlotObservedLibSize,
	}
	var out []domain.ReservedSlot
	for _, s := range all {
		if r.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// ClearDerived drops registration-derived slots while keeping identity
// stamps, the minification marker, and minification caches. Replay calls
// this before re-encoding.
func (r *Reserved) ClearDerived() {
	r.PayloadSource = ""
	r.PayloadBound = false
	r.BatchCodes = nil
	r.LabelCodes = nil
	r.CategoricalCovariateCodes = nil
	r.ContinuousCovariates = nil
}

// Clone returns a deep copy of the side-table.
func (r *Reserved) Clone() Reserved {
	cp := *r
	cp.BatchCodes = append([]int(nil), r.BatchCodes...)
	cp.LabelCodes = append([]int(nil), r.LabelCodes...)
	if r.CategoricalCovariateCodes != nil {
		cp.CategoricalCovariateCodes = make(map[string][]int, len(r.CategoricalCovariateCodes))
		for k, v := range r.CategoricalCovariateCodes {
			cp.CategoricalCovariateCodes[k] = append([]int(nil), v...)
		}
	}
	if r.ContinuousCovariates != nil {
		cp.ContinuousCovariates = make(map[string][]float64, len(r.ContinuousCovariates))
		for k, v := range r.ContinuousCovariates {
			cp.ContinuousCovariates[k] = append([]float64(nil), v...)
		}
	}
	if r.PosteriorMean != nil {
		cp.PosteriorMean = r.PosteriorMean.Clone().(*Dense)
	}
	if r.PosteriorVariance != nil {
		cp.PosteriorVariance = r.PosteriorVariance.Clone().(*Dense)
	}
	cp.ObservedLibSize = append([]float64(nil), r.ObservedLibSize...)
	return cp
}
