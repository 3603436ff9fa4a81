package domain

// ReservedSlot names an entry in the dataset's typed side-table of derived
// state. The enumeration is closed: registration and persistence only ever
// touch these slots, so user columns cannot collide with derived ones.
type ReservedSlot string

const (
	// SlotPayloadSource records which matrix (primary payload or named layer)
	// the registration treats as authoritative counts.
	SlotPayloadSource ReservedSlot = "payload_source"
	// SlotBatchCodes holds the integer encoding of the batch column.
	SlotBatchCodes ReservedSlot = "batch_codes"
	// SlotLabelCodes holds the integer encoding of the labels column.
	SlotLabelCodes ReservedSlot = "label_codes"
	// SlotCategoricalCovariates holds per-column integer encodings of extra
	// categorical covariates.
	SlotCategoricalCovariates ReservedSlot = "categorical_covariate_codes"
	// SlotContinuousCovariates holds copies of extra numeric covariates.
	SlotContinuousCovariates ReservedSlot = "continuous_covariates"
	// SlotPosteriorMean caches the per-observation posterior mean after
	// minification.
	SlotPosteriorMean ReservedSlot = "posterior_mean"
	// SlotPosteriorVariance caches the per-observation posterior variance
	// after minification.
	SlotPosteriorVariance ReservedSlot = "posterior_variance"
	// SlotObservedLibSize caches per-observation library sizes computed from
	// the full payload before it was emptied.
	SlotObservedLibSize ReservedSlot = "observed_lib_size"
)

var reservedSlots = map[ReservedSlot]struct{}{
	SlotPayloadSource:         {},
	SlotBatchCodes:            {},
	SlotLabelCodes:            {},
	SlotCategoricalCovariates: {},
	SlotContinuousCovariates:  {},
	SlotPosteriorMean:         {},
	SlotPosteriorVariance:     {},
	SlotObservedLibSize:       {},
}

// KnownReservedSlot reports whether s is part of the closed slot enumeration.
func KnownReservedSlot(s ReservedSlot) bool {
	_, ok := reservedSlots[s]
	return ok
}

// MinificationSlots are the slots that become authoritative once a dataset is
// minified.
func MinificationSlots() []ReservedSlot {
	return []ReservedSlot{SlotPosteriorMean, SlotPosteriorVariance, SlotObservedLibSize}
}

// MinificationKind marks how a dataset's payload was reduced. The zero value
// means the dataset still carries full observations.
type MinificationKind string

const (
	// MinificationNone is the initial state: full observations present.
	MinificationNone MinificationKind = ""
	// MinificationLatentPosterior replaces counts with cached posterior
	// distribution parameters.
	MinificationLatentPosterior MinificationKind = "latent_posterior_parameters"
)

// Minified reports whether the kind denotes a reduced payload.
func (k MinificationKind) Minified() bool { return k != MinificationNone }
