package domain

import "github.com/google/uuid"

// DatasetID uniquely identifies a dataset instance across registrations.
// Stamped onto the dataset's reserved side-table the first time it is
// registered and persisted with it thereafter.
type DatasetID string

// ManagerID identifies one registration event. A dataset's stamped manager
// identifier tells whether its derived columns are still the ones a given
// manager produced.
type ManagerID string

// ModelID identifies a constructed model instance within a process.
type ModelID string

// NewDatasetID returns a fresh dataset identity.
func NewDatasetID() DatasetID { return DatasetID(uuid.NewString()) }

// NewManagerID returns a fresh manager identity.
func NewManagerID() ManagerID { return ManagerID(uuid.NewString()) }

// NewModelID returns a fresh model-instance identity.
func NewModelID() ModelID { return ModelID(uuid.NewString()) }
