// Package archive persists trained model state to an artifact store and
// restores it in a later session without re-running registration. An archive
// is two artifacts under a key prefix: a manifest describing the registration
// and a JSON-encoded dataset carrying the reserved side-table.
package archive

import (
	"time"

	"cellcore/pkg/domain"
)

// FormatVersion is bumped whenever the wire layout changes incompatibly.
const FormatVersion = 1

const (
	manifestKey = "manifest.json"
	datasetKey  = "dataset.json"
)

// Manifest records everything needed to validate and restore an archived
// model before the dataset payload is decoded.
type Manifest struct {
	FormatVersion int                     `json:"format_version"`
	ModelClass    string                  `json:"model_class"`
	Trained       bool                    `json:"trained"`
	Minification  domain.MinificationKind `json:"minification,omitempty"`
	Manager       domain.ManagerRecord    `json:"manager"`
	ReservedKeys  []domain.ReservedSlot   `json:"reserved_keys"`
	SavedAt       time.Time               `json:"saved_at"`
}
