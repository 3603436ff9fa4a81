package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cellcore/internal/blob"
	"cellcore/internal/core"
	"cellcore/pkg/domain"
)

// Save writes the model's manifest and dataset under prefix in the artifact
// store, replacing any previous archive at that prefix.
func Save(ctx context.Context, store blob.Store, prefix string, m *core.Model) error {
	ds := m.Dataset()
	rs := ds.Reserved()
	manifest := Manifest{
		FormatVersion: FormatVersion,
		ModelClass:    m.Class().Name,
		Trained:       m.Trained(),
		Minification:  rs.Minification,
		Manager:       domain.RecordFromManager(m.Manager(), rs.Minification),
		ReservedKeys:  rs.Slots(),
		SavedAt:       time.Now().UTC(),
	}
	if err := WriteManifest(ctx, store, prefix, manifest); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	wire, err := encodeDataset(ds)
	if err != nil {
		return err
	}
	if err := putJSON(ctx, store, prefix, datasetKey, wire, nil); err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	return nil
}

// WriteManifest stores just the manifest under prefix. Tooling and tests use
// it to stage or repair archives without rewriting the dataset artifact.
func WriteManifest(ctx context.Context, store blob.Store, prefix string, manifest Manifest) error {
	return putJSON(ctx, store, prefix, manifestKey, manifest, map[string]string{"model_class": manifest.ModelClass})
}

// ReadManifest fetches and validates only the archive manifest.
func ReadManifest(ctx context.Context, store blob.Store, prefix string) (Manifest, error) {
	var manifest Manifest
	if err := getJSON(ctx, store, prefix, manifestKey, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	if manifest.FormatVersion != FormatVersion {
		return Manifest{}, fmt.Errorf("archive format version %d not supported (want %d)", manifest.FormatVersion, FormatVersion)
	}
	return manifest, nil
}

// CheckManifest verifies the manifest is internally consistent before any
// dataset bytes are decoded: every recorded reserved key must be known, and a
// minified archive must carry its cached posterior state. The returned error
// names the first offending key.
func CheckManifest(manifest Manifest) error {
	for _, key := range manifest.ReservedKeys {
		if !domain.KnownReservedSlot(key) {
			return domain.SchemaMismatchError{ModelClass: manifest.ModelClass, Key: string(key)}
		}
	}
	if manifest.Minification.Minified() {
		recorded := make(map[domain.ReservedSlot]bool, len(manifest.ReservedKeys))
		for _, key := range manifest.ReservedKeys {
			recorded[key] = true
		}
		for _, slot := range domain.MinificationSlots() {
			if !recorded[slot] {
				return domain.SchemaMismatchError{ModelClass: manifest.ModelClass, Key: string(slot)}
			}
		}
	}
	return nil
}

// CheckDataset decodes the archived dataset and cross-checks it against the
// manifest: identity stamps must match the recorded manager, the minification
// markers must agree, and every recorded reserved key must be populated. The
// returned error names the first offending key.
func CheckDataset(ctx context.Context, store blob.Store, prefix string, manifest Manifest) error {
	var wire datasetWire
	if err := getJSON(ctx, store, prefix, datasetKey, &wire); err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}
	ds, err := decodeDataset(wire)
	if err != nil {
		return err
	}
	rs := ds.Reserved()
	if rs.DatasetID != manifest.Manager.DatasetID {
		return fmt.Errorf("dataset identity %q does not match manifest %q", rs.DatasetID, manifest.Manager.DatasetID)
	}
	if rs.ManagerID != manifest.Manager.ID {
		return fmt.Errorf("manager stamp %q does not match manifest %q", rs.ManagerID, manifest.Manager.ID)
	}
	if rs.Minification != manifest.Minification {
		return fmt.Errorf("dataset minification %q does not match manifest %q", rs.Minification, manifest.Minification)
	}
	for _, key := range manifest.ReservedKeys {
		if !rs.Has(key) {
			return domain.SchemaMismatchError{ModelClass: manifest.ModelClass, Key: string(key)}
		}
	}
	return nil
}

// Load restores an archived model: the manifest is checked first, the class
// must support the archived minification state, and the decoded dataset must
// carry every reserved key the manifest records. The restored manager is
// adopted by the service without re-running registration.
func Load(ctx context.Context, store blob.Store, prefix string, class core.ModelClass, svc *core.Service, opts ...core.ModelOption) (*core.Model, error) {
	manifest, err := ReadManifest(ctx, store, prefix)
	if err != nil {
		return nil, err
	}
	if err := CheckManifest(manifest); err != nil {
		return nil, err
	}
	if manifest.ModelClass != class.Name {
		return nil, fmt.Errorf("archive was saved by class %q, cannot load as %q", manifest.ModelClass, class.Name)
	}
	if manifest.Minification.Minified() && !class.Capabilities.Minify {
		return nil, domain.UnsupportedMinifiedDataError{ModelClass: class.Name, Kind: manifest.Minification}
	}

	var wire datasetWire
	if err := getJSON(ctx, store, prefix, datasetKey, &wire); err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	ds, err := decodeDataset(wire)
	if err != nil {
		return nil, err
	}
	rs := ds.Reserved()
	for _, key := range manifest.ReservedKeys {
		if !rs.Has(key) {
			return nil, domain.SchemaMismatchError{ModelClass: class.Name, Key: string(key)}
		}
	}

	mgr, err := manifest.Manager.Manager()
	if err != nil {
		return nil, err
	}
	return svc.AdoptModel(ctx, class, ds, mgr, manifest.Trained, opts...)
}

func archiveKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func putJSON(ctx context.Context, store blob.Store, prefix, name string, v any, metadata map[string]string) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = store.Put(ctx, archiveKey(prefix, name), bytes.NewReader(raw), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    metadata,
	})
	return err
}

func getJSON(ctx context.Context, store blob.Store, prefix, name string, v any) error {
	_, rc, err := store.Get(ctx, archiveKey(prefix, name))
	if err != nil {
		return err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
