package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	registry, err := BuildRegistry([]FieldDescriptor{
		{Name: FieldNameCounts, Kind: FieldLayer, Required: true},
		{Name: FieldNameBatch, Kind: FieldCategorical, Source: "batch", Required: true},
	}, SetupArgs{BatchKey: "batch"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return &Manager{
		ID:         NewManagerID(),
		ModelClass: "scvi",
		DatasetID:  NewDatasetID(),
		Registry:   registry,
		Summaries: map[string]FieldSummary{
			FieldNameBatch: {
				Kind:         FieldCategorical,
				Observations: 400,
				Dimension:    1,
				Categories:   []string{"batch_0", "batch_1"},
				Codes:        map[string]int{"batch_0": 0, "batch_1": 1},
			},
		},
		Provenance: map[ReservedSlot]string{SlotBatchCodes: FieldNameBatch},
		CreatedAt:  time.Now().UTC(),
	}
}

func TestManagerCloneIsDeep(t *testing.T) {
	m := testManager(t)
	cp := m.Clone()
	cp.Summaries[FieldNameBatch].Codes["batch_2"] = 2
	cp.Provenance[SlotLabelCodes] = FieldNameLabels
	if _, ok := m.Summaries[FieldNameBatch].Codes["batch_2"]; ok {
		t.Fatalf("clone shares code map with original")
	}
	if _, ok := m.Provenance[SlotLabelCodes]; ok {
		t.Fatalf("clone shares provenance map with original")
	}
}

func TestManagerSummaryCopies(t *testing.T) {
	m := testManager(t)
	s, ok := m.Summary(FieldNameBatch)
	if !ok {
		t.Fatalf("expected summary for batch")
	}
	s.Codes["batch_0"] = 99
	if m.Summaries[FieldNameBatch].Codes["batch_0"] != 0 {
		t.Fatalf("summary mutation leaked into manager")
	}
	if _, ok := m.Summary("absent"); ok {
		t.Fatalf("unexpected summary for absent field")
	}
}

func TestManagerRecordRoundTrip(t *testing.T) {
	m := testManager(t)
	rec := RecordFromManager(m, MinificationLatentPosterior)
	if rec.Minification != MinificationLatentPosterior {
		t.Fatalf("record lost minification marker")
	}
	back, err := rec.Manager()
	if err != nil {
		t.Fatalf("rebuild manager: %v", err)
	}
	if back.ID != m.ID || back.DatasetID != m.DatasetID || back.ModelClass != m.ModelClass {
		t.Fatalf("identity mismatch after round trip: %+v vs %+v", back, m)
	}
	if back.Registry.Len() != m.Registry.Len() {
		t.Fatalf("registry size mismatch: %d vs %d", back.Registry.Len(), m.Registry.Len())
	}
	if back.Summaries[FieldNameBatch].Codes["batch_1"] != 1 {
		t.Fatalf("category codes lost in round trip")
	}
	if back.Provenance[SlotBatchCodes] != FieldNameBatch {
		t.Fatalf("provenance lost in round trip")
	}
}

func TestErrorTaxonomyMessagesNameOffenders(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{MissingRequiredFieldError{Field: FieldNameBatch, Source: "batch"}, `"batch"`},
		{UnseenCategoryError{Field: FieldNameBatch, Source: "batch", Category: "batch_9"}, `"batch_9"`},
		{UnregisteredDatasetError{ModelClass: "scvi", Dataset: "ds-1"}, "ds-1"},
		{UnsupportedMinifiedDataError{ModelClass: "linear", Kind: MinificationLatentPosterior}, string(MinificationLatentPosterior)},
		{SchemaMismatchError{ModelClass: "linear", Key: string(SlotPosteriorMean)}, string(SlotPosteriorMean)},
		{RawDataRequiredError{Operation: "reconstruction_error", Kind: MinificationLatentPosterior}, "reconstruction_error"},
	}
	for _, tc := range cases {
		if !strings.Contains(tc.err.Error(), tc.want) {
			t.Fatalf("error %q does not name %q", tc.err, tc.want)
		}
	}
	var unseen UnseenCategoryError
	wrapped := error(UnseenCategoryError{Field: "batch", Category: "x"})
	if !errors.As(wrapped, &unseen) {
		t.Fatalf("errors.As failed for UnseenCategoryError")
	}
}
