package core

import (
	"context"
	"errors"
	"testing"

	"cellcore/pkg/dataset"
	"cellcore/pkg/domain"
)

func TestSetupAssignsFirstSeenCodes(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	class := NewModelClass("scvi", Capabilities{})
	ds := newCountsDataset(t, 6, 3, []string{"b1", "b0", "b1", "b1", "b0", "b2"})

	mgr, err := svc.Setup(ctx, class, domain.SetupArgs{BatchKey: "batch_col"}, ds)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	rs := ds.Reserved()
	want := []int{0, 1, 0, 0, 1, 2}
	for i, code := range rs.BatchCodes {
		if code != want[i] {
			t.Fatalf("batch codes %v, want %v", rs.BatchCodes, want)
		}
	}
	summary, ok := mgr.Summary(domain.FieldNameBatch)
	if !ok {
		t.Fatalf("missing batch summary")
	}
	if len(summary.Categories) != 3 || summary.Categories[0] != "b1" {
		t.Fatalf("categories should be in first-seen order: %v", summary.Categories)
	}
	if summary.Observations != 6 {
		t.Fatalf("summary observations = %d, want 6", summary.Observations)
	}
	if mgr.Provenance[domain.SlotBatchCodes] != domain.FieldNameBatch {
		t.Fatalf("batch slot provenance missing: %+v", mgr.Provenance)
	}
}

func TestSetupStampsIdentity(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	class := NewModelClass("scvi", Capabilities{})
	ds := newCountsDataset(t, 3, 2, nil)
	mgr, err := svc.Setup(ctx, class, domain.SetupArgs{}, ds)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	rs := ds.Reserved()
	if rs.DatasetID == "" || rs.ManagerID == "" {
		t.Fatalf("setup must stamp identity, got %q / %q", rs.DatasetID, rs.ManagerID)
	}
	if rs.DatasetID != mgr.DatasetID || rs.ManagerID != mgr.ID {
		t.Fatalf("stamps disagree with manager: %+v vs %s/%s", rs, mgr.DatasetID, mgr.ID)
	}

	// A second registration keeps the dataset identity but mints a new manager.
	mgr2, err := svc.Setup(ctx, class, domain.SetupArgs{}, ds)
	if err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if mgr2.DatasetID != mgr.DatasetID {
		t.Fatalf("dataset identity changed across re-registration")
	}
	if mgr2.ID == mgr.ID {
		t.Fatalf("re-registration must mint a fresh manager")
	}
}

func TestSetupMissingRequiredField(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	class := NewModelClass("scvi", Capabilities{})

	cases := []struct {
		name string
		args domain.SetupArgs
	}{
		{"batch", domain.SetupArgs{BatchKey: "absent_batch"}},
		{"labels", domain.SetupArgs{LabelsKey: "absent_labels"}},
		{"joint categorical", domain.SetupArgs{CategoricalCovariateKeys: []string{"absent_cov"}}},
		{"joint numerical", domain.SetupArgs{ContinuousCovariateKeys: []string{"absent_num"}}},
		{"layer", domain.SetupArgs{LayerName: "absent_layer"}},
	}
	for _, tc := range cases {
		ds := newCountsDataset(t, 3, 2, nil)
		_, err := svc.Setup(ctx, class, tc.args, ds)
		var missing domain.MissingRequiredFieldError
		if !errors.As(err, &missing) {
			t.Fatalf("%s: expected MissingRequiredFieldError, got %v", tc.name, err)
		}
		if missing.Source == "" {
			t.Fatalf("%s: error should name the missing source", tc.name)
		}
	}
}

func TestSetupBindsLayerPayload(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	class := NewModelClass("scvi", Capabilities{})
	ds := newCountsDataset(t, 3, 2, nil)
	raw, err := dataset.NewDense(3, 2, []float64{9, 9, 9, 9, 9, 9})
	if err != nil {
		t.Fatalf("new dense: %v", err)
	}
	if err := ds.SetLayer("raw", raw); err != nil {
		t.Fatalf("set layer: %v", err)
	}

	if _, err := svc.Setup(ctx, class, domain.SetupArgs{LayerName: "raw"}, ds); err != nil {
		t.Fatalf("setup: %v", err)
	}
	rs := ds.Reserved()
	if !rs.PayloadBound || rs.PayloadSource != "raw" {
		t.Fatalf("payload binding not recorded: %+v", rs)
	}
	payload, err := ds.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.At(0, 0) != 9 {
		t.Fatalf("payload should resolve the bound layer")
	}
}

func TestSetupJointFields(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	class := NewModelClass("scvi", Capabilities{})
	ds := newCountsDataset(t, 4, 2, nil)
	if err := ds.SetStringColumn("donor", []string{"d1", "d2", "d1", "d2"}); err != nil {
		t.Fatalf("set donor: %v", err)
	}
	if err := ds.SetStringColumn("site", []string{"s1", "s1", "s2", "s2"}); err != nil {
		t.Fatalf("set site: %v", err)
	}
	if err := ds.SetNumericColumn("percent_mito", []float64{0.1, 0.2, 0.3, 0.4}); err != nil {
		t.Fatalf("set percent_mito: %v", err)
	}

	args := domain.SetupArgs{
		CategoricalCovariateKeys: []string{"donor", "site"},
		ContinuousCovariateKeys:  []string{"percent_mito"},
	}
	mgr, err := svc.Setup(ctx, class, args, ds)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	rs := ds.Reserved()
	if len(rs.CategoricalCovariateCodes["donor"]) != 4 || len(rs.CategoricalCovariateCodes["site"]) != 4 {
		t.Fatalf("joint categorical codes missing: %+v", rs.CategoricalCovariateCodes)
	}
	if rs.CategoricalCovariateCodes["site"][2] != 1 {
		t.Fatalf("site s2 should encode to 1, got %v", rs.CategoricalCovariateCodes["site"])
	}
	if len(rs.ContinuousCovariates["percent_mito"]) != 4 {
		t.Fatalf("continuous covariate missing: %+v", rs.ContinuousCovariates)
	}

	summary, ok := mgr.Summary(domain.FieldNameCategoricalCovs)
	if !ok {
		t.Fatalf("missing joint categorical summary")
	}
	if summary.Dimension != 2 {
		t.Fatalf("joint categorical dimension = %d, want 2", summary.Dimension)
	}
	if got := summary.PerSource["donor"]; len(got) != 2 || got[0] != "d1" {
		t.Fatalf("per-source categories wrong: %v", got)
	}
}

func TestSetupReplacesDerivedStateFromPreviousRegistration(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	class := NewModelClass("scvi", Capabilities{})
	ds := newCountsDataset(t, 4, 2, alternatingBatches(4, "b0", "b1"))
	if _, err := svc.Setup(ctx, class, domain.SetupArgs{BatchKey: "batch_col"}, ds); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	if ds.Reserved().BatchCodes == nil {
		t.Fatalf("first setup should write batch codes")
	}

	// Re-registering without a batch key wipes the stale encoding.
	if _, err := svc.Setup(ctx, class, domain.SetupArgs{}, ds); err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if ds.Reserved().BatchCodes != nil {
		t.Fatalf("stale batch codes survived re-registration")
	}
}
