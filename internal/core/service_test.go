package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"cellcore/internal/infra/persistence/memory"
	"cellcore/pkg/dataset"
	"cellcore/pkg/domain"
)

// captureLogger records log calls for assertions.
type captureLogger struct {
	mu      sync.Mutex
	entries []capturedEntry
}

type capturedEntry struct {
	level string
	msg   string
	args  []any
}

func (l *captureLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, capturedEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("error", msg, args...) }

func (l *captureLogger) hasMessage(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg == msg {
			return true
		}
	}
	return false
}

func newCountsDataset(t *testing.T, obs, vars int, batches []string) *dataset.Dataset {
	t.Helper()
	values := make([]float64, obs*vars)
	for i := range values {
		values[i] = float64(i%7) + 1
	}
	x, err := dataset.NewDense(obs, vars, values)
	if err != nil {
		t.Fatalf("new dense: %v", err)
	}
	ds, err := dataset.New(x)
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	if batches != nil {
		if len(batches) != obs {
			t.Fatalf("bad test setup: %d batch values for %d observations", len(batches), obs)
		}
		if err := ds.SetStringColumn("batch_col", batches); err != nil {
			t.Fatalf("set batch column: %v", err)
		}
	}
	return ds
}

func alternatingBatches(obs int, names ...string) []string {
	out := make([]string, obs)
	for i := range out {
		out[i] = names[i%len(names)]
	}
	return out
}

func mustService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceHydratesFromPersistentStore(t *testing.T) {
	ctx := context.Background()
	persistent := memory.NewStore()
	class := NewModelClass("scvi", Capabilities{Train: true, Query: true})
	ds := newCountsDataset(t, 6, 4, alternatingBatches(6, "b0", "b1"))

	first := mustService(t, WithPersistentStore(persistent))
	mgr, err := first.Setup(ctx, class, domain.SetupArgs{BatchKey: "batch_col"}, ds)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	logger := &captureLogger{}
	second := mustService(t, WithPersistentStore(persistent), WithLogger(logger))
	got, err := second.Store().GetFromRegistry(class.Name, mgr.DatasetID)
	if err != nil {
		t.Fatalf("hydrated store lookup: %v", err)
	}
	if got.ID != mgr.ID {
		t.Fatalf("hydrated manager %s, want %s", got.ID, mgr.ID)
	}
	if !logger.hasMessage("hydrated manager store") {
		t.Fatalf("expected hydration log entry, got %+v", logger.entries)
	}
}

func TestServiceOptionsIgnoreNil(t *testing.T) {
	svc := mustService(t, WithLogger(nil), WithMetrics(nil), WithManagerStore(nil), WithClock(nil))
	if svc.Store() == nil {
		t.Fatalf("store should be defaulted")
	}
}

func TestWithClockStampsManagerCreation(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := mustService(t, WithClock(func() time.Time { return fixed }))
	class := NewModelClass("scvi", Capabilities{})
	mgr, err := svc.Setup(ctx, class, domain.SetupArgs{}, newCountsDataset(t, 3, 2, nil))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !mgr.CreatedAt.Equal(fixed) {
		t.Fatalf("manager created at %v, want %v", mgr.CreatedAt, fixed)
	}
}

func TestSetupRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	rec := NewExpvarMetricsRecorder("")
	svc := mustService(t, WithMetrics(rec))
	class := NewModelClass("scvi", Capabilities{})
	if _, err := svc.Setup(ctx, class, domain.SetupArgs{}, newCountsDataset(t, 3, 2, nil)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	snap := rec.Snapshot()
	if snap.Results[OpSetup][StatusOK] != 1 {
		t.Fatalf("expected one ok setup observation, got %+v", snap.Results)
	}

	// A failing setup records an error status.
	bad := NewModelClass("scvi", Capabilities{})
	if _, err := svc.Setup(ctx, bad, domain.SetupArgs{BatchKey: "absent"}, newCountsDataset(t, 3, 2, nil)); err == nil {
		t.Fatalf("expected setup failure")
	}
	snap = rec.Snapshot()
	if snap.Results[OpSetup][StatusError] != 1 {
		t.Fatalf("expected one error setup observation, got %+v", snap.Results)
	}
}

func TestNewModelRequiresRegistration(t *testing.T) {
	ctx := context.Background()
	svc := mustService(t)
	class := NewModelClass("scvi", Capabilities{Train: true})
	ds := newCountsDataset(t, 3, 2, nil)
	if _, err := svc.NewModel(ctx, class, ds); err == nil {
		t.Fatalf("expected error for unregistered dataset")
	}
	if _, err := svc.Setup(ctx, class, domain.SetupArgs{}, ds); err != nil {
		t.Fatalf("setup: %v", err)
	}
	m, err := svc.NewModel(ctx, class, ds)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if m.ID() == "" {
		t.Fatalf("model must have an identity")
	}
	if _, ok := svc.Store().InstanceManager(m.ID(), ds.Reserved().DatasetID); !ok {
		t.Fatalf("instance association missing")
	}
}
