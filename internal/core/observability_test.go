package core

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorderAccumulates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.ObserveOperation(OpSetup, 10*time.Millisecond, StatusOK)
	rec.ObserveOperation(OpSetup, 5*time.Millisecond, StatusOK)
	rec.ObserveOperation(OpValidate, 2*time.Millisecond, StatusError)

	snap := rec.Snapshot()
	if snap.DurationsMS[OpSetup] != 15 {
		t.Fatalf("setup duration total = %v, want 15", snap.DurationsMS[OpSetup])
	}
	if snap.Results[OpSetup][StatusOK] != 2 {
		t.Fatalf("setup ok count = %d, want 2", snap.Results[OpSetup][StatusOK])
	}
	if snap.Results[OpValidate][StatusError] != 1 {
		t.Fatalf("validate error count = %d, want 1", snap.Results[OpValidate][StatusError])
	}
	if rec.Name() == "" {
		t.Fatalf("generated expvar name must not be empty")
	}

	// Snapshots are copies.
	snap.DurationsMS[OpSetup] = 0
	if rec.Snapshot().DurationsMS[OpSetup] != 15 {
		t.Fatalf("snapshot mutation leaked into recorder")
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg)
	rec.ObserveOperation(OpMinify, 30*time.Millisecond, StatusOK)
	rec.ObserveOperation(OpMinify, 30*time.Millisecond, StatusOK)
	rec.ObserveOperation(OpReplay, 5*time.Millisecond, StatusError)

	if got := testutil.ToFloat64(rec.results.WithLabelValues(OpMinify, StatusOK)); got != 2 {
		t.Fatalf("minify ok counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rec.results.WithLabelValues(OpReplay, StatusError)); got != 1 {
		t.Fatalf("replay error counter = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(rec.durations); got == 0 {
		t.Fatalf("expected histogram series to be collected")
	}
}

func TestSlogLoggerWritesStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	logger.Info("replayed registration over stale derived state", "class", "scvi")
	logger.Debug("registered dataset", "manager", "m-1")

	out := buf.String()
	if !strings.Contains(out, "replayed registration over stale derived state") {
		t.Fatalf("info message missing from output: %q", out)
	}
	if !strings.Contains(out, "class=scvi") {
		t.Fatalf("structured attribute missing from output: %q", out)
	}
	if !strings.Contains(out, "registered dataset") {
		t.Fatalf("debug message missing from output: %q", out)
	}
}
