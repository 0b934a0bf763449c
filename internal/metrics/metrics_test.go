package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRunIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("brand", "success"))
	ObserveRun("brand", "success", 1.5)
	after := testutil.ToFloat64(RunsTotal.WithLabelValues("brand", "success"))

	if after != before+1 {
		t.Errorf("RunsTotal = %v, want %v", after, before+1)
	}
}

func TestObserveGuardrailEventSkipsZeroCount(t *testing.T) {
	before := testutil.ToFloat64(GuardrailEventsTotal.WithLabelValues("max_keywords_per_run", "orchestrator", "overflow"))
	ObserveGuardrailEvent("max_keywords_per_run", "orchestrator", "overflow", 0)
	after := testutil.ToFloat64(GuardrailEventsTotal.WithLabelValues("max_keywords_per_run", "orchestrator", "overflow"))

	if after != before {
		t.Errorf("expected no increment for zero count, before=%v after=%v", before, after)
	}
}

func TestObserveDuplicatesRemoved(t *testing.T) {
	before := testutil.ToFloat64(DuplicatesRemovedTotal.WithLabelValues("near_duplicate"))
	ObserveDuplicatesRemoved("near_duplicate", 3)
	after := testutil.ToFloat64(DuplicatesRemovedTotal.WithLabelValues("near_duplicate"))

	if after != before+3 {
		t.Errorf("DuplicatesRemovedTotal = %v, want %v", after, before+3)
	}
}

func TestLabelNormalizesAndTruncates(t *testing.T) {
	if got := label(""); got != "unknown" {
		t.Errorf("label(empty) = %q, want unknown", got)
	}
	if got := label("  Example.COM  "); got != "example.com" {
		t.Errorf("label(mixed case) = %q, want example.com", got)
	}
	if got := label(strings.Repeat("x", 200)); len(got) != 120 {
		t.Errorf("len(label(200 chars)) = %d, want 120", len(got))
	}
}
