package metrics

import (
	"strings"
	"testing"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("expected count 3, got %d", snap.count)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("unexpected bucket counts %v", snap.counts)
	}
}

func TestRenderIncludesLabeledCounters(t *testing.T) {
	IncAnalysisStarted("seller-data")
	IncTaskPoll("pending")
	AddCreditsCharged(3)

	out := Render()
	for _, want := range []string{
		`analysis_started_total{type="seller-data"}`,
		`task_polls_total{state="pending"}`,
		"credits_charged_total",
		`provider_duration_ms_bucket{le="+Inf"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, out)
		}
	}
}
