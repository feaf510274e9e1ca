package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	analysisStarted   = newLabeledCounter()
	analysisCompleted = newLabeledCounter()
	analysisFailed    = newLabeledCounter()
	taskPolls         = newLabeledCounter()

	creditsCharged  atomic.Uint64
	creditsReleased atomic.Uint64

	providerDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncAnalysisStarted increments the started counter for an analysis type.
func IncAnalysisStarted(analysisType string) {
	analysisStarted.Inc(analysisType)
}

// IncAnalysisCompleted increments the completed counter for an analysis type.
func IncAnalysisCompleted(analysisType string) {
	analysisCompleted.Inc(analysisType)
}

// IncAnalysisFailed increments the failed counter for an analysis type.
func IncAnalysisFailed(analysisType string) {
	analysisFailed.Inc(analysisType)
}

// IncTaskPoll counts a status poll by the provider state it observed.
func IncTaskPoll(state string) {
	taskPolls.Inc(state)
}

// AddCreditsCharged records captured credits.
func AddCreditsCharged(n int) {
	if n > 0 {
		creditsCharged.Add(uint64(n))
	}
}

// AddCreditsReleased records credits returned after a failed analysis.
func AddCreditsReleased(n int) {
	if n > 0 {
		creditsReleased.Add(uint64(n))
	}
}

// ObserveProviderDurationMs records a provider round trip in milliseconds.
func ObserveProviderDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	providerDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeLabeledCounter(&buf, "analysis_started_total", "Total analyses started", "type", analysisStarted.Snapshot())
	writeLabeledCounter(&buf, "analysis_completed_total", "Total analyses completed", "type", analysisCompleted.Snapshot())
	writeLabeledCounter(&buf, "analysis_failed_total", "Total analyses failed", "type", analysisFailed.Snapshot())
	writeLabeledCounter(&buf, "task_polls_total", "Task status polls by provider state", "state", taskPolls.Snapshot())
	writeCounter(&buf, "credits_charged_total", "Credits captured for completed analyses", creditsCharged.Load())
	writeCounter(&buf, "credits_released_total", "Credits released after failed analyses", creditsReleased.Load())
	writeHistogram(&buf, "provider_duration_ms", "Provider call duration in milliseconds", providerDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	l.values[label]++
	l.mu.Unlock()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value into the first bucket whose bound it does not exceed.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
