package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledDropsWrites(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)
	m.Add(MetricSessionsSwept, 10)

	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("expected disabled metrics to drop writes")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Fatal("expected empty snapshot when disabled")
	}
}

func TestMetricsCountersConcurrent(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricLoginFailure)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricLoginFailure); got != 8000 {
		t.Fatalf("expected 8000, got %d", got)
	}
	if got := m.Snapshot().Counters[MetricLoginFailure]; got != 8000 {
		t.Fatalf("snapshot mismatch: %d", got)
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricCheckSessionLatency, 2*time.Millisecond)
	m.Observe(MetricCheckSessionLatency, 30*time.Millisecond)
	m.Observe(MetricCheckSessionLatency, time.Second)

	buckets := m.Snapshot().Histograms[MetricCheckSessionLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	if buckets[0] != 1 || buckets[2] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected bucket distribution: %v", buckets)
	}

	// Only the check-session histogram exists.
	m.Observe(MetricLoginSuccess, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricLoginSuccess]; ok {
		t.Fatal("unexpected histogram for counter-only metric")
	}
}
