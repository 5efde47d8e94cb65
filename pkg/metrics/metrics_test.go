package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_counter", "Test counter")

	if c.Value() != 0 {
		t.Errorf("expected initial value 0, got %d", c.Value())
	}

	c.Inc()
	if c.Value() != 1 {
		t.Errorf("expected value 1 after Inc, got %d", c.Value())
	}

	c.Add(5)
	if c.Value() != 6 {
		t.Errorf("expected value 6 after Add(5), got %d", c.Value())
	}

	if c.Name() != "test_counter" {
		t.Errorf("expected name 'test_counter', got '%s'", c.Name())
	}

	if c.Type() != TypeCounter {
		t.Errorf("expected type counter, got %s", c.Type())
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "Test gauge")

	g.Set(100)
	g.Inc()
	g.Dec()
	g.Add(-50)
	if g.Value() != 50 {
		t.Errorf("expected value 50, got %d", g.Value())
	}

	g.SetUint64(7)
	if g.Value() != 7 {
		t.Errorf("expected value 7, got %d", g.Value())
	}

	if g.Type() != TypeGauge {
		t.Errorf("expected type gauge, got %s", g.Type())
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("test_histogram", "Test histogram", []float64{5.0, 0.1, 1.0, 0.5})

	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(0.7)
	h.Observe(2.0)
	h.Observe(10.0)

	snap := h.Snapshot()

	if snap.Count != 5 {
		t.Errorf("expected count 5, got %d", snap.Count)
	}

	expectedSum := 0.05 + 0.3 + 0.7 + 2.0 + 10.0
	if snap.Sum != expectedSum {
		t.Errorf("expected sum %.2f, got %.2f", expectedSum, snap.Sum)
	}

	// Buckets are sorted and cumulative.
	expectedBounds := []float64{0.1, 0.5, 1.0, 5.0}
	expectedCounts := []uint64{1, 2, 3, 4}
	for i := range expectedCounts {
		if snap.Buckets[i].UpperBound != expectedBounds[i] {
			t.Errorf("bucket %d: expected bound %g, got %g", i, expectedBounds[i], snap.Buckets[i].UpperBound)
		}
		if snap.Buckets[i].Count != expectedCounts[i] {
			t.Errorf("bucket %d: expected count %d, got %d", i, expectedCounts[i], snap.Buckets[i].Count)
		}
	}
}

func TestHistogramObserveDuration(t *testing.T) {
	h := NewHistogram("test_duration", "Test duration", nil)

	d := 100 * time.Millisecond
	h.ObserveDuration(d)

	snap := h.Snapshot()
	if snap.Count != 1 {
		t.Errorf("expected count 1, got %d", snap.Count)
	}
	if snap.Sum != d.Seconds() {
		t.Errorf("expected sum %.3f, got %.3f", d.Seconds(), snap.Sum)
	}
}

func TestRecordTransaction(t *testing.T) {
	m := NewMetrics()

	m.RecordTransaction(true, 2, 3000, time.Millisecond)
	m.RecordTransaction(false, 1, 800, time.Millisecond)

	if m.TransactionsProcessed.Value() != 2 {
		t.Errorf("expected 2 processed, got %d", m.TransactionsProcessed.Value())
	}
	if m.TransactionsFailed.Value() != 1 {
		t.Errorf("expected 1 failed, got %d", m.TransactionsFailed.Value())
	}
	if m.InstructionsExecuted.Value() != 3 {
		t.Errorf("expected 3 instructions, got %d", m.InstructionsExecuted.Value())
	}
	if m.ComputeUnitsConsumed.Value() != 3800 {
		t.Errorf("expected 3800 compute units, got %d", m.ComputeUnitsConsumed.Value())
	}
	if got := m.ComputeUnits.Snapshot().Count; got != 2 {
		t.Errorf("expected 2 compute unit observations, got %d", got)
	}

	m.RecordCommit(3, 10)
	if m.AccountsCommitted.Value() != 3 || m.AccountsCount.Value() != 10 {
		t.Errorf("unexpected commit metrics: committed %d count %d",
			m.AccountsCommitted.Value(), m.AccountsCount.Value())
	}
}

func TestFormat(t *testing.T) {
	m := NewMetrics()
	m.RecordTransaction(true, 1, 1200, 2*time.Millisecond)

	output := m.Format()

	for _, want := range []string{
		"# HELP msgbuf_transactions_processed_total",
		"# TYPE msgbuf_transactions_processed_total counter",
		"msgbuf_transactions_processed_total 1\n",
		"msgbuf_transaction_compute_units_bucket{le=\"1000\"} 0\n",
		"msgbuf_transaction_compute_units_bucket{le=\"2500\"} 1\n",
		"msgbuf_transaction_compute_units_bucket{le=\"+Inf\"} 1\n",
		"msgbuf_transaction_compute_units_count 1\n",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("format output missing %q", want)
		}
	}

	if m.Get("msgbuf_accounts_count") == nil {
		t.Error("accounts gauge not registered")
	}
	if len(m.All()) != 9 {
		t.Errorf("expected 9 registered metrics, got %d", len(m.All()))
	}
}

func TestDefaultMetrics(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics should return the same instance")
	}
}
