package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTriageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTriageMetrics(reg)

	m.ObserveCycle("crisis", "CRITICAL", 0.2)
	m.ObserveCycle("none", "LOW", 0.1)
	m.ObserveFallback("classifier", "unavailable")
	m.ObserveCrisis()
	m.ObserveCrisis()

	if got := testutil.CollectAndCount(m.cyclesTotal); got != 2 {
		t.Errorf("expected 2 cycle series, got %d", got)
	}
	if got := testutil.ToFloat64(m.crisisTotal); got != 2 {
		t.Errorf("expected 2 crisis signals, got %v", got)
	}
}

func TestNilReceiverSafe(t *testing.T) {
	var m *TriageMetrics
	m.ObserveCycle("none", "LOW", 0)
	m.ObserveFallback("reasoner", "timeout")
	m.ObserveCrisis()
}
