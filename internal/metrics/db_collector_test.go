package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDBPoolCollectorExposesPoolStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewDBPoolCollector(func() (total, idle, acquired int32, acquireWait time.Duration) {
		return 10, 7, 3, 1500 * time.Millisecond
	}))

	fams, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	got := map[string]float64{}
	for _, f := range fams {
		m := f.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			got[f.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			got[f.GetName()] = m.GetCounter().GetValue()
		}
	}

	want := map[string]float64{
		"courtside_db_pool_total_conns":                10,
		"courtside_db_pool_idle_conns":                 7,
		"courtside_db_pool_acquired_conns":             3,
		"courtside_db_pool_acquire_wait_seconds_total": 1.5,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %v, want %v", name, got[name], v)
		}
	}
}
