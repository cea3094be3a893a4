package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestScrapeObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewScrape(reg, DefaultNamespace)

	s.Observe(OutcomeSuccess, 0.1)
	s.Observe(OutcomeSuccess, 0.2)
	s.Observe(OutcomeFailure, 0.3)

	if got := testutil.ToFloat64(s.Total.WithLabelValues(OutcomeSuccess)); got != 2 {
		t.Errorf("success scrapes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.Total.WithLabelValues(OutcomeFailure)); got != 1 {
		t.Errorf("failure scrapes = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(s.Duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestScrapeObserveNil(t *testing.T) {
	var s *Scrape
	s.Observe(OutcomeSuccess, 1)
}

func TestNewHTTPNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg, "ns")
	h.RequestsTotal.WithLabelValues("/metrics", "200").Inc()
	h.RequestDuration.WithLabelValues("/metrics").Observe(0.01)
	h.InFlightRequests.Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	want := map[string]bool{
		"ns_in_flight_requests":       false,
		"ns_request_duration_seconds": false,
		"ns_requests_total":           false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing metric %q", name)
		}
	}
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewScrape(reg, DefaultNamespace)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	NewScrape(reg, DefaultNamespace)
}
