package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ripta/hotscrape/internal/registry"
)

// Collector exposes lifecycle state as on-demand gauges, read at scrape time.
func (lc *Lifecycle) Collector(namespace string) registry.OnDemandCollector {
	gauges := []*registry.FuncCollector{
		registry.NewFuncCollector(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready",
			Help:      "Whether the server is accepting traffic (0 or 1).",
		}, func() (float64, error) {
			if lc.IsReady() {
				return 1, nil
			}
			return 0, nil
		}),
		registry.NewFuncCollector(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_requests",
			Help:      "Requests the lifecycle is waiting on before shutdown can complete.",
		}, func() (float64, error) {
			return float64(lc.InFlightRequests()), nil
		}),
	}

	return registry.OnDemandFunc(func(ctx context.Context) ([]*dto.MetricFamily, error) {
		var out []*dto.MetricFamily
		for _, g := range gauges {
			fams, err := g.Collect(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, fams...)
		}
		return out, nil
	})
}
