package registry

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

// RuntimeCollector reports Go runtime and process statistics, read fresh on
// every scrape.
type RuntimeCollector struct {
	reg *prometheus.Registry
}

// NewRuntimeCollector builds the runtime collector. The process metrics and
// the uptime gauge are prefixed with namespace when it is non-empty; uptime
// is measured on clock from the moment of construction.
func NewRuntimeCollector(namespace string, clock clockwork.Clock) *RuntimeCollector {
	start := clock.Now()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process",
			Name:      "uptime_seconds",
			Help:      "Seconds since the runtime collector was created.",
		}, func() float64 {
			return clock.Since(start).Seconds()
		}),
	)

	return &RuntimeCollector{reg: reg}
}

func (c *RuntimeCollector) Collect(ctx context.Context) ([]*dto.MetricFamily, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.reg.Gather()
}
