package registry

import (
	"context"
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/protobuf/proto"
)

// FuncCollector is a gauge whose value is computed at scrape time. Unlike
// prometheus.GaugeFunc, the function may fail, which fails the scrape.
type FuncCollector struct {
	name   string
	help   string
	labels prometheus.Labels
	fn     func() (float64, error)
}

// NewFuncCollector creates an on-demand gauge from opts and fn.
func NewFuncCollector(opts prometheus.GaugeOpts, fn func() (float64, error)) *FuncCollector {
	return &FuncCollector{
		name:   prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name),
		help:   opts.Help,
		labels: opts.ConstLabels,
		fn:     fn,
	}
}

// Collect calls the value function and returns its error unchanged, so the
// scraper sees the function's own message.
func (c *FuncCollector) Collect(ctx context.Context) ([]*dto.MetricFamily, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, err := c.fn()
	if err != nil {
		return nil, err
	}

	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for _, name := range slices.Sorted(maps.Keys(c.labels)) {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(name),
			Value: proto.String(c.labels[name]),
		})
	}

	return []*dto.MetricFamily{{
		Name:   proto.String(c.name),
		Help:   proto.String(c.help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{m},
	}}, nil
}
