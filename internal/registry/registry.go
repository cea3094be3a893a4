// Package registry holds the metrics that a scrape exposes and assembles them
// into a consistent snapshot on demand.
//
// A Registry combines two kinds of sources. Ordinary prometheus.Collector
// values are registered once and read on every scrape. OnDemandCollector
// values compute their families lazily, only when a scrape happens, and may
// fail; any failure fails the whole collection with a *ScrapeError.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"golang.org/x/sync/errgroup"
)

// Snapshot is the full set of metric families gathered by one collection,
// sorted by family name.
type Snapshot []*dto.MetricFamily

// OnDemandCollector contributes metric families at scrape time.
type OnDemandCollector interface {
	Collect(ctx context.Context) ([]*dto.MetricFamily, error)
}

// OnDemandFunc adapts a function to OnDemandCollector.
type OnDemandFunc func(ctx context.Context) ([]*dto.MetricFamily, error)

func (f OnDemandFunc) Collect(ctx context.Context) ([]*dto.MetricFamily, error) {
	return f(ctx)
}

// Registry is safe for concurrent use. Metric writers, registrations, and any
// number of simultaneous collections may interleave freely.
type Registry struct {
	prom *prometheus.Registry

	mu sync.RWMutex
	// onDemand is kept in registration order
	onDemand []OnDemandCollector
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{prom: prometheus.NewRegistry()}
}

// Register adds a regular collector.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.prom.Register(c)
}

// MustRegister adds regular collectors and panics on the first failure.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.prom.MustRegister(cs...)
}

// Unregister removes a regular collector.
func (r *Registry) Unregister(c prometheus.Collector) bool {
	return r.prom.Unregister(c)
}

// Registerer exposes the registry to code that builds metrics with promauto
// or other client_golang helpers.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.prom
}

// RegisterOnDemand appends on-demand collectors. Nil entries are ignored.
func (r *Registry) RegisterOnDemand(cs ...OnDemandCollector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cs {
		if c != nil {
			r.onDemand = append(r.onDemand, c)
		}
	}
}

// OnDemandCount returns the number of registered on-demand collectors.
func (r *Registry) OnDemandCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.onDemand)
}

func (r *Registry) onDemandCollectors() []OnDemandCollector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.onDemand)
}

// CollectAll runs every on-demand collector, then gathers the regular
// collectors, and returns the merged snapshot. Either the full snapshot or a
// *ScrapeError is returned, never both.
func (r *Registry) CollectAll(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, abandoned(err)
	}

	collectors := r.onDemandCollectors()
	results := make([][]*dto.MetricFamily, len(collectors))
	errs := make([]error, len(collectors))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range collectors {
		g.Go(func() error {
			fams, err := c.Collect(gctx)
			if err != nil {
				errs[i] = err
				return err
			}
			results[i] = fams
			return nil
		})
	}

	// Collectors that ignore ctx keep running after an abandon; they only
	// ever write to results and errs, which are dropped with this call.
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		return nil, abandoned(ctx.Err())
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, abandoned(ctxErr)
		}
		return nil, asScrapeError(firstFailure(errs, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, abandoned(err)
	}

	gatherers := prometheus.Gatherers{r.prom}
	for _, fams := range results {
		if len(fams) == 0 {
			continue
		}
		gatherers = append(gatherers, prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
			return fams, nil
		}))
	}

	mfs, err := gatherers.Gather()
	if err != nil {
		return nil, asScrapeError(err)
	}
	return Snapshot(mfs), nil
}

// Gather makes the registry usable as a prometheus.Gatherer, for promhttp or
// testutil.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	return r.CollectAll(context.Background())
}

// firstFailure picks the error of the earliest-registered collector that
// failed on its own, skipping collectors that were only cancelled because a
// sibling failed first.
func firstFailure(errs []error, fallback error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return fallback
}

func abandoned(err error) *ScrapeError {
	return &ScrapeError{Message: fmt.Sprintf("scrape abandoned: %v", err), Err: err}
}
