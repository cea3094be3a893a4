package registry

import (
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Settings selects the registry a scrape endpoint reads from.
type Settings struct {
	// Registry is an explicit registry, assumed to be configured by its
	// owner. When nil, the process-wide default registry is used.
	Registry *Registry
	// OnDemandCollectors are registered against the default registry the
	// first time it is resolved. When nil, DefaultOnDemandCollectors is used.
	OnDemandCollectors []OnDemandCollector
}

// defaultState holds the process-wide default registry and remembers whether
// its on-demand collectors have been registered.
type defaultState struct {
	once         sync.Once
	reg          *Registry
	registerOnce sync.Once
}

func (d *defaultState) registry() *Registry {
	d.once.Do(func() {
		d.reg = New()
	})
	return d.reg
}

var std defaultState

// Default returns the process-wide default registry.
func Default() *Registry {
	return std.registry()
}

// DefaultOnDemandCollectors is what the default registry gets when no
// collectors are configured: Go runtime and process statistics.
func DefaultOnDemandCollectors() []OnDemandCollector {
	return []OnDemandCollector{NewRuntimeCollector("", clockwork.NewRealClock())}
}

// Resolve returns the registry to scrape. Supplying both a custom registry
// and on-demand collectors is an error.
func (s Settings) Resolve() (*Registry, error) {
	return s.resolve(&std)
}

func (s Settings) resolve(d *defaultState) (*Registry, error) {
	def := d.registry()
	if s.Registry != nil && s.Registry != def {
		if s.OnDemandCollectors != nil {
			return nil, ErrConflictingSettings
		}
		return s.Registry, nil
	}

	d.registerOnce.Do(func() {
		cs := s.OnDemandCollectors
		if cs == nil {
			cs = DefaultOnDemandCollectors()
		}
		def.RegisterOnDemand(cs...)
		slog.Debug("registered on-demand collectors on default registry", "count", len(cs))
	})

	return def, nil
}
