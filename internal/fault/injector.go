// Package fault makes scrapes fail on purpose, so scrapers' handling of a
// 503 from the metrics endpoint can be exercised against the real code path.
package fault

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	dto "github.com/prometheus/client_model/go"

	"github.com/ripta/hotscrape/internal/registry"
)

// DefaultMessage is the failure message used when none is configured.
const DefaultMessage = "injected scrape failure"

// Config holds the scrape fault configuration.
type Config struct {
	// Rate is the probability of failing a scrape (0.0 to 1.0)
	Rate float64
	// Message is returned to the scraper as the 503 body
	Message string
	// ExpiresAt is when this configuration expires (zero means never)
	ExpiresAt time.Time
}

// IsExpired reports whether the configuration has expired at now.
func (c *Config) IsExpired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return now.After(c.ExpiresAt)
}

// ShouldInject returns true if a fault should fire based on the rate.
func (c *Config) ShouldInject() bool {
	if c.Rate <= 0 {
		return false
	}
	if c.Rate >= 1 {
		return true
	}
	return rand.Float64() < c.Rate
}

// Injector is an on-demand collector that contributes no metrics and fails
// the scrape when its configured fault fires.
type Injector struct {
	clock clockwork.Clock

	mu  sync.RWMutex
	cfg *Config
}

// NewInjector creates an injector with no fault configured.
func NewInjector() *Injector {
	return NewInjectorWithClock(clockwork.NewRealClock())
}

// NewInjectorWithClock creates an injector with a custom clock for testing.
func NewInjectorWithClock(clock clockwork.Clock) *Injector {
	return &Injector{clock: clock}
}

// Clock returns the clock expirations are measured against.
func (i *Injector) Clock() clockwork.Clock {
	return i.clock
}

// Set replaces the fault configuration. A nil config or a non-positive rate
// clears it.
func (i *Injector) Set(cfg *Config) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if cfg == nil || cfg.Rate <= 0 {
		i.cfg = nil
		return
	}
	c := *cfg
	i.cfg = &c
}

// Get returns a copy of the active configuration, or nil if none is set or
// it has expired.
func (i *Injector) Get() *Config {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.cfg == nil || i.cfg.IsExpired(i.clock.Now()) {
		return nil
	}
	c := *i.cfg
	return &c
}

// Reset clears the fault configuration.
func (i *Injector) Reset() {
	i.Set(nil)
}

func (i *Injector) Collect(ctx context.Context) ([]*dto.MetricFamily, error) {
	cfg := i.Get()
	if cfg == nil || !cfg.ShouldInject() {
		return nil, nil
	}

	msg := cfg.Message
	if msg == "" {
		msg = DefaultMessage
	}
	slog.Info("injecting scrape failure", "rate", cfg.Rate, "message", msg)
	return nil, &registry.ScrapeError{Message: msg}
}
