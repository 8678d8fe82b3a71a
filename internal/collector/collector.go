// Package collector turns (product, source) pairs into price observations.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"PriceSentinel/internal/extract"
	"PriceSentinel/internal/metrics"
	"PriceSentinel/internal/model"
)

// Collector resolves a source binding, fetches the page and runs the
// source's extraction chain. Every failure collapses to model.Unavailable.
type Collector struct {
	fetcher    Fetcher
	sources    *extract.Registry
	normalizer extract.Normalizer
	log        *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) {
		c.log = l
	}
}

// NewCollector creates a new Collector.
func NewCollector(f Fetcher, sources *extract.Registry, n extract.Normalizer, opts ...Option) *Collector {
	c := &Collector{
		fetcher:    f,
		sources:    sources,
		normalizer: n,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe produces the observation for one product at one source.
func (c *Collector) Observe(ctx context.Context, product string, b model.SourceBinding) model.Observation {
	log := c.log.With("product", product, "source", b.Source)

	src, ok := c.sources.Lookup(b.Source)
	if !ok {
		log.Warn("unknown source")
		return c.unavailable(b.Source)
	}
	target, err := src.URL(b.Locator)
	if err != nil {
		log.Warn("resolving target", "error", err)
		return c.unavailable(b.Source)
	}

	start := time.Now()
	body, err := c.fetcher.Fetch(ctx, Request{Source: b.Source, URL: target, Render: b.Locator.Render})
	metrics.FetchDuration.WithLabelValues(b.Source).Observe(time.Since(start).Seconds())
	metrics.FetchRequestsTotal.WithLabelValues(b.Source, fetchResult(err)).Inc()
	if err != nil {
		log.Warn("fetch failed", "fetcher", c.fetcher.Name(), "error", err)
		return c.unavailable(b.Source)
	}

	price, method, ok := src.Methods.Extract(extract.NewPayload(body), c.normalizer)
	if !ok {
		log.Info("no valid price on page", "bytes", len(body))
		return c.unavailable(b.Source)
	}

	metrics.ObservationsTotal.WithLabelValues(b.Source, "found").Inc()
	metrics.ExtractionMethodHitsTotal.WithLabelValues(b.Source, method).Inc()
	log.Debug("price found", "price", price.StringFixed(2), "method", method)
	return model.Found(price, method)
}

func (c *Collector) unavailable(source string) model.Observation {
	metrics.ObservationsTotal.WithLabelValues(source, "unavailable").Inc()
	return model.Unavailable()
}

func fetchResult(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &se):
		return "status"
	default:
		return "error"
	}
}
