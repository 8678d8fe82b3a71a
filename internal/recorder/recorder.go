// Package recorder archives observations, alerts and cycle summaries for
// later analysis. Nothing in a cycle depends on the archive succeeding.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"PriceSentinel/internal/model"
)

// ObservationRecord is one (product, source) outcome within a cycle.
type ObservationRecord struct {
	CycleID     string
	Product     string
	Source      string
	Observation model.Observation
	ObservedAt  time.Time
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordObservation(ctx context.Context, rec *ObservationRecord) error
	RecordAlert(ctx context.Context, cycleID string, evt model.AlertEvent) error
	RecordCycle(ctx context.Context, res *model.CycleResult) error
	Close() error
}

// Option configures a Recorder.
type Option func(*options)

type options struct {
	log *slog.Logger
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

func buildOptions(opts []Option) options {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
