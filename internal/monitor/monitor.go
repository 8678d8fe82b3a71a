// Package monitor runs monitoring cycles over the product catalog.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"PriceSentinel/internal/alert"
	"PriceSentinel/internal/history"
	"PriceSentinel/internal/metrics"
	"PriceSentinel/internal/model"
	"PriceSentinel/internal/recorder"
)

// ErrCycleInProgress is returned by RunManual while another cycle runs.
var ErrCycleInProgress = errors.New("a monitoring cycle is already running")

// Observer produces one observation for a product at a source.
type Observer interface {
	Observe(ctx context.Context, product string, b model.SourceBinding) model.Observation
}

// Monitor drives cycles. At most one cycle runs at a time.
type Monitor struct {
	catalog  []model.ProductSpec
	observer Observer
	store    history.Store
	engine   alert.Engine
	pacer    *Pacer
	recorder recorder.Recorder
	log      *slog.Logger
	now      func() time.Time

	slot chan struct{}
}

// Option configures the Monitor.
type Option func(*Monitor)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

// WithEngine sets the alert engine.
func WithEngine(e alert.Engine) Option {
	return func(m *Monitor) {
		m.engine = e
	}
}

// WithPacer sets the fetch pacer.
func WithPacer(p *Pacer) Option {
	return func(m *Monitor) {
		m.pacer = p
	}
}

// WithRecorder sets the archive recorder.
func WithRecorder(r recorder.Recorder) Option {
	return func(m *Monitor) {
		m.recorder = r
	}
}

// WithNowFunc overrides the clock for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(m *Monitor) {
		m.now = f
	}
}

// New creates a Monitor over catalog. The catalog order is the visiting order.
func New(catalog []model.ProductSpec, obs Observer, store history.Store, opts ...Option) *Monitor {
	m := &Monitor{
		catalog:  catalog,
		observer: obs,
		store:    store,
		engine:   alert.NewEngine(alert.FloorEveryCycle),
		pacer:    NewPacer(time.Second, time.Second),
		recorder: recorder.NewNoopRecorder(),
		log:      slog.Default(),
		now:      time.Now,
		slot:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the monitored products.
func (m *Monitor) Catalog() []model.ProductSpec {
	return m.catalog
}

// Busy reports whether a cycle is running.
func (m *Monitor) Busy() bool {
	return len(m.slot) > 0
}

// RunScheduled runs a scheduled cycle, waiting for a running cycle to
// finish first. It fails only if ctx ends while waiting.
func (m *Monitor) RunScheduled(ctx context.Context) (*model.CycleResult, error) {
	return m.waitAndRun(ctx, model.TriggerScheduled)
}

// RunStartup is RunScheduled for the cycle run when the process starts.
func (m *Monitor) RunStartup(ctx context.Context) (*model.CycleResult, error) {
	return m.waitAndRun(ctx, model.TriggerStartup)
}

// RunManual runs an on-demand cycle. It returns ErrCycleInProgress instead
// of waiting when another cycle is running.
func (m *Monitor) RunManual(ctx context.Context) (*model.CycleResult, error) {
	select {
	case m.slot <- struct{}{}:
	default:
		metrics.CyclesRejectedTotal.Inc()
		return nil, ErrCycleInProgress
	}
	defer func() { <-m.slot }()
	return m.cycle(ctx, model.TriggerManual), nil
}

func (m *Monitor) waitAndRun(ctx context.Context, trigger model.TriggerType) (*model.CycleResult, error) {
	select {
	case m.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-m.slot }()
	return m.cycle(ctx, trigger), nil
}

func (m *Monitor) cycle(ctx context.Context, trigger model.TriggerType) *model.CycleResult {
	res := &model.CycleResult{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: m.now(),
	}
	log := m.log.With("cycle_id", res.ID, "trigger", trigger)
	log.Info("cycle started", "products", len(m.catalog))

	if err := m.store.Lock(ctx); err != nil {
		log.Error("locking history, continuing unlocked", "error", err)
	} else {
		defer func() {
			if err := m.store.Unlock(); err != nil {
				log.Error("unlocking history", "error", err)
			}
		}()
	}

	snap := m.store.Load(ctx)
	m.visit(ctx, log, res, snap)

	// Persist even when ctx was cancelled mid-cycle so observed prices are kept.
	if err := m.store.Save(context.WithoutCancel(ctx), snap); err != nil {
		log.Error("saving history", "error", err)
		metrics.HistorySaveFailuresTotal.Inc()
		res.SaveError = err.Error()
	}

	res.FinishedAt = m.now()
	if err := m.recorder.RecordCycle(context.WithoutCancel(ctx), res); err != nil {
		log.Warn("recording cycle", "error", err)
	}

	elapsed := res.FinishedAt.Sub(res.StartedAt)
	metrics.CycleDuration.WithLabelValues(string(trigger)).Observe(elapsed.Seconds())
	metrics.LastCycleTimestamp.Set(float64(res.FinishedAt.Unix()))
	log.Info("cycle finished",
		"pairs", len(res.Report),
		"found", res.FoundCount(),
		"alerts", len(res.Alerts),
		"duration", elapsed.Round(time.Millisecond),
	)
	return res
}

// visit observes every (product, source) pair in catalog order and applies
// the alert engine to snap.
func (m *Monitor) visit(ctx context.Context, log *slog.Logger, res *model.CycleResult, snap model.Snapshot) {
	for _, p := range m.catalog {
		for _, b := range p.Sources {
			if err := m.pacer.Wait(ctx); err != nil {
				log.Warn("cycle interrupted", "error", err)
				return
			}

			key := model.HistoryKey{Product: p.Name, Source: b.Source}
			prior, hasPrior := snap[key]

			obs := m.observer.Observe(ctx, p.Name, b)
			m.pacer.Done()
			events := m.engine.Step(snap, p, b.Source, obs)

			res.Alerts = append(res.Alerts, events...)
			res.Report = append(res.Report, model.ReportEntry{
				Product:     p.Name,
				Source:      b.Source,
				Found:       obs.Found,
				Price:       obs.Price,
				Method:      obs.Method,
				Previous:    prior,
				HasPrevious: hasPrior,
				Floor:       p.FloorPrice,
			})
			m.archive(ctx, log, res.ID, p.Name, b.Source, obs, events)
		}
	}
}

func (m *Monitor) archive(
	ctx context.Context,
	log *slog.Logger,
	cycleID, product, source string,
	obs model.Observation,
	events []model.AlertEvent,
) {
	rec := &recorder.ObservationRecord{
		CycleID:     cycleID,
		Product:     product,
		Source:      source,
		Observation: obs,
		ObservedAt:  m.now(),
	}
	if err := m.recorder.RecordObservation(ctx, rec); err != nil {
		log.Warn("recording observation", "product", product, "source", source, "error", err)
	}
	for _, evt := range events {
		metrics.AlertsEmittedTotal.WithLabelValues(string(evt.Kind)).Inc()
		log.Info("alert",
			"kind", evt.Kind,
			"product", product,
			"source", source,
			"price", evt.New.StringFixed(2),
		)
		if err := m.recorder.RecordAlert(ctx, cycleID, evt); err != nil {
			log.Warn("recording alert", "product", product, "source", source, "error", err)
		}
	}
}
