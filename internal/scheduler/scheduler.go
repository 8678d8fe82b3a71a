// Package scheduler wires cron triggers and chat commands to monitoring cycles.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"PriceSentinel/internal/metrics"
	"PriceSentinel/internal/model"
	"PriceSentinel/internal/monitor"
	"PriceSentinel/internal/notifier"
)

// DefaultCron runs a cycle at 09:00 and 21:00.
const DefaultCron = "0 0 9,21 * * *"

// Cycler runs monitoring cycles.
type Cycler interface {
	RunScheduled(ctx context.Context) (*model.CycleResult, error)
	RunStartup(ctx context.Context) (*model.CycleResult, error)
	RunManual(ctx context.Context) (*model.CycleResult, error)
	Busy() bool
	Catalog() []model.ProductSpec
}

// Sender delivers a message to the operator chat.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Scheduler manages the cron trigger and command handling.
type Scheduler struct {
	Cron     *cron.Cron
	Monitor  Cycler
	Notifier Sender
	Location *time.Location
	Ctx      context.Context

	log *slog.Logger
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// NewScheduler creates a new Scheduler. Cron specs carry a seconds field
// and are evaluated in loc.
func NewScheduler(ctx context.Context, mon Cycler, n Sender, loc *time.Location, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		Monitor:  mon,
		Notifier: n,
		Location: loc,
		Ctx:      ctx,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the monitoring cycle under spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.scheduledTask); err != nil {
		return fmt.Errorf("register monitoring task: %w", err)
	}
	s.log.Info("monitoring cycle scheduled", "cron", spec, "location", s.Location.String())
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunStartupNow executes one cycle immediately (RUN_ON_START).
func (s *Scheduler) RunStartupNow() {
	res, err := s.Monitor.RunStartup(s.Ctx)
	s.deliver(res, err)
}

func (s *Scheduler) scheduledTask() {
	s.log.Info("running scheduled cycle")
	res, err := s.Monitor.RunScheduled(s.Ctx)
	s.deliver(res, err)
}

// deliver sends the alerts of an unattended cycle. Nothing is sent when
// there are none.
func (s *Scheduler) deliver(res *model.CycleResult, err error) {
	if err != nil {
		s.log.Warn("cycle did not run", "error", err)
		return
	}
	if msg := notifier.FormatAlerts(res.Alerts); msg != "" {
		s.trySend(s.Ctx, msg)
	}
}

// HandleCommand processes a chat command from the authorized chat.
func (s *Scheduler) HandleCommand(ctx context.Context, cmd notifier.Command, reply notifier.Reply) {
	switch cmd.Name {
	case "revisar", "check", "precios":
		s.manualCheck(ctx, reply)
	default:
		s.tryReply(ctx, reply, notifier.FormatHelp(s.Monitor.Catalog()))
	}
}

func (s *Scheduler) manualCheck(ctx context.Context, reply notifier.Reply) {
	if s.Monitor.Busy() {
		s.tryReply(ctx, reply, notifier.MsgBusy)
		return
	}
	s.tryReply(ctx, reply, notifier.MsgAck)

	res, err := s.Monitor.RunManual(ctx)
	switch {
	case errors.Is(err, monitor.ErrCycleInProgress):
		s.tryReply(ctx, reply, notifier.MsgBusy)
		return
	case err != nil:
		s.log.Error("manual cycle", "error", err)
		s.tryReply(ctx, reply, notifier.MsgFailure)
		return
	}

	s.tryReply(ctx, reply, notifier.FormatReport(res, s.Location))
	if msg := notifier.FormatAlerts(res.Alerts); msg != "" {
		s.tryReply(ctx, reply, msg)
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.Send(ctx, text); err != nil {
		metrics.NotificationFailuresTotal.Inc()
		s.log.Error("send notification", "error", err)
	}
}

func (s *Scheduler) tryReply(ctx context.Context, reply notifier.Reply, text string) {
	if err := reply(ctx, text); err != nil {
		metrics.NotificationFailuresTotal.Inc()
		s.log.Error("send reply", "error", err)
	}
}
