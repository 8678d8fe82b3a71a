package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"PriceSentinel/internal/api"
	"PriceSentinel/internal/history"
	"PriceSentinel/internal/notifier"
	"PriceSentinel/internal/scheduler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, Telegram bot and optional HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("config validation failed", "error", err)
		return fmt.Errorf("config validation: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	log.Info("price sentinel starting", "version", Version, "products", len(cfg.Products))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := buildRecorder(ctx, cfg, log)
	defer rec.Close()

	store := history.NewFileStore(cfg.History.File, history.WithLogger(log))
	mon, release, err := buildMonitor(cfg, log, store, rec)
	if err != nil {
		return err
	}
	defer release()

	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy,
		notifier.WithLogger(log))

	sched := scheduler.NewScheduler(ctx, mon, tn, loc, scheduler.WithLogger(log))
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		return fmt.Errorf("register cron task: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		tn.StartPolling(ctx, sched.HandleCommand)
	}()
	log.Info("telegram polling started")

	if cfg.Schedule.RunOnStart {
		log.Info("run_on_start enabled, executing a cycle now")
		go sched.RunStartupNow()
	}

	var srv *http.Server
	if cfg.Server.Enabled {
		e := api.NewServer(mon, log)
		srv = &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:           e,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server failed", "error", err)
			}
		}()
	}

	log.Info("price sentinel is running, press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutdown signal received, stopping")
	cancel()

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown", "error", err)
		}
	}
	<-pollDone
	log.Info("price sentinel stopped")
	return nil
}
