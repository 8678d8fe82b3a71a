package cmd

import (
	"context"
	"log/slog"

	"PriceSentinel/internal/alert"
	"PriceSentinel/internal/collector"
	"PriceSentinel/internal/config"
	"PriceSentinel/internal/history"
	"PriceSentinel/internal/monitor"
	"PriceSentinel/internal/recorder"
)

const configuredAcceptLanguage = "es-ES,es;q=0.9,en;q=0.8"

// buildFetcher returns the fetcher chain and a func releasing what it holds.
func buildFetcher(cfg *config.Config, log *slog.Logger) (collector.Fetcher, func()) {
	opts := []collector.HTTPOption{
		collector.WithTimeouts(cfg.Fetch.Timeout, cfg.Fetch.RenderTimeout),
		collector.WithOutboundProxy(cfg.Proxy),
	}
	if len(cfg.Fetch.UserAgents) > 0 {
		sets := make([]collector.HeaderSet, 0, len(cfg.Fetch.UserAgents))
		for _, ua := range cfg.Fetch.UserAgents {
			sets = append(sets, collector.HeaderSet{UserAgent: ua, AcceptLanguage: configuredAcceptLanguage})
		}
		opts = append(opts, collector.WithHeaderSets(sets))
	}
	direct := collector.NewHTTPFetcher(opts...)

	var f collector.Fetcher = direct
	if cfg.Fetch.ProxyAPI.Enabled() {
		f = collector.NewProxyFetcher(cfg.Fetch.ProxyAPI.Endpoint, cfg.Fetch.ProxyAPI.APIKey, direct,
			collector.WithProxyLogger(log),
			collector.WithCountryCode(cfg.Fetch.ProxyAPI.CountryCode),
			collector.WithProxyTimeouts(cfg.Fetch.Timeout, cfg.Fetch.RenderTimeout),
		)
	}
	release := func() {}
	if cfg.Fetch.Browser.Enabled {
		bf := collector.NewBrowserFetcher(f,
			collector.WithBrowserBin(cfg.Fetch.Browser.Bin),
			collector.WithBrowserTimeout(cfg.Fetch.Browser.Timeout),
			collector.WithBrowserLogger(log),
		)
		release = func() {
			if err := bf.Close(); err != nil {
				log.Warn("closing browser", "error", err)
			}
		}
		f = bf
	}
	log.Info("fetcher ready", "fetcher", f.Name())
	return f, release
}

// buildRecorder never fails: an archive that cannot be opened is replaced
// by the noop recorder.
func buildRecorder(ctx context.Context, cfg *config.Config, log *slog.Logger) recorder.Recorder {
	switch {
	case cfg.Database.PostgresURL != "":
		pr, err := recorder.NewPostgresRecorder(ctx, cfg.Database.PostgresURL, recorder.WithLogger(log))
		if err != nil {
			log.Warn("init postgres recorder failed, using noop", "error", err)
			return recorder.NewNoopRecorder()
		}
		return pr
	case cfg.Database.SQLitePath != "":
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, recorder.WithLogger(log))
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", "error", err)
			return recorder.NewNoopRecorder()
		}
		return sr
	default:
		return recorder.NewNoopRecorder()
	}
}

// buildMonitor wires the collection pipeline. The returned func must be
// called once the monitor is no longer used.
func buildMonitor(
	cfg *config.Config,
	log *slog.Logger,
	store history.Store,
	rec recorder.Recorder,
) (*monitor.Monitor, func(), error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, err
	}
	f, release := buildFetcher(cfg, log)
	col := collector.NewCollector(f, reg, cfg.Normalizer(), collector.WithLogger(log))
	return monitor.New(cfg.Catalog(), col, store,
		monitor.WithLogger(log),
		monitor.WithEngine(alert.NewEngine(cfg.FloorMode())),
		monitor.WithPacer(monitor.NewPacer(cfg.Fetch.MinDelay, cfg.Fetch.Jitter)),
		monitor.WithRecorder(rec),
	), release, nil
}
