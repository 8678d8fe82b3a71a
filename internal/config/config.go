// Package config loads the application configuration from YAML with
// environment overrides and turns it into the runtime catalog and sources.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"PriceSentinel/internal/alert"
	"PriceSentinel/internal/collector"
	"PriceSentinel/internal/extract"
	"PriceSentinel/internal/model"
	"PriceSentinel/internal/scheduler"
)

// Config holds all application configuration.
type Config struct {
	Telegram TelegramConfig                `yaml:"telegram"`
	Fetch    FetchConfig                   `yaml:"fetch"`
	Schedule ScheduleConfig                `yaml:"schedule"`
	Alerts   AlertsConfig                  `yaml:"alerts"`
	Prices   PriceBounds                   `yaml:"prices"`
	History  HistoryConfig                 `yaml:"history"`
	Database DatabaseConfig                `yaml:"database"`
	Server   ServerConfig                  `yaml:"server"`
	Logging  LoggingConfig                 `yaml:"logging"`
	Sources  map[string]extract.SourceSpec `yaml:"sources"`
	Products []ProductConfig               `yaml:"products"`
	Proxy    string                        `yaml:"proxy"`
}

// TelegramConfig holds the bot credentials. ChatID is the only chat the bot
// talks to.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// FetchConfig controls outbound page fetches.
type FetchConfig struct {
	Timeout       time.Duration  `yaml:"timeout"`
	RenderTimeout time.Duration  `yaml:"render_timeout"`
	MinDelay      time.Duration  `yaml:"min_delay"`
	Jitter        time.Duration  `yaml:"jitter"`
	UserAgents    []string       `yaml:"user_agents"`
	ProxyAPI      ProxyAPIConfig `yaml:"proxy_api"`
	Browser       BrowserConfig  `yaml:"browser"`
}

// BrowserConfig enables local headless rendering for sources that need it.
type BrowserConfig struct {
	Enabled bool          `yaml:"enabled"`
	Bin     string        `yaml:"bin"` // empty downloads a managed Chromium
	Timeout time.Duration `yaml:"timeout"`
}

// ProxyAPIConfig configures the optional external fetch-proxy service.
type ProxyAPIConfig struct {
	Endpoint    string `yaml:"endpoint"`
	APIKey      string `yaml:"api_key"`
	CountryCode string `yaml:"country_code"`
}

// Enabled reports whether requests should go through the fetch-proxy.
func (p ProxyAPIConfig) Enabled() bool { return p.APIKey != "" }

// ScheduleConfig defines when unattended cycles run.
type ScheduleConfig struct {
	Cron       string `yaml:"cron"`
	Timezone   string `yaml:"timezone"`
	RunOnStart bool   `yaml:"run_on_start"`
}

// AlertsConfig defines alert behavior.
type AlertsConfig struct {
	FloorMode string `yaml:"floor_mode"` // every_cycle, on_crossing
}

// PriceBounds is the exclusive plausibility range for extracted prices.
type PriceBounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// HistoryConfig locates the price history file.
type HistoryConfig struct {
	File string `yaml:"file"`
}

// DatabaseConfig locates the optional archive. PostgresURL wins over
// SQLitePath; with neither set nothing is archived.
type DatabaseConfig struct {
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`
}

// ServerConfig defines the optional HTTP API.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ProductConfig is one monitored product.
type ProductConfig struct {
	Name       string          `yaml:"name"`
	FloorPrice decimal.Decimal `yaml:"floor_price"`
	Sources    Bindings        `yaml:"sources"`
}

// BindingConfig ties a source id to the page or search query to check.
type BindingConfig struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Render bool   `yaml:"render"`
}

// Bindings keeps the sources of a product in document order. In YAML it is a
// mapping from source id to either a target string or {target, render}.
type Bindings []BindingConfig

// UnmarshalYAML decodes the ordered source mapping.
func (b *Bindings) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: sources must be a mapping of source id to target", node.Line)
	}
	out := make(Bindings, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return fmt.Errorf("line %d: source %s listed twice", key.Line, key.Value)
		}
		seen[key.Value] = true
		bc := BindingConfig{Source: key.Value}
		switch val.Kind {
		case yaml.ScalarNode:
			bc.Target = val.Value
		case yaml.MappingNode:
			var v struct {
				Target string `yaml:"target"`
				Render bool   `yaml:"render"`
			}
			if err := val.Decode(&v); err != nil {
				return fmt.Errorf("source %s: %w", key.Value, err)
			}
			bc.Target, bc.Render = v.Target, v.Render
		default:
			return fmt.Errorf("line %d: source %s must be a target string or mapping", val.Line, key.Value)
		}
		out = append(out, bc)
	}
	*b = out
	return nil
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error so deployments can
// rely on the environment alone; Validate reports what is still missing.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := firstEnv("TELEGRAM_BOT_TOKEN", "TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := firstEnv("FETCH_PROXY_API_KEY", "SCRAPER_API_KEY"); v != "" {
		cfg.Fetch.ProxyAPI.APIKey = v
	}
	if v := os.Getenv("BROWSER_BIN"); v != "" {
		cfg.Fetch.Browser.Enabled = true
		cfg.Fetch.Browser.Bin = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("HISTORY_FILE"); v != "" {
		cfg.History.File = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Schedule.RunOnStart = b
		}
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func applyDefaults(cfg *Config) {
	applyFetchDefaults(&cfg.Fetch)
	applyScheduleDefaults(&cfg.Schedule)
	applyPriceDefaults(&cfg.Prices)
	applyServerDefaults(&cfg.Server)
	applyLoggingDefaults(&cfg.Logging)
	if cfg.History.File == "" {
		cfg.History.File = "data/price_history.json"
	}
	if cfg.Alerts.FloorMode == "" {
		cfg.Alerts.FloorMode = string(alert.FloorEveryCycle)
	}
}

func applyFetchDefaults(f *FetchConfig) {
	if f.Timeout == 0 {
		f.Timeout = collector.DefaultTimeout
	}
	if f.RenderTimeout == 0 {
		f.RenderTimeout = collector.DefaultRenderTimeout
	}
	if f.MinDelay == 0 {
		f.MinDelay = time.Second
	}
	if f.Jitter == 0 {
		f.Jitter = time.Second
	}
	if f.Browser.Timeout == 0 {
		f.Browser.Timeout = collector.DefaultBrowserTimeout
	}
	if f.ProxyAPI.Endpoint == "" {
		f.ProxyAPI.Endpoint = "https://api.scraperapi.com/"
	}
	if f.ProxyAPI.CountryCode == "" {
		f.ProxyAPI.CountryCode = "es"
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.Cron == "" {
		s.Cron = scheduler.DefaultCron
	}
	if s.Timezone == "" {
		s.Timezone = "Europe/Madrid"
	}
}

func applyPriceDefaults(p *PriceBounds) {
	if p.Min == 0 && p.Max == 0 {
		p.Min = extract.DefaultMinPrice.InexactFloat64()
		p.Max = extract.DefaultMaxPrice.InexactFloat64()
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

// Validate checks everything needed to run the bot.
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram.bot_token is required"))
	}
	if c.Telegram.ChatID == "" {
		errs = append(errs, errors.New("telegram.chat_id is required"))
	} else if _, err := strconv.ParseInt(c.Telegram.ChatID, 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("telegram.chat_id must be numeric (got %q)", c.Telegram.ChatID))
	}
	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
	}
	if _, err := cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	).Parse(c.Schedule.Cron); err != nil {
		errs = append(errs, fmt.Errorf("schedule.cron %q: %w", c.Schedule.Cron, err))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}

	if err := c.ValidateCatalog(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateCatalog checks the products, sources and fetch settings; it is
// all a one-off check needs.
func (c *Config) ValidateCatalog() error {
	var errs []error

	if c.Prices.Min < 0 || c.Prices.Min >= c.Prices.Max {
		errs = append(errs, fmt.Errorf("prices: need 0 <= min < max (got %v, %v)", c.Prices.Min, c.Prices.Max))
	}
	if _, err := alert.ParseFloorMode(c.Alerts.FloorMode); err != nil {
		errs = append(errs, fmt.Errorf("alerts.floor_mode: %w", err))
	}
	if c.Proxy != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("proxy %q is not a valid URL", c.Proxy))
		}
	}
	if c.Fetch.ProxyAPI.Enabled() {
		if u, err := url.Parse(c.Fetch.ProxyAPI.Endpoint); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("fetch.proxy_api.endpoint %q is not a valid URL", c.Fetch.ProxyAPI.Endpoint))
		}
	}

	reg, err := c.Registry()
	if err != nil {
		errs = append(errs, err)
		reg = extract.DefaultRegistry()
	}

	if len(c.Products) == 0 {
		errs = append(errs, errors.New("products: at least one product is required"))
	}
	seen := make(map[string]bool, len(c.Products))
	for i, p := range c.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("products[%d]: name is required", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("products[%d]: duplicate name %q", i, name))
		}
		seen[name] = true
		if !p.FloorPrice.IsPositive() {
			errs = append(errs, fmt.Errorf("product %q: floor_price must be positive", name))
		}
		if len(p.Sources) == 0 {
			errs = append(errs, fmt.Errorf("product %q: at least one source is required", name))
		}
		bound := make(map[string]bool, len(p.Sources))
		for _, b := range p.Sources {
			if bound[b.Source] {
				errs = append(errs, fmt.Errorf("product %q: source %q listed twice", name, b.Source))
				continue
			}
			bound[b.Source] = true
			src, ok := reg.Lookup(b.Source)
			if !ok {
				errs = append(errs, fmt.Errorf("product %q: unknown source %q", name, b.Source))
				continue
			}
			if _, err := src.URL(model.SourceLocator{Target: b.Target, Render: b.Render}); err != nil {
				errs = append(errs, fmt.Errorf("product %q: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Registry returns the built-in sources plus the configured ones. A
// configured source replaces a built-in one with the same id.
func (c *Config) Registry() (*extract.Registry, error) {
	reg := extract.DefaultRegistry()
	var errs []error
	for id, spec := range c.Sources {
		src, err := extract.BuildSource(id, spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("sources: %w", err))
			continue
		}
		if err := reg.Register(src); err != nil {
			errs = append(errs, fmt.Errorf("sources: %w", err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reg, nil
}

// Catalog returns the products in configuration order.
func (c *Config) Catalog() []model.ProductSpec {
	out := make([]model.ProductSpec, 0, len(c.Products))
	for _, p := range c.Products {
		spec := model.ProductSpec{
			Name:       strings.TrimSpace(p.Name),
			FloorPrice: p.FloorPrice,
			Sources:    make([]model.SourceBinding, 0, len(p.Sources)),
		}
		for _, b := range p.Sources {
			spec.Sources = append(spec.Sources, model.SourceBinding{
				Source:  b.Source,
				Locator: model.SourceLocator{Target: b.Target, Render: b.Render},
			})
		}
		out = append(out, spec)
	}
	return out
}

// Normalizer returns the price normalizer for the configured bounds.
func (c *Config) Normalizer() extract.Normalizer {
	return extract.NewNormalizer(decimal.NewFromFloat(c.Prices.Min), decimal.NewFromFloat(c.Prices.Max))
}

// FloorMode returns the configured floor mode, falling back to the default.
func (c *Config) FloorMode() alert.FloorMode {
	m, err := alert.ParseFloorMode(c.Alerts.FloorMode)
	if err != nil {
		return alert.FloorEveryCycle
	}
	return m
}

// Location returns the schedule timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Schedule.Timezone)
}
