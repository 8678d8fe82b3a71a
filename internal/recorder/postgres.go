package recorder

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"PriceSentinel/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const defaultPoolSize = 4

// PostgresRecorder archives to PostgreSQL through a pgx connection pool.
// Prices go in as text and are stored as NUMERIC.
type PostgresRecorder struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresRecorder connects, pings and applies pending migrations.
func NewPostgresRecorder(ctx context.Context, connString string, opts ...Option) (*PostgresRecorder, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	r := &PostgresRecorder{pool: pool, log: buildOptions(opts).log}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r.log.Info("postgres recorder opened", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return r, nil
}

// migrate applies the embedded migrations in filename order. Applied
// versions are tracked in schema_migrations; there are no down migrations.
func (r *PostgresRecorder) migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version := entry.Name()

		var exists bool
		if err := r.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		body, err := migrationsFS.ReadFile("migrations/" + version)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", version, err)
		}
		if err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
			return err
		}); err != nil {
			return fmt.Errorf("applying migration %s: %w", version, err)
		}
		r.log.Info("applied migration", "version", version)
	}
	return nil
}

func (r *PostgresRecorder) RecordObservation(ctx context.Context, rec *ObservationRecord) error {
	var price, method *string
	if rec.Observation.Found {
		p := rec.Observation.Price.String()
		price, method = &p, &rec.Observation.Method
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO observations
		(cycle_id, observed_at, product, source, found, price, method)
		VALUES (@cycle_id, @observed_at, @product, @source, @found, @price::text::numeric, @method)`,
		pgx.NamedArgs{
			"cycle_id":    rec.CycleID,
			"observed_at": rec.ObservedAt,
			"product":     rec.Product,
			"source":      rec.Source,
			"found":       rec.Observation.Found,
			"price":       price,
			"method":      method,
		},
	)
	return err
}

func (r *PostgresRecorder) RecordAlert(ctx context.Context, cycleID string, evt model.AlertEvent) error {
	var oldPrice, floor *string
	switch evt.Kind {
	case model.AlertPriceChanged:
		s := evt.Old.String()
		oldPrice = &s
	case model.AlertFloorReached:
		s := evt.Floor.String()
		floor = &s
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO alerts
		(cycle_id, kind, product, source, old_price, new_price, floor_price)
		VALUES (@cycle_id, @kind, @product, @source,
			@old_price::text::numeric, @new_price::text::numeric, @floor_price::text::numeric)`,
		pgx.NamedArgs{
			"cycle_id":    cycleID,
			"kind":        string(evt.Kind),
			"product":     evt.Product,
			"source":      evt.Source,
			"old_price":   oldPrice,
			"new_price":   evt.New.String(),
			"floor_price": floor,
		},
	)
	return err
}

func (r *PostgresRecorder) RecordCycle(ctx context.Context, res *model.CycleResult) error {
	var saveErr *string
	if res.SaveError != "" {
		saveErr = &res.SaveError
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO cycles
		(id, trigger_type, started_at, finished_at, pairs, found, alerts, save_error)
		VALUES (@id, @trigger_type, @started_at, @finished_at, @pairs, @found, @alerts, @save_error)`,
		pgx.NamedArgs{
			"id":           res.ID,
			"trigger_type": string(res.Trigger),
			"started_at":   res.StartedAt,
			"finished_at":  res.FinishedAt,
			"pairs":        len(res.Report),
			"found":        res.FoundCount(),
			"alerts":       len(res.Alerts),
			"save_error":   saveErr,
		},
	)
	return err
}

func (r *PostgresRecorder) Close() error {
	r.log.Info("closing postgres recorder")
	r.pool.Close()
	return nil
}
