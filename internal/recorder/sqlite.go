package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "modernc.org/sqlite"

	"PriceSentinel/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database. Prices are
// stored as decimal TEXT so no precision is lost.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *slog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, opts ...Option) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the bot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: buildOptions(opts).log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info("sqlite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			id          TEXT PRIMARY KEY,
			trigger_type TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			pairs       INTEGER NOT NULL,
			found       INTEGER NOT NULL,
			alerts      INTEGER NOT NULL,
			save_error  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at)`,

		`CREATE TABLE IF NOT EXISTS observations (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id    TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			product     TEXT NOT NULL,
			source      TEXT NOT NULL,
			found       INTEGER NOT NULL,
			price       TEXT,
			method      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_observations_pair ON observations(product, source, timestamp)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id    TEXT NOT NULL,
			kind        TEXT NOT NULL,
			product     TEXT NOT NULL,
			source      TEXT NOT NULL,
			old_price   TEXT,
			new_price   TEXT NOT NULL,
			floor_price TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_cycle ON alerts(cycle_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordObservation(ctx context.Context, rec *ObservationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var price, method sql.NullString
	if rec.Observation.Found {
		price = sql.NullString{String: rec.Observation.Price.String(), Valid: true}
		method = sql.NullString{String: rec.Observation.Method, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO observations
		(cycle_id, timestamp, product, source, found, price, method)
		VALUES (?,?,?,?,?,?,?)`,
		rec.CycleID, rec.ObservedAt.Unix(), rec.Product, rec.Source,
		rec.Observation.Found, price, method,
	)
	return err
}

func (r *SQLiteRecorder) RecordAlert(ctx context.Context, cycleID string, evt model.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldPrice, floor sql.NullString
	switch evt.Kind {
	case model.AlertPriceChanged:
		oldPrice = sql.NullString{String: evt.Old.String(), Valid: true}
	case model.AlertFloorReached:
		floor = sql.NullString{String: evt.Floor.String(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO alerts
		(cycle_id, kind, product, source, old_price, new_price, floor_price)
		VALUES (?,?,?,?,?,?,?)`,
		cycleID, string(evt.Kind), evt.Product, evt.Source,
		oldPrice, evt.New.String(), floor,
	)
	return err
}

func (r *SQLiteRecorder) RecordCycle(ctx context.Context, res *model.CycleResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var saveErr sql.NullString
	if res.SaveError != "" {
		saveErr = sql.NullString{String: res.SaveError, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO cycles
		(id, trigger_type, started_at, finished_at, pairs, found, alerts, save_error)
		VALUES (?,?,?,?,?,?,?,?)`,
		res.ID, string(res.Trigger), res.StartedAt.Unix(), res.FinishedAt.Unix(),
		len(res.Report), res.FoundCount(), len(res.Alerts), saveErr,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
