package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/shopspring/decimal"

	"PriceSentinel/internal/model"
)

const (
	lockFileSuffix = ".lock"
	lockRetryDelay = 250 * time.Millisecond
)

// FileStore keeps the snapshot as a flat JSON object mapping
// "<product>_<source>" to a price.
type FileStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *FileStore) {
		s.logger = l
	}
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path:   path,
		lock:   flock.New(path + lockFileSuffix),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the snapshot. A missing or corrupt file yields an empty
// snapshot; individual entries that are not a positive price under a
// well-formed key are skipped.
func (s *FileStore) Load(_ context.Context) model.Snapshot {
	snap := make(model.Snapshot)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("history file not found, starting empty", "path", s.path)
		} else {
			s.logger.Warn("reading history file", "path", s.path, "error", err)
		}
		return snap
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		s.logger.Warn("history file is corrupt, starting empty", "path", s.path, "error", err)
		return snap
	}

	for k, v := range raw {
		key, err := model.ParseHistoryKey(k)
		if err != nil {
			s.logger.Warn("skipping history entry", "key", k, "error", err)
			continue
		}
		price, err := parsePrice(v)
		if err != nil {
			s.logger.Warn("skipping history entry", "key", k, "error", err)
			continue
		}
		snap[key] = price
	}
	return snap
}

func parsePrice(v any) (decimal.Decimal, error) {
	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = t
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected value %v", v)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing %q: %w", text, err)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("non-positive price %s", d)
	}
	return d, nil
}

// Save writes the snapshot to a temporary file next to the target and
// renames it into place, so readers never observe a partial file.
func (s *FileStore) Save(_ context.Context, snap model.Snapshot) error {
	out := make(map[string]json.Number, len(snap))
	for k, v := range snap {
		out[k.String()] = json.Number(v.String())
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing history file: %w", err)
	}
	return nil
}

// Lock acquires the cross-process lock on the history file, waiting for
// another holder to release it.
func (s *FileStore) Lock(ctx context.Context) error {
	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", s.lock.Path(), err)
	}
	if locked {
		return nil
	}
	s.logger.Warn("history file is held by another process, waiting", "lock", s.lock.Path())
	locked, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("locking %s after waiting: %w", s.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("locking %s: not acquired", s.lock.Path())
	}
	return nil
}

// Unlock releases the lock taken by Lock.
func (s *FileStore) Unlock() error {
	if err := s.lock.Unlock(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unlocking %s: %w", s.lock.Path(), err)
	}
	return nil
}
