package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vessellog/logging"
)

const (
	// DefaultDBFileName is the SQLite filename under the data directory.
	DefaultDBFileName = "vessellog.db"
	// DefaultBusyTimeout bounds how long an operation waits for a lock held
	// by a concurrent writer.
	DefaultBusyTimeout = 20 * time.Second
)

var schema = []string{
	`
CREATE TABLE IF NOT EXISTS messages (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  vessel_sender    TEXT NOT NULL CHECK(vessel_sender <> ''),
  vessel_recipient TEXT NOT NULL CHECK(vessel_recipient <> ''),
  message_received TEXT,
  message_sent     TEXT,
  timestamp        TEXT NOT NULL DEFAULT (datetime('now', 'localtime'))
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_sender_time
ON messages (vessel_sender, timestamp DESC, id DESC);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_recipient_time
ON messages (vessel_recipient, timestamp DESC, id DESC);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_time
ON messages (timestamp DESC, id DESC);
`,
}

// Sealer encrypts and decrypts message bodies.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger used for contained failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBusyTimeout overrides DefaultBusyTimeout.
func WithBusyTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.busyTimeout = timeout
		}
	}
}

// WithClock overrides the clock used to stamp inserted records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics attaches operation metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(s *Store) {
		s.metrics = metrics
	}
}

// Store is the encrypted message store backed by a SQLite file.
//
// Every operation acquires its own connection and releases it before
// returning; no connection is kept idle between calls.
type Store struct {
	db     *sql.DB
	path   string
	sealer Sealer

	logger      *slog.Logger
	busyTimeout time.Duration
	now         func() time.Time
	metrics     *Metrics
	closeOnce   sync.Once
}

// Open opens (or creates) vessellog.db under the given data directory.
func Open(dataDir string, sealer Sealer, opts ...Option) (*Store, string, error) {
	dbPath := filepath.Join(dataDir, DefaultDBFileName)
	store, err := OpenPath(dbPath, sealer, opts...)
	if err != nil {
		return nil, "", err
	}

	return store, dbPath, nil
}

// OpenPath opens SQLite at an explicit path and ensures the schema exists.
func OpenPath(dbPath string, sealer Sealer, opts ...Option) (*Store, error) {
	if sealer == nil {
		return nil, fmt.Errorf("open store: sealer is required")
	}

	store := &Store{
		sealer:      sealer,
		logger:      logging.Discard(),
		busyTimeout: DefaultBusyTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}

	absPath, err := filepath.Abs(filepath.Clean(dbPath))
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	store.path = absPath

	if err := os.MkdirAll(filepath.Dir(absPath), 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", filepath.ToSlash(absPath), store.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, unavailable("open sqlite database", err)
	}
	db.SetMaxIdleConns(0)
	store.db = db

	ctx, cancel := context.WithTimeout(context.Background(), store.busyTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, unavailable("ping sqlite database", err)
	}
	if err := store.enableWALMode(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.logger.Info("message store ready", "path", absPath)
	return store, nil
}

// Path returns the absolute database file path.
func (s *Store) Path() string {
	return s.path
}

// Close truncates the WAL and closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	var closeErr error
	s.closeOnce.Do(func() {
		if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
			s.logger.Warn("wal checkpoint failed", "err", err)
		}
		closeErr = s.db.Close()
	})
	return closeErr
}

// conn acquires a dedicated connection, bounded by the busy timeout.
// Callers must close it on every exit path.
func (s *Store) conn(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, s.busyTimeout)
	defer cancel()

	conn, err := s.db.Conn(acquireCtx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return unavailable("acquire schema connection", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin schema transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return unavailable(fmt.Sprintf("apply schema statement %d", i+1), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit schema transaction", err)
	}

	return nil
}

func (s *Store) enableWALMode(ctx context.Context) error {
	var journalMode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return unavailable("enable WAL mode", err)
	}
	if !strings.EqualFold(journalMode, "wal") {
		return fmt.Errorf("enable WAL mode: unexpected journal mode %q", journalMode)
	}
	return nil
}
