package store

import (
	"database/sql"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/zkfuzz/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - base record columns
// 2 - campaign_id, variant_index, input_digest, seq
const currentSchemaVersion = ir.SchemaVersion

const (
	// DBFile is the SQLite file name inside the store directory.
	DBFile = "artifacts.db"
	// CSVFile is the CSV summary file name inside the store directory.
	CSVFile = "summary.csv"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("store closed")

// Store is an open artifact directory.
type Store struct {
	dir    string
	db     *sql.DB
	logger *slog.Logger
	mirror Mirror
	clock  *Clock

	csvFile   *os.File
	csvWriter *csv.Writer

	queue   *appendQueue
	stopped chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger. The store is silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMirror copies every divergence directory to m as well.
func WithMirror(m Mirror) Option {
	return func(s *Store) {
		s.mirror = m
	}
}

// Open creates or opens the store in dir and starts its writer.
//
// The database is configured with WAL mode, NORMAL synchronous mode and a
// 5-second busy timeout. Migrations run on open.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var lastSeq int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM runs").Scan(&lastSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("read last seq: %w", err)
	}

	s := &Store{
		dir:     dir,
		db:      db,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:   NewClockAt(lastSeq),
		queue:   newAppendQueue(),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.openCSV(); err != nil {
		db.Close()
		return nil, err
	}

	go s.writeLoop()
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Close stops the writer after pending appends finish, then syncs and
// closes the files. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue.Close()
	s.mu.Unlock()

	<-s.stopped

	var errs []error
	s.csvWriter.Flush()
	if err := s.csvWriter.Error(); err != nil {
		errs = append(errs, fmt.Errorf("flush csv: %w", err))
	}
	if err := s.csvFile.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync csv: %w", err))
	}
	if err := s.csvFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close csv: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// It is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV2 appends the campaign columns. Existing rows read back with
// the column defaults.
func migrateToV2(db *sql.DB) error {
	existing, err := tableColumns(db, "runs")
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	added := []struct{ name, ddl string }{
		{"campaign_id", "campaign_id TEXT NOT NULL DEFAULT ''"},
		{"variant_index", "variant_index INTEGER NOT NULL DEFAULT -1"},
		{"input_digest", "input_digest TEXT NOT NULL DEFAULT ''"},
		{"seq", "seq INTEGER NOT NULL DEFAULT 0"},
	}
	for _, col := range added {
		if slices.Contains(existing, col.name) {
			continue
		}
		if _, err := db.Exec("ALTER TABLE runs ADD COLUMN " + col.ddl); err != nil {
			return fmt.Errorf("migrate to v2: add %s: %w", col.name, err)
		}
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_campaign ON runs(campaign_id, program, variant_index)`); err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

func tableColumns(db *sql.DB, table string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
