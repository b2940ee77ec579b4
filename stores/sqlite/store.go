// Package sqlite provides a SQLite-backed action journal for the tea
// runtime, using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/brewloop/tea"
	_ "modernc.org/sqlite"
)

// Journal implements tea.Journal and tea.CheckpointStore using SQLite.
// Entries are keyed by their sequence number; when the runtime supplies a
// sequence it is stored as-is, otherwise SQLite assigns the next one.
type Journal struct {
	db          *sql.DB
	cfg         *config
	logger      Logger
	metricsHook MetricsHook

	// Prepared statements
	recordStmt           *sql.Stmt
	loadStmt             *sql.Stmt
	loadFromStmt         *sql.Stmt
	positionStmt         *sql.Stmt
	saveCheckpointStmt   *sql.Stmt
	latestCheckpointStmt *sql.Stmt
}

// Ensure Journal implements the required interfaces
var _ tea.Journal = (*Journal)(nil)
var _ tea.CheckpointStore = (*Journal)(nil)

// dbOpener is used to open database connections, injectable for testing
var dbOpener = sql.Open

// New creates a new Journal with the given path and options.
//
// Note: When WithAutoMigrate is enabled (the default), migrations run with
// context.Background() and are not cancellable. This ensures migrations
// complete fully to avoid leaving the database in an inconsistent state.
func New(path string, opts ...Option) (*Journal, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	// Validate path to prevent URI parameter injection
	if path != ":memory:" && (strings.Contains(path, "?") || strings.Contains(path, "#")) {
		return nil, errors.New("sqlite: path cannot contain '?' or '#' characters")
	}

	cfg := defaultConfig()
	cfg.path = path
	for _, opt := range opts {
		opt(cfg)
	}

	// Build connection string with pragmas
	var dsn string
	if cfg.path == ":memory:" {
		// Use shared cache mode for in-memory databases to allow multiple connections
		dsn = "file::memory:?mode=memory&cache=shared"
	} else {
		dsn = fmt.Sprintf("file:%s?_busy_timeout=%d", cfg.path, cfg.busyTimeout.Milliseconds())
	}

	db, err := dbOpener("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	// Apply pragmas for performance
	// Errors here indicate filesystem issues (read-only, permissions)
	if err := applyPragmas(db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply pragmas: %w", err)
	}

	// Run migrations if enabled
	if cfg.autoMigrate {
		if err := migrate(context.Background(), db); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: migrate: %w", err)
		}
	}

	return newFromDB(db, cfg)
}

// newFromDB creates a Journal from an existing database connection
func newFromDB(db *sql.DB, cfg *config) (*Journal, error) {
	j := &Journal{
		db:          db,
		cfg:         cfg,
		logger:      cfg.logger,
		metricsHook: cfg.metricsHook,
	}

	if err := j.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: prepare statements: %w", err)
	}

	return j, nil
}

// applyPragmas configures SQLite for optimal performance
func applyPragmas(db *sql.DB, cfg *config) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds()),
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	return nil
}

// prepareStatements prepares all SQL statements
func (j *Journal) prepareStatements() error {
	type stmtDef struct {
		dest **sql.Stmt
		sql  string
	}

	stmts := []stmtDef{
		{&j.recordStmt, "INSERT INTO entries (seq, action, data, state, timestamp) VALUES (?, ?, ?, ?, ?)"},
		{&j.loadStmt, "SELECT seq, action, data, state, timestamp FROM entries WHERE seq >= ? AND seq <= ? ORDER BY seq"},
		{&j.loadFromStmt, "SELECT seq, action, data, state, timestamp FROM entries WHERE seq >= ? ORDER BY seq"},
		{&j.positionStmt, "SELECT COALESCE(MAX(seq), 0) FROM entries"},
		{&j.saveCheckpointStmt, `INSERT INTO checkpoints (seq, state, timestamp) VALUES (?, ?, ?)
			ON CONFLICT(seq) DO UPDATE SET state = excluded.state, timestamp = excluded.timestamp`},
		{&j.latestCheckpointStmt, "SELECT seq, state, timestamp FROM checkpoints ORDER BY seq DESC LIMIT 1"},
	}

	for _, def := range stmts {
		stmt, err := j.db.Prepare(def.sql)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		*def.dest = stmt
	}

	return nil
}

// Record implements tea.Journal
func (j *Journal) Record(ctx context.Context, entry *tea.Entry) error {
	start := time.Now()

	// A zero Seq lets SQLite assign the next sequence number
	var seq any
	if entry.Seq != 0 {
		seq = entry.Seq
	}

	result, err := j.recordStmt.ExecContext(ctx, seq, entry.Action, []byte(entry.Data), []byte(entry.State), entry.Timestamp)
	if err != nil {
		if j.metricsHook != nil {
			j.metricsHook.OnRecord(time.Since(start), err)
		}
		return fmt.Errorf("sqlite: record entry: %w", err)
	}

	if entry.Seq == 0 {
		// LastInsertId is always supported by the SQLite driver
		assigned, _ := result.LastInsertId()
		entry.Seq = assigned
	}

	if j.metricsHook != nil {
		j.metricsHook.OnRecord(time.Since(start), nil)
	}

	if j.logger != nil {
		j.logger.Debug("recorded entry", "seq", entry.Seq, "action", entry.Action)
	}

	return nil
}

// rowScanner abstracts sql.Rows for testing
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Load implements tea.Journal. A to of -1 loads through the end.
func (j *Journal) Load(ctx context.Context, from, to int64) ([]*tea.Entry, error) {
	start := time.Now()
	var entries []*tea.Entry
	var err error

	defer func() {
		if j.metricsHook != nil {
			j.metricsHook.OnLoad(time.Since(start), len(entries), err)
		}
	}()

	var rows *sql.Rows
	if to == -1 {
		rows, err = j.loadFromStmt.QueryContext(ctx, from)
	} else {
		rows, err = j.loadStmt.QueryContext(ctx, from, to)
	}

	if err != nil {
		return nil, fmt.Errorf("sqlite: load entries: %w", err)
	}

	entries, err = j.scanEntries(rows)
	if err != nil {
		return nil, err
	}

	if j.logger != nil {
		j.logger.Debug("loaded entries", "from", from, "to", to, "count", len(entries))
	}

	return entries, nil
}

// scanEntries scans rows into entries - extracted for testability
func (j *Journal) scanEntries(rows rowScanner) ([]*tea.Entry, error) {
	defer rows.Close()

	var entries []*tea.Entry
	for rows.Next() {
		entry := &tea.Entry{}
		var data, state []byte
		if err := rows.Scan(&entry.Seq, &entry.Action, &data, &state, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("sqlite: scan entry: %w", err)
		}
		entry.Data = data
		entry.State = state
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate entries: %w", err)
	}

	return entries, nil
}

// Position implements tea.Journal
func (j *Journal) Position(ctx context.Context) (int64, error) {
	var seq int64
	if err := j.positionStmt.QueryRowContext(ctx).Scan(&seq); err != nil {
		return 0, fmt.Errorf("sqlite: position: %w", err)
	}
	return seq, nil
}

// SaveCheckpoint implements tea.CheckpointStore
func (j *Journal) SaveCheckpoint(ctx context.Context, cp *tea.Checkpoint) error {
	start := time.Now()

	_, err := j.saveCheckpointStmt.ExecContext(ctx, cp.Seq, []byte(cp.State), cp.Timestamp)
	if err != nil {
		if j.metricsHook != nil {
			j.metricsHook.OnSaveCheckpoint(time.Since(start), err)
		}
		return fmt.Errorf("sqlite: save checkpoint: %w", err)
	}

	if j.metricsHook != nil {
		j.metricsHook.OnSaveCheckpoint(time.Since(start), nil)
	}

	if j.logger != nil {
		j.logger.Debug("saved checkpoint", "seq", cp.Seq)
	}

	return nil
}

// LatestCheckpoint implements tea.CheckpointStore
func (j *Journal) LatestCheckpoint(ctx context.Context) (*tea.Checkpoint, error) {
	start := time.Now()

	cp := &tea.Checkpoint{}
	var state []byte
	err := j.latestCheckpointStmt.QueryRowContext(ctx).Scan(&cp.Seq, &state, &cp.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if j.metricsHook != nil {
				j.metricsHook.OnLoadCheckpoint(time.Since(start), nil)
			}
			return nil, nil
		}
		if j.metricsHook != nil {
			j.metricsHook.OnLoadCheckpoint(time.Since(start), err)
		}
		return nil, fmt.Errorf("sqlite: load checkpoint: %w", err)
	}
	cp.State = state

	if j.metricsHook != nil {
		j.metricsHook.OnLoadCheckpoint(time.Since(start), nil)
	}

	return cp, nil
}

// Close closes the database connection and releases resources.
// Prepared statement close errors are ignored as they cannot fail in
// practice with SQLite (the driver handles cleanup when the connection
// closes).
func (j *Journal) Close() error {
	stmts := []*sql.Stmt{
		j.recordStmt,
		j.loadStmt,
		j.loadFromStmt,
		j.positionStmt,
		j.saveCheckpointStmt,
		j.latestCheckpointStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}

	if j.logger != nil {
		j.logger.Info("closing sqlite journal")
	}

	return j.db.Close()
}

// Stream returns entries starting at from using cursor-based iteration,
// keeping only one row in memory at a time. The rows are closed when the
// iteration completes, the consumer breaks out of the loop, or the context
// is cancelled.
func (j *Journal) Stream(ctx context.Context, from int64) iter.Seq2[*tea.Entry, error] {
	return func(yield func(*tea.Entry, error) bool) {
		start := time.Now()
		var count int
		var iterErr error

		defer func() {
			if j.metricsHook != nil {
				j.metricsHook.OnLoad(time.Since(start), count, iterErr)
			}
		}()

		rows, err := j.loadFromStmt.QueryContext(ctx, from)
		if err != nil {
			iterErr = fmt.Errorf("sqlite: stream entries: %w", err)
			yield(nil, iterErr)
			return
		}
		defer rows.Close()

		for rows.Next() {
			select {
			case <-ctx.Done():
				iterErr = ctx.Err()
				yield(nil, iterErr)
				return
			default:
			}

			entry := &tea.Entry{}
			var data, state []byte
			if err := rows.Scan(&entry.Seq, &entry.Action, &data, &state, &entry.Timestamp); err != nil {
				iterErr = fmt.Errorf("sqlite: scan entry: %w", err)
				yield(nil, iterErr)
				return
			}
			entry.Data = data
			entry.State = state

			count++
			if !yield(entry, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			iterErr = fmt.Errorf("sqlite: iterate entries: %w", err)
			yield(nil, iterErr)
			return
		}

		if j.logger != nil {
			j.logger.Debug("streamed entries", "from", from, "count", count)
		}
	}
}
