package journal

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/statekit/internal/reducer"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - actions and checkpoints tables
const currentSchemaVersion = 1

// Journal is a durable dispatch log for one store.
type Journal struct {
	db              *sql.DB
	reg             *reducer.Registry
	logger          *slog.Logger
	checkpointEvery uint64

	mu      sync.Mutex
	lastErr error
}

// Option configures a Journal.
type Option func(*Journal)

// WithRegistry sets the registry used to encode checkpoints and to re-apply
// the journaled tail on Hydrate.
func WithRegistry(reg *reducer.Registry) Option {
	return func(j *Journal) {
		j.reg = reg
	}
}

// WithCheckpointEvery writes a checkpoint whenever the snapshot seq is a
// multiple of n. Zero disables automatic checkpoints. Requires WithRegistry.
func WithCheckpointEvery(n uint64) Option {
	return func(j *Journal) {
		j.checkpointEvery = n
	}
}

// WithLogger sets the logger for write failures. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) {
		if l != nil {
			j.logger = l
		}
	}
}

// Open creates or opens a journal database at path.
// Applies required pragmas and the schema. Safe to call on an existing file.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	j := &Journal{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(j)
	}
	if j.checkpointEvery > 0 && j.reg == nil {
		db.Close()
		return nil, fmt.Errorf("open journal: automatic checkpoints require a registry")
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Err returns the most recent error from a write made on behalf of the store.
// Observer callbacks cannot return errors, so they are kept here.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

func (j *Journal) setErr(err error) {
	j.mu.Lock()
	j.lastErr = err
	j.mu.Unlock()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
