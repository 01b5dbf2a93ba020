package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/orneryd/leangraph/pkg/config"
)

var logger = log.New(os.Stderr, "[storage] ", log.LstdFlags)

// Engine is a handle to one LeanGraph database. It owns the underlying
// *sql.DB connection, the prepared-statement cache, and the configured
// limits (variable-length path depth cap, UNWIND batch size) the Cypher
// executor consults. One Engine corresponds to one "logical database" in
// spec.md §5 — each handle serializes its own queries and owns resources
// that are not shared across handles.
type Engine struct {
	db     *sql.DB
	cache  *statementCache
	Config *config.Config
}

// Open creates (or attaches to) a LeanGraph database at cfg.DataPath and
// bootstraps its schema if it does not already exist.
func Open(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("opening engine: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", cfg.DataPath, err)
	}
	// SQLite allows only one writer at a time; a single shared connection
	// keeps every statement on one session and lets foreign_keys pragma
	// state and prepared statements stay valid.
	db.SetMaxOpenConns(1)

	e := &Engine{
		db:     db,
		cache:  newStatementCache(cfg.StatementCacheSize),
		Config: cfg,
	}
	if err := e.bootstrap(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}
	return e, nil
}

// Close releases the underlying connection and invalidates the prepared
// statement cache (spec.md §5: "invalidated on ... handle close").
func (e *Engine) Close() error {
	e.cache.invalidate()
	return e.db.Close()
}

// NewID generates a new 128-bit opaque node/edge identifier (spec.md §3.1).
func (e *Engine) NewID() string {
	return uuid.NewString()
}

// BeginTx starts a new transaction. Every LeanGraph query runs under exactly
// one engine transaction (spec.md §5 "Transactions"): commit on successful
// completion of the final clause, rollback on any earlier failure.
func (e *Engine) BeginTx(ctx context.Context) (*Tx, error) {
	sqlTx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{engine: e, sqlTx: sqlTx}, nil
}

// InvalidateCache drops every cached prepared statement. Call after any DDL
// (schema change) so stale plans are never reused.
func (e *Engine) InvalidateCache() {
	e.cache.invalidate()
}
