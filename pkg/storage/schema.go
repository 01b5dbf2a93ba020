package storage

// schemaStatements create the two-table schema spec.md §6.2 requires: nodes
// and edges with JSON property columns, a foreign-key cascade from edges to
// nodes on both endpoints, and the indexes a label/type-filtered MATCH
// benefits from (spec.md §9 "Label storage and querying"). Each statement is
// executed individually rather than as one multi-statement string, since not
// every database/sql driver supports batching statements in a single Exec.
var schemaStatements = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS nodes (
		id         TEXT PRIMARY KEY,
		label      TEXT NOT NULL DEFAULT '[]',
		properties TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS edges (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		source_id  TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		target_id  TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		properties TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_label0 ON nodes(json_extract(label, '$[0]'))`,
	`CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id)`,
}

// bootstrap creates the schema if it does not already exist, and turns on
// foreign-key enforcement for the engine's single connection. It is
// idempotent and safe to call on every Open.
func (e *Engine) bootstrap() error {
	for _, stmt := range schemaStatements {
		if _, err := e.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
