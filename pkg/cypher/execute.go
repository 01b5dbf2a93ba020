package cypher

import (
	"context"
	"time"

	"github.com/orneryd/leangraph/pkg/storage"
)

// Meta is the non-row portion of a Result (spec.md §6.1's
// Result.Ok.meta: {count, elapsed_ms}, plus SPEC_FULL.md §C.3's optional
// write-stats addition).
type Meta struct {
	Count     int            `json:"count"`
	ElapsedMS float64        `json:"elapsed_ms"`
	Stats     *QueryStats    `json:"stats,omitempty"`
	Plan      *ExecutionPlan `json:"plan,omitempty"`
}

// Result is LeanGraph's public query outcome (spec.md §6.1). A failed query
// never populates Result — Execute returns (nil, error) instead, using the
// typed errors in errors.go rather than a literal Err{message, position}
// variant, since that is how Go surfaces structured failures idiomatically.
type Result struct {
	Rows []map[string]any `json:"rows"`
	Meta Meta             `json:"meta"`
}

func isWriteQuery(q *Query) bool {
	for _, c := range q.Clauses {
		switch c.(type) {
		case *CreateClause, *MergeClause, *SetClause, *RemoveClause, *DeleteClause:
			return true
		}
	}
	return false
}

// Execute runs one Cypher statement end to end: tokenize (inside Parse) →
// parse → translate/execute clause-by-clause → shape the final row-set,
// all within a single storage transaction committed on success and rolled
// back on any failure (spec.md §6.1's commit/rollback contract). A leading
// EXPLAIN short-circuits before any transaction is opened and returns the
// compiled plan instead of running the query (SPEC_FULL.md §C.1).
func Execute(ctx context.Context, eng *storage.Engine, queryText string, params map[string]any) (*Result, error) {
	start := time.Now()

	q, err := Parse(queryText)
	if err != nil {
		return nil, err
	}
	for k, v := range q.Parameters {
		if params == nil {
			params = map[string]any{}
		}
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}

	if q.Explain {
		plan, err := buildExplainPlan(queryText, q, eng.Config)
		if err != nil {
			return nil, err
		}
		return &Result{
			Rows: nil,
			Meta: Meta{Count: 0, ElapsedMS: elapsedMS(start), Plan: plan},
		}, nil
	}

	tx, err := eng.BeginTx(ctx)
	if err != nil {
		return nil, err
	}

	result, err := executeWithTx(ctx, eng, tx, q, params)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result.Meta.ElapsedMS = elapsedMS(start)
	return result, nil
}

func executeWithTx(ctx context.Context, eng *storage.Engine, tx *storage.Tx, q *Query, params map[string]any) (*Result, error) {
	cache := newPropCache(ctx, tx)
	rows, proj, stats, err := runQueryWithUnion(ctx, eng, tx, cache, q, params)
	if err != nil {
		return nil, err
	}

	var outRows []map[string]any
	if proj != nil {
		ec := &evalCtx{ctx: ctx, tx: tx, cache: cache, params: params, maxPathDepth: eng.Config.MaxPathDepth}
		outRows, err = shapeRows(rows, proj.Columns, ec)
		if err != nil {
			return nil, err
		}
	}

	meta := Meta{Count: len(outRows)}
	if isWriteQuery(q) {
		meta.Stats = stats
	}
	return &Result{Rows: outRows, Meta: meta}, nil
}

// runQueryWithUnion executes a query's clause list, then recurses into any
// trailing UNION [ALL] branch and combines row-sets, de-duplicating unless
// UNION ALL was requested (spec.md §3.2's clause grammar names UNION as a
// query-level combinator, not a clause). All branches share one propCache
// so repeated node/edge lookups across branches still hit the cache, and
// write statistics accumulate across branches into a single QueryStats.
func runQueryWithUnion(ctx context.Context, eng *storage.Engine, tx *storage.Tx, cache *propCache, q *Query, params map[string]any) (RowSet, *projection, *QueryStats, error) {
	ex := &executor{ctx: ctx, tx: tx, eng: eng, params: params, cache: cache}
	rows, proj, err := ex.run(q)
	if err != nil {
		return nil, nil, nil, err
	}
	stats := ex.stats
	if q.Union == nil {
		return rows, proj, &stats, nil
	}

	otherRows, otherProj, otherStats, err := runQueryWithUnion(ctx, eng, tx, cache, q.Union.Query, params)
	if err != nil {
		return nil, nil, nil, err
	}
	if proj == nil || otherProj == nil || len(proj.Columns) != len(otherProj.Columns) {
		return nil, nil, nil, &SemanticError{Message: "UNION branches must return the same columns"}
	}
	stats.NodesCreated += otherStats.NodesCreated
	stats.NodesDeleted += otherStats.NodesDeleted
	stats.EdgesCreated += otherStats.EdgesCreated
	stats.EdgesDeleted += otherStats.EdgesDeleted
	stats.PropertiesSet += otherStats.PropertiesSet
	stats.LabelsAdded += otherStats.LabelsAdded

	combined := append(append(RowSet{}, rows...), otherRows...)
	if !q.Union.All {
		combined = dedupRows(combined, proj.Columns)
	}
	return combined, proj, &stats, nil
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
