package cypher

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/orneryd/leangraph/pkg/convert"
	"github.com/orneryd/leangraph/pkg/storage"
)

// QueryStats reports the mutations a write-classified query performed
// (SPEC_FULL.md §C.3 — the teacher's ExecuteResult.Stats, additive to
// spec.md §6.1's mandatory {count, elapsed_ms}).
type QueryStats struct {
	NodesCreated  int
	NodesDeleted  int
	EdgesCreated  int
	EdgesDeleted  int
	PropertiesSet int
	LabelsAdded   int
}

// executor runs one query's clause list against a single engine
// transaction, threading a row-set (spec.md §3.4) between clause phases.
type executor struct {
	ctx       context.Context
	tx        *storage.Tx
	eng       *storage.Engine
	params    map[string]any
	cache     *propCache
	stats     QueryStats
	limitHint int
}

func newExecutor(ctx context.Context, eng *storage.Engine, tx *storage.Tx, params map[string]any) *executor {
	return &executor{
		ctx:    ctx,
		tx:     tx,
		eng:    eng,
		params: params,
		cache:  newPropCache(ctx, tx),
	}
}

func (ex *executor) evalCtx() *evalCtx {
	return &evalCtx{ctx: ex.ctx, tx: ex.tx, cache: ex.cache, params: ex.params, maxPathDepth: ex.eng.Config.MaxPathDepth}
}

// run executes every clause in order, returning the final row-set plus the
// projection that should be shaped into the public Result (nil meaning
// "this query produced no RETURN/WITH projection", i.e. a pure write).
func (ex *executor) run(q *Query) (RowSet, *projection, error) {
	rows := RowSet{Row{}}
	var lastProjection *projection
	ex.limitHint = staticQueryLimit(q, ex.evalCtx())

	for _, clause := range q.Clauses {
		var err error
		switch c := clause.(type) {
		case *MatchClause:
			rows, err = ex.execMatch(rows, c.Patterns, c.Where, c.Optional)
		case *CreateClause:
			rows, err = ex.execCreate(rows, c.Patterns)
		case *MergeClause:
			rows, err = ex.execMerge(rows, c)
		case *SetClause:
			rows, err = ex.execSet(rows, c.Items)
		case *RemoveClause:
			rows, err = ex.execRemove(rows, c.Items)
		case *DeleteClause:
			rows, err = ex.execDelete(rows, c.Variables, c.Detach)
		case *UnwindClause:
			rows, err = ex.execUnwind(rows, c)
		case *WithClause:
			rows, lastProjection, err = ex.execProjection(rows, c.Items, c.Distinct, c.Where, c.OrderBy, c.Skip, c.Limit, true)
		case *ReturnClause:
			rows, lastProjection, err = ex.execProjection(rows, c.Items, c.Distinct, nil, c.OrderBy, c.Skip, c.Limit, false)
		case *CallClause:
			rows, lastProjection, err = ex.execCall(rows, c)
		default:
			err = &InternalError{Message: fmt.Sprintf("unhandled clause type %T", clause)}
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return rows, lastProjection, nil
}

// projection is a finished RETURN/WITH shape: the ordered list of output
// column names. The projected rows themselves are returned separately as
// the RowSet.
type projection struct {
	Columns []string
}

// staticQueryLimit looks for this query's enclosing LIMIT — the last
// RETURN/WITH clause that carries one — and evaluates it against an empty
// row, so only a literal or a query parameter counts (anything referencing
// a bound variable isn't known until the row producing it exists, so it
// can't inform a MATCH compiled ahead of that row). Returns 0 when no such
// statically-known limit exists; spec.md §4.3.4 scopes the recursive-CTE
// cutoff to this case only.
func staticQueryLimit(q *Query, ec *evalCtx) int {
	var limitExpr Expression
	for _, clause := range q.Clauses {
		switch c := clause.(type) {
		case *ReturnClause:
			if c.Limit != nil {
				limitExpr = c.Limit
			}
		case *WithClause:
			if c.Limit != nil {
				limitExpr = c.Limit
			}
		}
	}
	if limitExpr == nil {
		return 0
	}
	v, err := evalExpression(limitExpr, Row{}, ec)
	if err != nil {
		return 0
	}
	n, ok := convert.ToInt64(v)
	if !ok || n <= 0 {
		return 0
	}
	return int(n)
}

func (ex *executor) execMatch(rows RowSet, patterns []Pattern, where Expression, optional bool) (RowSet, error) {
	var out RowSet
	for _, row := range rows {
		psql, err := buildMatchSQL(patterns, where, optional, row, ex.params, ex.eng.Config.MaxPathDepth, ex.limitHint)
		if err != nil {
			return nil, err
		}
		matched, err := ex.scanMatchRows(row, psql)
		if err != nil {
			return nil, err
		}
		out = append(out, matched...)
	}
	return out, nil
}

func (ex *executor) scanMatchRows(base Row, psql *patternSQL) (RowSet, error) {
	sqlRows, err := ex.tx.QueryContext(ex.ctx, psql.SQL, psql.Args...)
	if err != nil {
		return nil, err
	}
	defer sqlRows.Close()

	n := len(psql.ResultCols)
	scanDest := make([]any, n)
	scanVals := make([]sql.NullString, n)
	for i := range scanVals {
		scanDest[i] = &scanVals[i]
	}
	colIndex := make(map[string]int, n)
	for i, c := range psql.ResultCols {
		colIndex[c] = i
	}

	var out RowSet
	for sqlRows.Next() {
		if err := sqlRows.Scan(scanDest...); err != nil {
			return nil, &InternalError{Message: err.Error()}
		}
		row := base.Clone()
		for name, pv := range psql.Vars {
			switch pv.Kind {
			case VarNode, VarEdge:
				idx, ok := colIndex[sqlSafeColName(pv.Col)]
				if !ok {
					continue
				}
				row[name] = RowVal{Kind: pv.Kind, ID: scanVals[idx].String}
			case VarPath:
				rv := RowVal{Kind: VarPath}
				for _, col := range pv.PathNodeCols {
					if idx, ok := colIndex[sqlSafeColName(col)]; ok {
						rv.PathNodes = append(rv.PathNodes, scanVals[idx].String)
					}
				}
				for _, col := range pv.PathEdgeCols {
					if idx, ok := colIndex[sqlSafeColName(col)]; ok {
						rv.PathEdges = append(rv.PathEdges, scanVals[idx].String)
					}
				}
				row[name] = rv
			}
		}
		out = append(out, row)
	}
	return out, sqlRows.Err()
}

// execCreate runs CREATE across every row in the current row-set with
// batched multi-row INSERTs (spec.md §4.4.5): an UNWIND feeding straight
// into a CREATE produces one row per list element here, and issuing a
// single-row INSERT per row would mean one round trip per element. Instead
// every node (then every edge) at a given pattern position across all rows
// is grouped into INSERT statements capped at Config.UnwindBatchSize
// parameter groups apiece.
func (ex *executor) execCreate(rows RowSet, patterns []Pattern) (RowSet, error) {
	out := make(RowSet, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	if err := ex.createPatternsBatch(out, patterns); err != nil {
		return nil, err
	}
	return out, nil
}

type pendingNodeInsert struct {
	id, labelJSON, propsJSON string
}

type pendingEdgeInsert struct {
	id, typ, sourceID, targetID, propsJSON string
}

// createPatternsBatch mirrors createPatterns' per-row node-then-edge
// ordering (so an edge sees the id of a node created earlier in the same
// pattern) but defers each position's INSERTs until every row's values are
// known, then flushes them in Config.UnwindBatchSize-sized multi-row
// statements.
func (ex *executor) createPatternsBatch(rows []Row, patterns []Pattern) error {
	batchSize := ex.eng.Config.UnwindBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	for _, pat := range patterns {
		aliasIDs := make([][]string, len(rows))
		for i := range rows {
			aliasIDs[i] = make([]string, len(pat.Nodes))
		}

		for ni, node := range pat.Nodes {
			var pending []pendingNodeInsert
			for ri, row := range rows {
				if node.Variable != "" {
					if rv, ok := row[node.Variable]; ok && rv.Kind == VarNode && rv.ID != "" {
						aliasIDs[ri][ni] = rv.ID
						continue
					}
				}
				id := ex.eng.NewID()
				props, err := ex.evalPropertyMap(node.Properties, row)
				if err != nil {
					return err
				}
				labelJSON, err := encodeJSON(node.Labels)
				if err != nil {
					return err
				}
				propsJSON, err := encodeJSON(props)
				if err != nil {
					return err
				}
				aliasIDs[ri][ni] = id
				if node.Variable != "" {
					row[node.Variable] = RowVal{Kind: VarNode, ID: id}
				}
				pending = append(pending, pendingNodeInsert{id, labelJSON, propsJSON})
			}
			if err := ex.flushNodeInserts(pending, batchSize); err != nil {
				return err
			}
		}

		for ei, edge := range pat.Edges {
			var pending []pendingEdgeInsert
			for ri, row := range rows {
				id := ex.eng.NewID()
				sourceID, targetID := aliasIDs[ri][ei], aliasIDs[ri][ei+1]
				if edge.Direction == EdgeIn {
					sourceID, targetID = targetID, sourceID
				}
				typ := ""
				if len(edge.Types) > 0 {
					typ = edge.Types[0]
				}
				props, err := ex.evalPropertyMap(edge.Properties, row)
				if err != nil {
					return err
				}
				propsJSON, err := encodeJSON(props)
				if err != nil {
					return err
				}
				if edge.Variable != "" {
					row[edge.Variable] = RowVal{Kind: VarEdge, ID: id}
				}
				pending = append(pending, pendingEdgeInsert{id, typ, sourceID, targetID, propsJSON})
			}
			if err := ex.flushEdgeInserts(pending, batchSize); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ex *executor) flushNodeInserts(pending []pendingNodeInsert, batchSize int) error {
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]
		var sb strings.Builder
		sb.WriteString(`INSERT INTO nodes (id, label, properties, created_at) VALUES `)
		args := make([]any, 0, len(chunk)*3)
		for i, n := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, datetime('now'))")
			args = append(args, n.id, n.labelJSON, n.propsJSON)
		}
		if _, err := ex.tx.ExecContext(ex.ctx, sb.String(), args...); err != nil {
			return err
		}
		ex.stats.NodesCreated += len(chunk)
	}
	return nil
}

func (ex *executor) flushEdgeInserts(pending []pendingEdgeInsert, batchSize int) error {
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]
		var sb strings.Builder
		sb.WriteString(`INSERT INTO edges (id, type, source_id, target_id, properties, created_at) VALUES `)
		args := make([]any, 0, len(chunk)*5)
		for i, e := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?, ?, datetime('now'))")
			args = append(args, e.id, e.typ, e.sourceID, e.targetID, e.propsJSON)
		}
		if _, err := ex.tx.ExecContext(ex.ctx, sb.String(), args...); err != nil {
			return err
		}
		ex.stats.EdgesCreated += len(chunk)
	}
	return nil
}

// createPatterns inserts every node/edge a CREATE pattern introduces into
// row, in pattern order, so an edge referencing a node created earlier in
// the same pattern sees its freshly minted id (spec.md §4.4.2).
func (ex *executor) createPatterns(row Row, patterns []Pattern) error {
	for _, pat := range patterns {
		aliasIDs := make([]string, len(pat.Nodes))
		for i, node := range pat.Nodes {
			if node.Variable != "" {
				if rv, ok := row[node.Variable]; ok && (rv.Kind == VarNode) && rv.ID != "" {
					aliasIDs[i] = rv.ID
					continue
				}
			}
			id := ex.eng.NewID()
			props, err := ex.evalPropertyMap(node.Properties, row)
			if err != nil {
				return err
			}
			labelJSON, err := encodeJSON(node.Labels)
			if err != nil {
				return err
			}
			propsJSON, err := encodeJSON(props)
			if err != nil {
				return err
			}
			if _, err := ex.tx.ExecContext(ex.ctx,
				`INSERT INTO nodes (id, label, properties, created_at) VALUES (?, ?, ?, datetime('now'))`,
				id, labelJSON, propsJSON); err != nil {
				return err
			}
			ex.stats.NodesCreated++
			aliasIDs[i] = id
			if node.Variable != "" {
				row[node.Variable] = RowVal{Kind: VarNode, ID: id}
			}
		}
		for i, edge := range pat.Edges {
			id := ex.eng.NewID()
			sourceID, targetID := aliasIDs[i], aliasIDs[i+1]
			if edge.Direction == EdgeIn {
				sourceID, targetID = targetID, sourceID
			}
			typ := ""
			if len(edge.Types) > 0 {
				typ = edge.Types[0]
			}
			props, err := ex.evalPropertyMap(edge.Properties, row)
			if err != nil {
				return err
			}
			propsJSON, err := encodeJSON(props)
			if err != nil {
				return err
			}
			if _, err := ex.tx.ExecContext(ex.ctx,
				`INSERT INTO edges (id, type, source_id, target_id, properties, created_at) VALUES (?, ?, ?, ?, ?, datetime('now'))`,
				id, typ, sourceID, targetID, propsJSON); err != nil {
				return err
			}
			ex.stats.EdgesCreated++
			if edge.Variable != "" {
				row[edge.Variable] = RowVal{Kind: VarEdge, ID: id}
			}
		}
	}
	return nil
}

func (ex *executor) evalPropertyMap(m map[string]Expression, row Row) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, expr := range m {
		v, err := evalExpression(expr, row, ex.evalCtx())
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// execMerge implements MATCH-then-conditional-CREATE: the pattern is
// matched as a read; rows that matched run ON MATCH SET, rows that didn't
// get the pattern created and then run ON CREATE SET (spec.md §4.4.4).
func (ex *executor) execMerge(rows RowSet, c *MergeClause) (RowSet, error) {
	var out RowSet
	for _, row := range rows {
		psql, err := buildMatchSQL([]Pattern{c.Pattern}, nil, false, row, ex.params, ex.eng.Config.MaxPathDepth, 0)
		if err != nil {
			return nil, err
		}
		matched, err := ex.scanMatchRows(row, psql)
		if err != nil {
			return nil, err
		}
		if len(matched) > 0 {
			for _, mrow := range matched {
				if err := ex.applySetItems(mrow, c.OnMatch); err != nil {
					return nil, err
				}
				out = append(out, mrow)
			}
			continue
		}
		newRow := row.Clone()
		if err := ex.createPatterns(newRow, []Pattern{c.Pattern}); err != nil {
			return nil, err
		}
		if err := ex.applySetItems(newRow, c.OnCreate); err != nil {
			return nil, err
		}
		out = append(out, newRow)
	}
	return out, nil
}

func (ex *executor) execSet(rows RowSet, items []SetItem) (RowSet, error) {
	for _, row := range rows {
		if err := ex.applySetItems(row, items); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (ex *executor) applySetItems(row Row, items []SetItem) error {
	for _, item := range items {
		rv, ok := row[item.Variable]
		if !ok || (rv.Kind != VarNode && rv.Kind != VarEdge) {
			return &SemanticError{Message: fmt.Sprintf("SET target %q is not a bound node or edge", item.Variable)}
		}
		if rv.ID == "" {
			continue // OPTIONAL MATCH null-fill: nothing to set
		}
		table := "nodes"
		if rv.Kind == VarEdge {
			table = "edges"
		}

		if len(item.AddLabels) > 0 {
			if rv.Kind != VarNode {
				return &SemanticError{Message: "labels can only be added to a node"}
			}
			for _, lbl := range item.AddLabels {
				if _, err := ex.tx.ExecContext(ex.ctx,
					`UPDATE nodes SET label = (
						SELECT json_group_array(DISTINCT value) FROM (
							SELECT value FROM json_each(label) UNION ALL SELECT ?
						)
					) WHERE id = ?`, lbl, rv.ID); err != nil {
					return err
				}
				ex.stats.LabelsAdded++
			}
			ex.cache.invalidateNode(rv.ID)
			continue
		}

		if item.Property == "" {
			props, err := evalExpression(item.Value, row, ex.evalCtx())
			if err != nil {
				return err
			}
			propsJSON, err := encodeJSON(props)
			if err != nil {
				return err
			}
			if _, err := ex.tx.ExecContext(ex.ctx,
				fmt.Sprintf(`UPDATE %s SET properties = ? WHERE id = ?`, table), propsJSON, rv.ID); err != nil {
				return err
			}
		} else {
			v, err := evalExpression(item.Value, row, ex.evalCtx())
			if err != nil {
				return err
			}
			if _, err := ex.tx.ExecContext(ex.ctx,
				fmt.Sprintf(`UPDATE %s SET properties = json_set(properties, '$.%s', json(?)) WHERE id = ?`, table, item.Property),
				jsonScalar(v), rv.ID); err != nil {
				return err
			}
		}
		ex.stats.PropertiesSet++
		if rv.Kind == VarNode {
			ex.cache.invalidateNode(rv.ID)
		} else {
			ex.cache.invalidateEdge(rv.ID)
		}
	}
	return nil
}

func (ex *executor) execRemove(rows RowSet, items []RemoveItem) (RowSet, error) {
	for _, row := range rows {
		for _, item := range items {
			rv, ok := row[item.Variable]
			if !ok || (rv.Kind != VarNode && rv.Kind != VarEdge) || rv.ID == "" {
				continue
			}
			table := "nodes"
			if rv.Kind == VarEdge {
				table = "edges"
			}
			if len(item.Labels) > 0 {
				if rv.Kind != VarNode {
					return nil, &SemanticError{Message: "labels can only be removed from a node"}
				}
				for _, lbl := range item.Labels {
					if _, err := ex.tx.ExecContext(ex.ctx,
						`UPDATE nodes SET label = (
							SELECT json_group_array(value) FROM json_each(label) WHERE value <> ?
						) WHERE id = ?`, lbl, rv.ID); err != nil {
						return nil, err
					}
				}
				ex.cache.invalidateNode(rv.ID)
				continue
			}
			if _, err := ex.tx.ExecContext(ex.ctx,
				fmt.Sprintf(`UPDATE %s SET properties = json_remove(properties, '$.%s') WHERE id = ?`, table, item.Property),
				rv.ID); err != nil {
				return nil, err
			}
			if rv.Kind == VarNode {
				ex.cache.invalidateNode(rv.ID)
			} else {
				ex.cache.invalidateEdge(rv.ID)
			}
		}
	}
	return rows, nil
}

// execDelete removes bound nodes/edges. DELETE on a node with remaining
// edges fails with a SemanticError unless DETACH was specified, in which
// case its edges are removed first (spec.md §4.4 DELETE semantics, §7).
func (ex *executor) execDelete(rows RowSet, vars []string, detach bool) (RowSet, error) {
	for _, row := range rows {
		for _, name := range vars {
			rv, ok := row[name]
			if !ok || rv.ID == "" {
				continue
			}
			if rv.Kind == VarEdge {
				if _, err := ex.tx.ExecContext(ex.ctx, `DELETE FROM edges WHERE id = ?`, rv.ID); err != nil {
					return nil, err
				}
				ex.stats.EdgesDeleted++
				ex.cache.invalidateEdge(rv.ID)
				continue
			}
			if rv.Kind != VarNode {
				continue
			}
			if detach {
				res, err := ex.tx.ExecContext(ex.ctx, `DELETE FROM edges WHERE source_id = ? OR target_id = ?`, rv.ID, rv.ID)
				if err != nil {
					return nil, err
				}
				if n, err := res.RowsAffected(); err == nil {
					ex.stats.EdgesDeleted += int(n)
				}
			} else {
				var count int
				r := ex.tx
				qrows, err := r.QueryContext(ex.ctx, `SELECT count(*) FROM edges WHERE source_id = ? OR target_id = ?`, rv.ID, rv.ID)
				if err != nil {
					return nil, err
				}
				if qrows.Next() {
					_ = qrows.Scan(&count)
				}
				qrows.Close()
				if count > 0 {
					return nil, &SemanticError{Message: fmt.Sprintf("cannot delete node %q: still has %d relationship(s); use DETACH DELETE", rv.ID, count)}
				}
			}
			if _, err := ex.tx.ExecContext(ex.ctx, `DELETE FROM nodes WHERE id = ?`, rv.ID); err != nil {
				return nil, err
			}
			ex.stats.NodesDeleted++
			ex.cache.invalidateNode(rv.ID)
		}
	}
	return rows, nil
}

func (ex *executor) execUnwind(rows RowSet, c *UnwindClause) (RowSet, error) {
	var out RowSet
	for _, row := range rows {
		v, err := evalExpression(c.Expression, row, ex.evalCtx())
		if err != nil {
			return nil, err
		}
		list, _ := v.([]any)
		for _, item := range list {
			newRow := row.Clone()
			newRow[c.As] = RowVal{Kind: VarValue, Value: item}
			out = append(out, newRow)
		}
	}
	return out, nil
}

func (ex *executor) execCall(rows RowSet, c *CallClause) (RowSet, *projection, error) {
	return execIntrospectionCall(ex, rows, c)
}
