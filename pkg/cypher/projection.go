package cypher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/leangraph/pkg/convert"
)

// execProjection implements RETURN/WITH: per spec.md §4.3.3, a ReturnItem
// list containing any aggregate function triggers implicit GROUP BY over
// every non-aggregate item; otherwise each input row projects to exactly
// one output row. isWith controls whether a plain VariableRef item passes
// its original node/edge/path binding through unwrapped (so a later MATCH
// can still traverse from it) or whether every item becomes a plain value
// (RETURN is always terminal, so this distinction doesn't matter there,
// but the pass-through is harmless either way).
func (ex *executor) execProjection(rows RowSet, items []ReturnItem, distinct bool, where Expression, orderBy []OrderItem, skipExpr, limitExpr Expression, isWith bool) (RowSet, *projection, error) {
	cols := make([]string, len(items))
	for i, item := range items {
		cols[i] = columnName(item)
	}

	hasAggregate := false
	for _, item := range items {
		if fc, ok := item.Expression.(*FunctionCall); ok && aggregateFunctions[lower(fc.Name)] {
			hasAggregate = true
			break
		}
	}

	var projected RowSet
	var err error
	if hasAggregate {
		projected, err = ex.groupAndAggregate(rows, items, cols)
	} else {
		projected, err = ex.projectPlain(rows, items, cols, isWith)
	}
	if err != nil {
		return nil, nil, err
	}

	if where != nil {
		var filtered RowSet
		for _, row := range projected {
			v, err := evalExpression(where, row, ex.evalCtx())
			if err != nil {
				return nil, nil, err
			}
			if ok, _ := asBool(v); ok {
				filtered = append(filtered, row)
			}
		}
		projected = filtered
	}

	if distinct {
		projected = dedupRows(projected, cols)
	}

	if len(orderBy) > 0 {
		if err := ex.sortRows(projected, orderBy); err != nil {
			return nil, nil, err
		}
	}

	if skipExpr != nil {
		n, err := ex.evalIntLiteral(skipExpr)
		if err != nil {
			return nil, nil, err
		}
		if n > len(projected) {
			n = len(projected)
		}
		projected = projected[n:]
	}
	if limitExpr != nil {
		n, err := ex.evalIntLiteral(limitExpr)
		if err != nil {
			return nil, nil, err
		}
		if n < len(projected) {
			projected = projected[:n]
		}
	}

	return projected, &projection{Columns: cols}, nil
}

func columnName(item ReturnItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	return item.SourceText
}


func (ex *executor) projectPlain(rows RowSet, items []ReturnItem, cols []string, isWith bool) (RowSet, error) {
	var out RowSet
	for _, row := range rows {
		newRow := Row{}
		for i, item := range items {
			if isWith {
				if vref, ok := item.Expression.(*VariableRef); ok {
					if rv, ok := row[vref.Name]; ok {
						newRow[cols[i]] = rv
						continue
					}
				}
			}
			v, err := evalExpression(item.Expression, row, ex.evalCtx())
			if err != nil {
				return nil, err
			}
			newRow[cols[i]] = RowVal{Kind: VarValue, Value: v}
		}
		out = append(out, newRow)
	}
	return out, nil
}

// groupAndAggregate buckets rows by every non-aggregate item's evaluated
// value, then reduces each aggregate item over its bucket (spec.md
// §4.3.3's implicit GROUP BY rule).
func (ex *executor) groupAndAggregate(rows RowSet, items []ReturnItem, cols []string) (RowSet, error) {
	type bucket struct {
		keyRow Row
		rows   []Row
	}
	order := []string{}
	buckets := map[string]*bucket{}

	for _, row := range rows {
		var keyParts []string
		keyRow := Row{}
		for i, item := range items {
			if fc, ok := item.Expression.(*FunctionCall); ok && aggregateFunctions[lower(fc.Name)] {
				continue
			}
			v, err := evalExpression(item.Expression, row, ex.evalCtx())
			if err != nil {
				return nil, err
			}
			keyRow[cols[i]] = RowVal{Kind: VarValue, Value: v}
			keyParts = append(keyParts, fmt.Sprint(v))
		}
		key := strings.Join(keyParts, "\x1f")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{keyRow: keyRow}
			buckets[key] = b
			order = append(order, key)
		}
		b.rows = append(b.rows, row)
	}
	if len(buckets) == 0 && len(rows) == 0 {
		// No input rows at all: aggregates still produce one row, e.g.
		// `MATCH (n) WHERE false RETURN count(n)` yields count = 0.
		order = []string{""}
		buckets[""] = &bucket{keyRow: Row{}, rows: nil}
	}

	var out RowSet
	for _, key := range order {
		b := buckets[key]
		newRow := Row{}
		for i, item := range items {
			if fc, ok := item.Expression.(*FunctionCall); ok && aggregateFunctions[lower(fc.Name)] {
				v, err := evalAggregate(fc, b.rows, ex.evalCtx())
				if err != nil {
					return nil, err
				}
				newRow[cols[i]] = RowVal{Kind: VarValue, Value: v}
				continue
			}
			newRow[cols[i]] = b.keyRow[cols[i]]
		}
		out = append(out, newRow)
	}
	return out, nil
}

func dedupRows(rows RowSet, cols []string) RowSet {
	seen := map[string]bool{}
	var out RowSet
	for _, row := range rows {
		var parts []string
		for _, c := range cols {
			parts = append(parts, fmt.Sprint(rowValueForKey(row[c])))
		}
		key := strings.Join(parts, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func rowValueForKey(rv RowVal) any {
	switch rv.Kind {
	case VarNode, VarEdge:
		return rv.ID
	case VarPath:
		return strings.Join(rv.PathNodes, ",") + "|" + strings.Join(rv.PathEdges, ",")
	default:
		return rv.Value
	}
}

func (ex *executor) sortRows(rows RowSet, orderBy []OrderItem) error {
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for _, term := range orderBy {
			vi, err := evalExpression(term.Expression, rows[i], ex.evalCtx())
			if err != nil {
				sortErr = err
				return false
			}
			vj, err := evalExpression(term.Expression, rows[j], ex.evalCtx())
			if err != nil {
				sortErr = err
				return false
			}
			if valuesEqual(vi, vj) {
				continue
			}
			lt, err := compareValues(vi, vj, "<")
			if err != nil {
				sortErr = err
				return false
			}
			if term.Descending {
				return !lt
			}
			return lt
		}
		return false
	})
	return sortErr
}

func (ex *executor) evalIntLiteral(expr Expression) (int, error) {
	v, err := evalExpression(expr, Row{}, ex.evalCtx())
	if err != nil {
		return 0, err
	}
	n, ok := convert.ToInt64(v)
	if !ok {
		return 0, &SemanticError{Message: "SKIP/LIMIT requires an integer"}
	}
	return int(n), nil
}
