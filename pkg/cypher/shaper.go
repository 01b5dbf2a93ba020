package cypher

import "github.com/orneryd/leangraph/pkg/convert"

// shapeRows converts the executor's final row-set into the public Result
// shape (spec.md §4.5): node/edge bindings flatten to their properties map
// directly (Neo4j-3.5 compatibility — labels(n)/type(r) are the accessors
// for metadata, not a wrapper object), paths render as a nodes/edges
// structure, and scalar numerics are normalized to an integer when exactly
// representable.
func shapeRows(rows RowSet, cols []string, ec *evalCtx) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		shaped := make(map[string]any, len(cols))
		for _, col := range cols {
			rv, ok := row[col]
			if !ok {
				shaped[col] = nil
				continue
			}
			v, err := shapeRowVal(rv, ec)
			if err != nil {
				return nil, err
			}
			shaped[col] = v
		}
		out = append(out, shaped)
	}
	return out, nil
}

func shapeRowVal(rv RowVal, ec *evalCtx) (any, error) {
	switch rv.Kind {
	case VarNode:
		if rv.ID == "" {
			return nil, nil
		}
		n, err := ec.cache.node(rv.ID)
		if err != nil {
			return nil, err
		}
		return shapeProperties(n.Properties), nil
	case VarEdge:
		if rv.ID == "" {
			return nil, nil
		}
		e, err := ec.cache.edge(rv.ID)
		if err != nil {
			return nil, err
		}
		return shapeProperties(e.Properties), nil
	case VarPath:
		pv, err := materializePath(rv, ec)
		if err != nil {
			return nil, err
		}
		return shapePath(pv), nil
	default:
		return shapeValue(rv.Value), nil
	}
}

func shapeProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = shapeValue(v)
	}
	return out
}

func shapePath(pv PathValue) map[string]any {
	nodes := make([]map[string]any, len(pv.Nodes))
	for i, n := range pv.Nodes {
		nodes[i] = map[string]any{
			"id":         n.ID,
			"labels":     toAnySlice(n.Labels),
			"properties": shapeProperties(n.Properties),
		}
	}
	edges := make([]map[string]any, len(pv.Edges))
	for i, e := range pv.Edges {
		edges[i] = map[string]any{
			"id":         e.ID,
			"type":       e.Type,
			"properties": shapeProperties(e.Properties),
		}
	}
	return map[string]any{"nodes": nodes, "edges": edges}
}

// shapeValue recursively normalizes a materialized evaluator value for the
// public Result: NodeValue/EdgeValue/PathValue collapse to their shaped
// form even when nested inside a list or map (e.g. collect(n)), and every
// numeric scalar is normalized per spec.md §4.5/§9 "Numeric precision".
func shapeValue(v any) any {
	switch x := v.(type) {
	case NodeValue:
		return shapeProperties(x.Properties)
	case EdgeValue:
		return shapeProperties(x.Properties)
	case PathValue:
		return shapePath(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = shapeValue(item)
		}
		return out
	case map[string]any:
		return shapeProperties(x)
	case float64, float32:
		return normalizeNumber(x)
	default:
		return x
	}
}

// normalizeNumber collapses a float that represents a whole number back to
// an int64, preserving the caller's integer/double distinction wherever
// the value is exactly representable (spec.md §9).
func normalizeNumber(v any) any {
	f, ok := convert.ToFloat64(v)
	if !ok {
		return v
	}
	if f == float64(int64(f)) {
		return int64(f)
	}
	return f
}
