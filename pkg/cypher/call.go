package cypher

import "fmt"

// execIntrospectionCall implements the three CALL procedures spec.md §6.1
// mandates: db.labels, db.relationshipTypes, db.propertyKeys. Each is a
// read-only aggregate over the nodes/edges tables, not a user-defined
// procedure registry — LeanGraph has none (spec.md §1 scopes procedures out
// beyond these three).
func execIntrospectionCall(ex *executor, rows RowSet, c *CallClause) (RowSet, *projection, error) {
	var values []string
	var err error
	switch c.Procedure {
	case "db.labels":
		values, err = ex.distinctJSONArrayValues(`SELECT label FROM nodes`)
	case "db.relationshipTypes":
		values, err = ex.distinctScalar(`SELECT DISTINCT type FROM edges ORDER BY type`)
	case "db.propertyKeys":
		values, err = ex.distinctPropertyKeys()
	default:
		return nil, nil, &SemanticError{Message: fmt.Sprintf("unknown procedure %q", c.Procedure)}
	}
	if err != nil {
		return nil, nil, err
	}

	col := "value"
	if len(c.Yields) > 0 {
		col = c.Yields[0]
	}

	var out RowSet
	for _, row := range rows {
		for _, v := range values {
			newRow := row.Clone()
			newRow[col] = RowVal{Kind: VarValue, Value: v}
			out = append(out, newRow)
		}
	}
	return out, &projection{Columns: []string{col}}, nil
}

func (ex *executor) distinctScalar(query string) ([]string, error) {
	rows, err := ex.tx.QueryContext(ex.ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, &InternalError{Message: err.Error()}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (ex *executor) distinctJSONArrayValues(query string) ([]string, error) {
	rows, err := ex.tx.QueryContext(ex.ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seen := map[string]bool{}
	var out []string
	for rows.Next() {
		var labelJSON string
		if err := rows.Scan(&labelJSON); err != nil {
			return nil, &InternalError{Message: err.Error()}
		}
		var labels []string
		if err := decodeJSON(labelJSON, &labels); err != nil {
			return nil, err
		}
		for _, l := range labels {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	sortStrings(out)
	return out, rows.Err()
}

func (ex *executor) distinctPropertyKeys() ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, table := range []string{"nodes", "edges"} {
		rows, err := ex.tx.QueryContext(ex.ctx, `SELECT properties FROM `+table)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var propsJSON string
			if err := rows.Scan(&propsJSON); err != nil {
				rows.Close()
				return nil, &InternalError{Message: err.Error()}
			}
			var props map[string]any
			if err := decodeJSON(propsJSON, &props); err != nil {
				rows.Close()
				return nil, err
			}
			for k := range props {
				if !seen[k] {
					seen[k] = true
					out = append(out, k)
				}
			}
		}
		rows.Close()
	}
	sortStrings(out)
	return out, nil
}
