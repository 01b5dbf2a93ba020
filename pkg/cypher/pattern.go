package cypher

import (
	"fmt"
	"strings"
)

// variableLengthFanOut is the average per-hop branching factor assumed when
// deriving the recursive-CTE row cutoff from an enclosing LIMIT (spec.md
// §4.3.4's "heuristic limit * fan_out cutoff"). There is no query
// statistics/cost-based planner to measure real fan-out (spec.md §1's
// Non-goals), so a fixed estimate stands in for one.
const variableLengthFanOut = 20

// patternVar describes one named pattern variable's SQL representation
// after a pattern has been compiled.
type patternVar struct {
	Kind VarKind
	Col  string // SELECT-list column alias, e.g. "n1.id"
	// path-only:
	PathNodeCols []string
	PathEdgeCols []string
}

// patternSQL is the compiled form of a MATCH/OPTIONAL MATCH pattern list:
// a single SELECT with one row per match, plus the column each named
// variable landed in.
type patternSQL struct {
	SQL  string
	Args []any
	Vars map[string]patternVar
	// ResultCols lists the SELECT list's column names in positional order,
	// matching what (*sql.Rows).Columns() will report, so the executor can
	// scan by position without re-deriving names from Vars.
	ResultCols []string
}

// joinSeg is one FROM/JOIN entry being assembled, carrying the ON-clause
// conditions specific to that entry (label/type/property filters, and,
// for the last segment of an OPTIONAL MATCH, the clause's WHERE).
type joinSeg struct {
	keyword string // "FROM", "JOIN", "LEFT JOIN", "CROSS JOIN"
	table   string // "nodes AS alias", or a carried-row subquery
	onCond  []string
}

func (s *joinSeg) render() string {
	if len(s.onCond) == 0 {
		return s.keyword + " " + s.table
	}
	if s.keyword == "FROM" || s.keyword == "CROSS JOIN" {
		// These entries take no ON clause of their own; an inner join against
		// a one-row table applies their filters at the same textual position,
		// so the bound args keep their placeholder order.
		return s.keyword + " " + s.table + " JOIN (SELECT 1) ON " + strings.Join(s.onCond, " AND ")
	}
	return s.keyword + " " + s.table + " ON " + strings.Join(s.onCond, " AND ")
}

// buildMatchSQL lowers one MATCH/OPTIONAL MATCH clause's pattern list (and
// its attached WHERE, if any) to a single parameterized SELECT, per spec.md
// §4.3.1/§4.3.2. carried holds variables already bound by earlier phases of
// the same query; they are filtered to a known id rather than re-joined
// freely. limitHint is the query's statically-known enclosing LIMIT, or 0
// if none is known; it bounds a variable-length edge's recursive CTE growth
// (spec.md §4.3.4) and is otherwise ignored.
func buildMatchSQL(patterns []Pattern, where Expression, optional bool, carried Row, params map[string]any, maxPathDepth int, limitHint int) (*patternSQL, error) {
	b := &patternBuilder{
		carried:   carried,
		params:    params,
		maxDepth:  maxPathDepth,
		limitHint: limitHint,
		vars:      map[string]patternVar{},
	}

	for pi, pat := range patterns {
		if err := b.addPattern(pat, pi == 0, optional); err != nil {
			return nil, err
		}
	}

	if where != nil {
		sql, args, err := CompileExpression(where, b.scope(), params)
		if err != nil {
			return nil, err
		}
		if optional && len(b.segments) > 0 {
			last := b.segments[len(b.segments)-1]
			last.onCond = append(last.onCond, sql)
			b.args = append(b.args, args...)
		} else {
			b.whereParts = append(b.whereParts, sql)
			b.args = append(b.args, args...)
		}
	}

	var sb strings.Builder
	if len(b.ctes) > 0 {
		sb.WriteString("WITH RECURSIVE ")
		sb.WriteString(strings.Join(b.ctes, ", "))
		sb.WriteString(" ")
	}
	if len(b.selectCols) == 0 {
		sb.WriteString("SELECT 1")
	} else {
		sb.WriteString("SELECT " + strings.Join(b.selectCols, ", "))
	}
	for _, seg := range b.segments {
		sb.WriteString(" ")
		sb.WriteString(seg.render())
	}
	if len(b.whereParts) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.whereParts, " AND "))
	}

	var resultCols []string
	for _, col := range b.selectCols {
		if idx := strings.LastIndex(col, " AS "); idx >= 0 {
			resultCols = append(resultCols, col[idx+4:])
		}
	}

	// The WITH RECURSIVE prefix precedes the SELECT, so its args bind first.
	args := append(append([]any{}, b.cteArgs...), b.args...)
	return &patternSQL{SQL: sb.String(), Args: args, Vars: b.vars, ResultCols: resultCols}, nil
}

type patternBuilder struct {
	carried    Row
	params     map[string]any
	maxDepth   int
	limitHint  int
	aliasSeq   int
	segments   []*joinSeg
	ctes       []string
	selectCols []string
	whereParts []string
	args       []any
	cteArgs    []any
	vars       map[string]patternVar
}

func (b *patternBuilder) nextAlias(prefix string) string {
	b.aliasSeq++
	return fmt.Sprintf("%s%d", prefix, b.aliasSeq)
}

// scope exposes every named node/edge variable bound so far to
// CompileExpression; path variables have no single SQL alias and are
// resolved by the Go-side evaluator instead.
func (b *patternBuilder) scope() scope {
	sc := scope{}
	for name, pv := range b.vars {
		if pv.Kind == VarPath {
			continue
		}
		alias := strings.TrimSuffix(pv.Col, ".id")
		sc[name] = sqlVar{Kind: pv.Kind, Alias: alias}
	}
	return sc
}

func (b *patternBuilder) lookupCarried(varName string) (RowVal, bool) {
	if varName == "" || b.carried == nil {
		return RowVal{}, false
	}
	rv, ok := b.carried[varName]
	if !ok || (rv.Kind != VarNode && rv.Kind != VarEdge) {
		return RowVal{}, false
	}
	return rv, true
}

// fromClause renders either a plain table alias (for a pattern variable not
// yet bound in the row-set) or a derived table filtered to a carried row's
// known id (for a variable bound by an earlier phase), letting the rest of
// the builder treat "fresh" and "carried" pattern variables uniformly.
func (b *patternBuilder) fromClause(table, alias, carriedID string) string {
	if carriedID != "" {
		return fmt.Sprintf("(SELECT * FROM %s WHERE id = ?) AS %s", table, alias)
	}
	return fmt.Sprintf("%s AS %s", table, alias)
}

func joinKeyword(optional bool) string {
	if optional {
		return "LEFT JOIN"
	}
	return "JOIN"
}

func (b *patternBuilder) addPattern(pat Pattern, first bool, optional bool) error {
	aliases := make([]string, len(pat.Nodes))

	for i, node := range pat.Nodes {
		alias := b.nextAlias("n")
		aliases[i] = alias

		rv, isCarried := b.lookupCarried(node.Variable)
		carriedID := ""
		if isCarried {
			carriedID = rv.ID
		}

		seg := &joinSeg{table: b.fromClause("nodes", alias, carriedID)}
		switch {
		case i == 0 && first:
			seg.keyword = "FROM"
		case i == 0:
			seg.keyword = "CROSS JOIN"
		default:
			seg.keyword = joinKeyword(optional)
		}
		if carriedID != "" {
			b.args = append(b.args, carriedID)
		}

		for _, lbl := range node.Labels {
			seg.onCond = append(seg.onCond, fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s.label) WHERE value = ?)", alias))
			b.args = append(b.args, lbl)
		}
		for key, vExpr := range node.Properties {
			sql, args, err := CompileExpression(vExpr, scope{}, b.params)
			if err != nil {
				return err
			}
			seg.onCond = append(seg.onCond, fmt.Sprintf("json_extract(%s.properties, '$.%s') = %s", alias, key, sql))
			b.args = append(b.args, args...)
		}

		b.segments = append(b.segments, seg)

		if node.Variable != "" {
			b.vars[node.Variable] = patternVar{Kind: VarNode, Col: alias + ".id"}
			b.selectCols = append(b.selectCols, alias+".id AS "+alias+"_id")
		}
	}

	var pathNodeCols, pathEdgeCols []string
	if pat.PathVar != "" && len(aliases) > 0 {
		pathNodeCols = append(pathNodeCols, aliases[0]+".id")
	}

	for i, edge := range pat.Edges {
		leftAlias, rightAlias := aliases[i], aliases[i+1]

		if edge.IsVariableLength() {
			if pat.PathVar != "" {
				return &TranslateError{Message: "path binding over a variable-length edge is not supported"}
			}
			if err := b.addVariableLengthJoin(edge, leftAlias, rightAlias, optional); err != nil {
				return err
			}
			continue
		}

		edgeAlias := b.nextAlias("e")
		rv, isCarried := b.lookupCarried(edge.Variable)
		carriedID := ""
		if isCarried {
			carriedID = rv.ID
		}
		seg := &joinSeg{keyword: joinKeyword(optional), table: b.fromClause("edges", edgeAlias, carriedID)}
		if carriedID != "" {
			b.args = append(b.args, carriedID)
		}

		switch edge.Direction {
		case EdgeOut:
			seg.onCond = append(seg.onCond,
				fmt.Sprintf("%s.source_id = %s.id", edgeAlias, leftAlias),
				fmt.Sprintf("%s.target_id = %s.id", edgeAlias, rightAlias),
			)
		case EdgeIn:
			seg.onCond = append(seg.onCond,
				fmt.Sprintf("%s.source_id = %s.id", edgeAlias, rightAlias),
				fmt.Sprintf("%s.target_id = %s.id", edgeAlias, leftAlias),
			)
		default:
			seg.onCond = append(seg.onCond, fmt.Sprintf(
				"((%s.source_id = %s.id AND %s.target_id = %s.id) OR (%s.source_id = %s.id AND %s.target_id = %s.id))",
				edgeAlias, leftAlias, edgeAlias, rightAlias,
				edgeAlias, rightAlias, edgeAlias, leftAlias,
			))
		}

		if len(edge.Types) > 0 {
			placeholders := make([]string, len(edge.Types))
			for j, t := range edge.Types {
				placeholders[j] = "?"
				b.args = append(b.args, t)
			}
			seg.onCond = append(seg.onCond, fmt.Sprintf("%s.type IN (%s)", edgeAlias, strings.Join(placeholders, ", ")))
		}
		for key, vExpr := range edge.Properties {
			sql, args, err := CompileExpression(vExpr, scope{}, b.params)
			if err != nil {
				return err
			}
			seg.onCond = append(seg.onCond, fmt.Sprintf("json_extract(%s.properties, '$.%s') = %s", edgeAlias, key, sql))
			b.args = append(b.args, args...)
		}

		b.segments = append(b.segments, seg)

		if edge.Variable != "" {
			b.vars[edge.Variable] = patternVar{Kind: VarEdge, Col: edgeAlias + ".id"}
			b.selectCols = append(b.selectCols, edgeAlias+".id AS "+edgeAlias+"_id")
		}
		if pat.PathVar != "" {
			pathEdgeCols = append(pathEdgeCols, edgeAlias+".id")
			pathNodeCols = append(pathNodeCols, rightAlias+".id")
		}
	}

	if pat.PathVar != "" {
		b.vars[pat.PathVar] = patternVar{Kind: VarPath, PathNodeCols: pathNodeCols, PathEdgeCols: pathEdgeCols}
		for _, col := range pathNodeCols {
			b.selectCols = append(b.selectCols, col+" AS "+sqlSafeColName(col))
		}
		for _, col := range pathEdgeCols {
			b.selectCols = append(b.selectCols, col+" AS "+sqlSafeColName(col))
		}
	}

	return nil
}

func sqlSafeColName(aliasDotID string) string {
	return strings.ReplaceAll(aliasDotID, ".", "_")
}

// addVariableLengthJoin emits a recursive CTE computing every (start_id,
// end_id, depth) pair reachable over the edge's type alternatives, capped at
// the pattern's upper bound or maxDepth, whichever is smaller (maxDepth alone
// when the upper bound is open; spec.md §4.3.4), and joins it in place of a
// normal edge traversal.
func (b *patternBuilder) addVariableLengthJoin(edge EdgePattern, leftAlias, rightAlias string, optional bool) error {
	name := b.nextAlias("vlp")

	depthCap := b.maxDepth
	if depthCap <= 0 {
		depthCap = 10
	}
	if edge.MaxHops != nil && *edge.MaxHops < depthCap {
		depthCap = *edge.MaxHops
	}

	var typeFilter string
	var typeArgs []any
	if len(edge.Types) > 0 {
		placeholders := make([]string, len(edge.Types))
		for i, t := range edge.Types {
			placeholders[i] = "?"
			typeArgs = append(typeArgs, t)
		}
		typeFilter = " AND type IN (" + strings.Join(placeholders, ", ") + ")"
	}

	var baseParts, recParts []string
	switch edge.Direction {
	case EdgeOut:
		baseParts = []string{fmt.Sprintf("SELECT source_id AS start_id, target_id AS end_id, 1 AS depth FROM edges WHERE 1=1%s", typeFilter)}
		recParts = []string{fmt.Sprintf("SELECT %s.start_id, e.target_id, %s.depth + 1 FROM %s JOIN edges e ON e.source_id = %s.end_id WHERE %s.depth < ?%s", name, name, name, name, name, typeFilter)}
	case EdgeIn:
		baseParts = []string{fmt.Sprintf("SELECT target_id AS start_id, source_id AS end_id, 1 AS depth FROM edges WHERE 1=1%s", typeFilter)}
		recParts = []string{fmt.Sprintf("SELECT %s.start_id, e.source_id, %s.depth + 1 FROM %s JOIN edges e ON e.target_id = %s.end_id WHERE %s.depth < ?%s", name, name, name, name, name, typeFilter)}
	default:
		baseParts = []string{
			fmt.Sprintf("SELECT source_id AS start_id, target_id AS end_id, 1 AS depth FROM edges WHERE 1=1%s", typeFilter),
			fmt.Sprintf("SELECT target_id AS start_id, source_id AS end_id, 1 AS depth FROM edges WHERE 1=1%s", typeFilter),
		}
		recParts = []string{
			fmt.Sprintf("SELECT %s.start_id, e.target_id, %s.depth + 1 FROM %s JOIN edges e ON e.source_id = %s.end_id WHERE %s.depth < ?%s", name, name, name, name, name, typeFilter),
			fmt.Sprintf("SELECT %s.start_id, e.source_id, %s.depth + 1 FROM %s JOIN edges e ON e.target_id = %s.end_id WHERE %s.depth < ?%s", name, name, name, name, name, typeFilter),
		}
	}

	// Argument order must follow the textual order of '?' placeholders:
	// each base/recursive branch contributes its own type-filter args, and
	// each recursive branch also binds the depth cap ahead of its filter.
	var cteArgs []any
	cteArgs = append(cteArgs, typeArgs...)
	for range recParts {
		cteArgs = append(cteArgs, depthCap)
		cteArgs = append(cteArgs, typeArgs...)
	}
	if len(baseParts) == 2 {
		// EdgeEither has two base branches, each with its own type filter.
		cteArgs = append(append([]any{}, typeArgs...), cteArgs...)
	}

	// A statically-known enclosing LIMIT bounds the recursive table's total
	// row count via a trailing LIMIT on the CTE's own compound SELECT — the
	// "heuristic limit * fan_out cutoff" spec.md §4.3.4 names, since SQLite
	// stops computing a recursive CTE's rows once a LIMIT on its defining
	// compound SELECT is satisfied.
	limitClause := ""
	var limitArgs []any
	if b.limitHint > 0 {
		limitClause = " LIMIT ?"
		limitArgs = append(limitArgs, b.limitHint*variableLengthFanOut)
	}

	cte := fmt.Sprintf("%s(start_id, end_id, depth) AS (%s UNION ALL %s%s)",
		name, strings.Join(baseParts, " UNION ALL "), strings.Join(recParts, " UNION ALL "), limitClause)
	b.ctes = append(b.ctes, cte)
	b.cteArgs = append(b.cteArgs, cteArgs...)
	b.cteArgs = append(b.cteArgs, limitArgs...)

	seg := &joinSeg{keyword: joinKeyword(optional), table: name}
	seg.onCond = append(seg.onCond,
		fmt.Sprintf("%s.start_id = %s.id", name, leftAlias),
		fmt.Sprintf("%s.end_id = %s.id", name, rightAlias),
	)
	minHops := 1
	if edge.MinHops != nil {
		minHops = *edge.MinHops
	}
	maxHops := depthCap
	if edge.MaxHops != nil {
		maxHops = *edge.MaxHops
	}
	seg.onCond = append(seg.onCond, fmt.Sprintf("%s.depth BETWEEN ? AND ?", name))
	b.args = append(b.args, minHops, maxHops)
	b.segments = append(b.segments, seg)
	return nil
}
