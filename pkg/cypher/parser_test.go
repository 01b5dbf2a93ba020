package cypher

import "testing"

func TestParseSimpleMatchReturn(t *testing.T) {
	q, err := Parse(`MATCH (n:Person) WHERE n.age > 30 RETURN n.name AS name`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.Clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d: %+v", len(q.Clauses), q.Clauses)
	}
	match, ok := q.Clauses[0].(*MatchClause)
	if !ok {
		t.Fatalf("expected *MatchClause, got %T", q.Clauses[0])
	}
	if len(match.Patterns) != 1 || len(match.Patterns[0].Nodes) != 1 {
		t.Fatalf("unexpected pattern shape: %+v", match.Patterns)
	}
	if match.Patterns[0].Nodes[0].Variable != "n" || match.Patterns[0].Nodes[0].Labels[0] != "Person" {
		t.Fatalf("unexpected node pattern: %+v", match.Patterns[0].Nodes[0])
	}
	if match.Where == nil {
		t.Fatal("expected WHERE expression")
	}
	ret, ok := q.Clauses[1].(*ReturnClause)
	if !ok {
		t.Fatalf("expected *ReturnClause, got %T", q.Clauses[1])
	}
	if len(ret.Items) != 1 || ret.Items[0].Alias != "name" {
		t.Fatalf("unexpected return items: %+v", ret.Items)
	}
}

func TestParseRelationshipPatternDirections(t *testing.T) {
	cases := []struct {
		query string
		dir   EdgeDirection
	}{
		{`MATCH (a)-[:KNOWS]->(b) RETURN a`, EdgeOut},
		{`MATCH (a)<-[:KNOWS]-(b) RETURN a`, EdgeIn},
		{`MATCH (a)-[:KNOWS]-(b) RETURN a`, EdgeEither},
		{`MATCH (a)-->(b) RETURN a`, EdgeOut},
		{`MATCH (a)<--(b) RETURN a`, EdgeIn},
		{`MATCH (a)--(b) RETURN a`, EdgeEither},
	}
	for _, c := range cases {
		q, err := Parse(c.query)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.query, err)
		}
		match := q.Clauses[0].(*MatchClause)
		got := match.Patterns[0].Edges[0].Direction
		if got != c.dir {
			t.Errorf("%s: got direction %v, want %v", c.query, got, c.dir)
		}
	}
}

func TestParseVariableLengthPath(t *testing.T) {
	q, err := Parse(`MATCH (a)-[:KNOWS*1..3]->(b) RETURN a`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	edge := q.Clauses[0].(*MatchClause).Patterns[0].Edges[0]
	if edge.MinHops == nil || *edge.MinHops != 1 {
		t.Fatalf("expected MinHops=1, got %+v", edge.MinHops)
	}
	if edge.MaxHops == nil || *edge.MaxHops != 3 {
		t.Fatalf("expected MaxHops=3, got %+v", edge.MaxHops)
	}
}

func TestParseVariableLengthOpenEnded(t *testing.T) {
	q, err := Parse(`MATCH (a)-[:KNOWS*2..]->(b) RETURN a`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	edge := q.Clauses[0].(*MatchClause).Patterns[0].Edges[0]
	if edge.MinHops == nil || *edge.MinHops != 2 {
		t.Fatalf("expected MinHops=2, got %+v", edge.MinHops)
	}
	if edge.MaxHops != nil {
		t.Fatalf("expected open-ended MaxHops, got %+v", edge.MaxHops)
	}
}

func TestParsePathVariableBinding(t *testing.T) {
	q, err := Parse(`MATCH p = (a)-[:KNOWS]->(b) RETURN length(p)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	match := q.Clauses[0].(*MatchClause)
	if match.Patterns[0].PathVar != "p" {
		t.Fatalf("expected path variable 'p', got %q", match.Patterns[0].PathVar)
	}
	ret := q.Clauses[1].(*ReturnClause)
	fc, ok := ret.Items[0].Expression.(*FunctionCall)
	if !ok || fc.Name != "length" {
		t.Fatalf("expected length(p) function call, got %+v", ret.Items[0].Expression)
	}
}

func TestParseCreateAndSet(t *testing.T) {
	q, err := Parse(`CREATE (n:Person {name: "Alice"}) SET n.age = 30, n:Adult`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	create, ok := q.Clauses[0].(*CreateClause)
	if !ok {
		t.Fatalf("expected *CreateClause, got %T", q.Clauses[0])
	}
	if len(create.Patterns[0].Nodes[0].Properties) != 1 {
		t.Fatalf("expected 1 property, got %+v", create.Patterns[0].Nodes[0].Properties)
	}
	set, ok := q.Clauses[1].(*SetClause)
	if !ok {
		t.Fatalf("expected *SetClause, got %T", q.Clauses[1])
	}
	if len(set.Items) != 2 {
		t.Fatalf("expected 2 SET items, got %+v", set.Items)
	}
	if set.Items[0].Property != "age" {
		t.Errorf("expected property assignment, got %+v", set.Items[0])
	}
	if len(set.Items[1].AddLabels) != 1 || set.Items[1].AddLabels[0] != "Adult" {
		t.Errorf("expected label addition, got %+v", set.Items[1])
	}
}

func TestParseMergeWithOnCreateOnMatch(t *testing.T) {
	q, err := Parse(`MERGE (n:Person {name: "Bob"}) ON CREATE SET n.created = true ON MATCH SET n.seen = n.seen + 1`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	merge, ok := q.Clauses[0].(*MergeClause)
	if !ok {
		t.Fatalf("expected *MergeClause, got %T", q.Clauses[0])
	}
	if len(merge.OnCreate) != 1 || len(merge.OnMatch) != 1 {
		t.Fatalf("unexpected ON CREATE/MATCH sizes: %+v / %+v", merge.OnCreate, merge.OnMatch)
	}
}

func TestParseDetachDelete(t *testing.T) {
	q, err := Parse(`MATCH (n) DETACH DELETE n`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	del, ok := q.Clauses[1].(*DeleteClause)
	if !ok {
		t.Fatalf("expected *DeleteClause, got %T", q.Clauses[1])
	}
	if !del.Detach || len(del.Variables) != 1 || del.Variables[0] != "n" {
		t.Fatalf("unexpected delete clause: %+v", del)
	}
}

func TestParseWithOrderSkipLimit(t *testing.T) {
	q, err := Parse(`MATCH (n) WITH n, count(n) AS c ORDER BY c DESC SKIP 1 LIMIT 10 RETURN n`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	with, ok := q.Clauses[1].(*WithClause)
	if !ok {
		t.Fatalf("expected *WithClause, got %T", q.Clauses[1])
	}
	if len(with.Items) != 2 {
		t.Fatalf("expected 2 WITH items, got %+v", with.Items)
	}
	if len(with.OrderBy) != 1 || !with.OrderBy[0].Descending {
		t.Fatalf("expected descending ORDER BY, got %+v", with.OrderBy)
	}
	if with.Skip == nil || with.Limit == nil {
		t.Fatalf("expected SKIP and LIMIT to be set")
	}
}

func TestParseUnwind(t *testing.T) {
	q, err := Parse(`UNWIND [1, 2, 3] AS x RETURN x`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unwind, ok := q.Clauses[0].(*UnwindClause)
	if !ok {
		t.Fatalf("expected *UnwindClause, got %T", q.Clauses[0])
	}
	if unwind.As != "x" {
		t.Fatalf("unexpected AS binding: %q", unwind.As)
	}
	list, ok := unwind.Expression.(*ListLiteral)
	if !ok || len(list.Items) != 3 {
		t.Fatalf("expected 3-item list literal, got %+v", unwind.Expression)
	}
}

func TestParseCallYield(t *testing.T) {
	q, err := Parse(`CALL db.labels() YIELD label RETURN label`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := q.Clauses[0].(*CallClause)
	if !ok {
		t.Fatalf("expected *CallClause, got %T", q.Clauses[0])
	}
	if call.Procedure != "db.labels" {
		t.Fatalf("expected dotted procedure name, got %q", call.Procedure)
	}
	if len(call.Yields) != 1 || call.Yields[0] != "label" {
		t.Fatalf("unexpected yields: %+v", call.Yields)
	}
}

func TestParseUnionAll(t *testing.T) {
	q, err := Parse(`MATCH (n:A) RETURN n.x AS v UNION ALL MATCH (n:B) RETURN n.y AS v`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Union == nil || !q.Union.All {
		t.Fatalf("expected UNION ALL branch, got %+v", q.Union)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	q, err := Parse(`RETURN 1 + 2 * 3 = 7 AND NOT false`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret := q.Clauses[0].(*ReturnClause)
	top, ok := ret.Items[0].Expression.(*BinaryOp)
	if !ok || top.Op != "AND" {
		t.Fatalf("expected top-level AND, got %+v", ret.Items[0].Expression)
	}
	eq, ok := top.Left.(*BinaryOp)
	if !ok || eq.Op != "=" {
		t.Fatalf("expected '=' on AND's left, got %+v", top.Left)
	}
	addExpr, ok := eq.Left.(*BinaryOp)
	if !ok || addExpr.Op != "+" {
		t.Fatalf("expected '+' under '=', got %+v", eq.Left)
	}
	mulExpr, ok := addExpr.Right.(*BinaryOp)
	if !ok || mulExpr.Op != "*" {
		t.Fatalf("expected multiplication to bind tighter than addition, got %+v", addExpr.Right)
	}
}

func TestParseStringAndNullPredicates(t *testing.T) {
	q, err := Parse(`MATCH (n) WHERE n.name CONTAINS "A" AND n.age IS NOT NULL RETURN n`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	where := q.Clauses[0].(*MatchClause).Where
	and, ok := where.(*BinaryOp)
	if !ok || and.Op != "AND" {
		t.Fatalf("expected top-level AND, got %+v", where)
	}
	if _, ok := and.Left.(*StringPredicate); !ok {
		t.Errorf("expected StringPredicate on left, got %+v", and.Left)
	}
	nc, ok := and.Right.(*NullCheck)
	if !ok || !nc.Negated {
		t.Errorf("expected negated NullCheck on right, got %+v", and.Right)
	}
}

func TestParseListComprehensionAndPredicate(t *testing.T) {
	q, err := Parse(`RETURN [x IN range(1, 5) WHERE x > 2 | x * 2] AS evens, ALL(y IN [1, 2] WHERE y > 0) AS allPos`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret := q.Clauses[0].(*ReturnClause)
	lc, ok := ret.Items[0].Expression.(*ListComprehension)
	if !ok || lc.Variable != "x" || lc.Where == nil || lc.Project == nil {
		t.Fatalf("unexpected list comprehension: %+v", ret.Items[0].Expression)
	}
	lp, ok := ret.Items[1].Expression.(*ListPredicate)
	if !ok || lp.Kind != PredAll {
		t.Fatalf("unexpected list predicate: %+v", ret.Items[1].Expression)
	}
}

func TestParseCaseExpression(t *testing.T) {
	q, err := Parse(`RETURN CASE WHEN 1 > 0 THEN "pos" ELSE "neg" END AS sign`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret := q.Clauses[0].(*ReturnClause)
	ce, ok := ret.Items[0].Expression.(*CaseExpr)
	if !ok || ce.Test != nil || len(ce.Whens) != 1 || ce.Else == nil {
		t.Fatalf("unexpected case expression: %+v", ret.Items[0].Expression)
	}
}

func TestParseReturnSourceTextDefaultColumnName(t *testing.T) {
	q, err := Parse(`RETURN n.age   +   1`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ret := q.Clauses[0].(*ReturnClause)
	if ret.Items[0].SourceText != "n.age + 1" {
		t.Fatalf("expected normalized source text, got %q", ret.Items[0].SourceText)
	}
}

func TestParseExistsSubquery(t *testing.T) {
	q, err := Parse(`MATCH (n) WHERE EXISTS((n)-[:KNOWS]->()) RETURN n`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	where := q.Clauses[0].(*MatchClause).Where
	if _, ok := where.(*ExistsSubquery); !ok {
		t.Fatalf("expected *ExistsSubquery, got %+v", where)
	}
}

func TestParseExplainPrefix(t *testing.T) {
	q, err := Parse(`EXPLAIN MATCH (n) RETURN n`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Explain {
		t.Fatal("expected Explain flag to be set")
	}
}

func TestParseErrorPositionOnMalformedClause(t *testing.T) {
	_, err := Parse(`MATCH (n) WHERE RETURN n`)
	if err == nil {
		t.Fatal("expected parse error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Line != 1 {
		t.Errorf("expected error on line 1, got %d", pe.Line)
	}
}

func TestParseOptionalMatch(t *testing.T) {
	q, err := Parse(`OPTIONAL MATCH (n)-[:KNOWS]->(m) RETURN n, m`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	match, ok := q.Clauses[0].(*MatchClause)
	if !ok || !match.Optional {
		t.Fatalf("expected optional match clause, got %+v", q.Clauses[0])
	}
}

func TestParseRemoveClause(t *testing.T) {
	q, err := Parse(`MATCH (n) REMOVE n.age, n:Temp`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	remove, ok := q.Clauses[1].(*RemoveClause)
	if !ok {
		t.Fatalf("expected *RemoveClause, got %T", q.Clauses[1])
	}
	if len(remove.Items) != 2 {
		t.Fatalf("expected 2 remove items, got %+v", remove.Items)
	}
	if remove.Items[0].Property != "age" {
		t.Errorf("expected property removal, got %+v", remove.Items[0])
	}
	if len(remove.Items[1].Labels) != 1 || remove.Items[1].Labels[0] != "Temp" {
		t.Errorf("expected label removal, got %+v", remove.Items[1])
	}
}
