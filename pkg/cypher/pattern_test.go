package cypher

import (
	"strings"
	"testing"
)

func parseMatch(t *testing.T, query string) *MatchClause {
	t.Helper()
	q, err := Parse(query)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	m, ok := q.Clauses[0].(*MatchClause)
	if !ok {
		t.Fatalf("expected *MatchClause, got %T", q.Clauses[0])
	}
	return m
}

func TestBuildMatchSQLSingleNodeLabelFilter(t *testing.T) {
	m := parseMatch(t, `MATCH (n:Person) RETURN n`)
	psql, err := buildMatchSQL(m.Patterns, m.Where, m.Optional, Row{}, nil, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := psql.Vars["n"]; !ok {
		t.Fatalf("expected variable n to be bound, got %+v", psql.Vars)
	}
	if psql.Vars["n"].Kind != VarNode {
		t.Fatalf("expected n to be a node var, got %+v", psql.Vars["n"])
	}
}

func TestBuildMatchSQLDirectedEdge(t *testing.T) {
	m := parseMatch(t, `MATCH (a)-[r:KNOWS]->(b) RETURN r`)
	psql, err := buildMatchSQL(m.Patterns, m.Where, m.Optional, Row{}, nil, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, v := range []string{"a", "r", "b"} {
		if _, ok := psql.Vars[v]; !ok {
			t.Fatalf("expected variable %q to be bound, vars=%+v", v, psql.Vars)
		}
	}
	if psql.Vars["r"].Kind != VarEdge {
		t.Fatalf("expected r to be an edge var, got %+v", psql.Vars["r"])
	}
}

func TestBuildMatchSQLOptionalFoldsWhereIntoLastJoin(t *testing.T) {
	m := parseMatch(t, `OPTIONAL MATCH (p)-[:K]->(q:P) WHERE q.n = 'A'`)
	psql, err := buildMatchSQL(m.Patterns, m.Where, true, Row{"p": {Kind: VarNode, ID: "seed"}}, nil, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(psql.Args) == 0 {
		t.Fatal("expected at least one bound arg for the carried id and WHERE literal")
	}
}

func TestBuildMatchSQLVariableLengthPathRejectsPathBinding(t *testing.T) {
	m := parseMatch(t, `MATCH p = (a)-[:K*1..3]->(b) RETURN p`)
	_, err := buildMatchSQL(m.Patterns, m.Where, m.Optional, Row{}, nil, 10, 0)
	if err == nil {
		t.Fatal("expected *TranslateError for path binding over a variable-length edge")
	}
	if _, ok := err.(*TranslateError); !ok {
		t.Fatalf("expected *TranslateError, got %T: %v", err, err)
	}
}

func TestBuildMatchSQLVariableLengthEdgeProducesRecursiveCTE(t *testing.T) {
	m := parseMatch(t, `MATCH (a)-[:K*1..2]->(b) RETURN b`)
	psql, err := buildMatchSQL(m.Patterns, m.Where, m.Optional, Row{}, nil, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsCTE(psql.SQL) {
		t.Fatalf("expected a WITH RECURSIVE prefix, got SQL: %s", psql.SQL)
	}
}

func containsCTE(sql string) bool {
	return len(sql) > len("WITH RECURSIVE") && sql[:len("WITH RECURSIVE")] == "WITH RECURSIVE"
}

func TestParseEdgePatternBidirectionalArrows(t *testing.T) {
	m := parseMatch(t, `MATCH (a)<-->(b) RETURN a`)
	if len(m.Patterns) == 0 || len(m.Patterns[0].Edges) == 0 {
		t.Fatalf("expected one edge in the pattern, got %+v", m.Patterns)
	}
	if got := m.Patterns[0].Edges[0].Direction; got != EdgeEither {
		t.Fatalf("<--> must compile to EdgeEither, got %v", got)
	}
}

func TestBuildMatchSQLLimitHintBoundsRecursiveCTE(t *testing.T) {
	m := parseMatch(t, `MATCH (a)-[:K*1..5]->(b) RETURN b`)
	psql, err := buildMatchSQL(m.Patterns, m.Where, m.Optional, Row{}, nil, 10, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(psql.SQL, "LIMIT ?") {
		t.Fatalf("expected the recursive CTE to carry a LIMIT cutoff, got SQL: %s", psql.SQL)
	}
	found := false
	for _, a := range psql.Args {
		if n, ok := a.(int); ok && n == 3*variableLengthFanOut {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected limit*fanOut arg %d among %+v", 3*variableLengthFanOut, psql.Args)
	}
}
