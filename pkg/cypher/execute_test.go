package cypher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/leangraph/pkg/config"
	"github.com/orneryd/leangraph/pkg/storage"
)

func openTestEngine(t *testing.T) *storage.Engine {
	t.Helper()
	eng, err := storage.Open(config.Defaults())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func mustExec(t *testing.T, eng *storage.Engine, query string, params map[string]any) *Result {
	t.Helper()
	res, err := Execute(context.Background(), eng, query, params)
	require.NoError(t, err, "query: %s", query)
	return res
}

// E1. Create-read round-trip (spec.md §8).
func TestE1CreateReadRoundTrip(t *testing.T) {
	eng := openTestEngine(t)
	res := mustExec(t, eng, `CREATE (n:Person:Employee {name: 'Alice', age: 30}) RETURN labels(n) AS l, n.age AS a`, nil)

	require.Len(t, res.Rows, 1)
	assert.ElementsMatch(t, []any{"Person", "Employee"}, res.Rows[0]["l"])
	assert.Equal(t, int64(30), res.Rows[0]["a"])
}

// E2. Multi-hop match with a bounded variable-length edge (spec.md §8).
func TestE2MultiHopMatch(t *testing.T) {
	eng := openTestEngine(t)
	mustExec(t, eng, `CREATE (a:U {id:1})-[:K]->(b:U {id:2})-[:K]->(c:U {id:3})`, nil)

	res := mustExec(t, eng, `MATCH (x:U {id:1})-[:K*1..2]->(y:U) RETURN y.id AS id ORDER BY id`, nil)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(2), res.Rows[0]["id"])
	assert.Equal(t, int64(3), res.Rows[1]["id"])
}

// E3. MERGE with ON CREATE / ON MATCH branches (spec.md §8).
func TestE3MergeOnCreateOnMatch(t *testing.T) {
	eng := openTestEngine(t)
	query := `MERGE (u:User {email:'a@b'}) ON CREATE SET u.created=1 ON MATCH SET u.seen=1 RETURN u.created AS c, u.seen AS s`

	first := mustExec(t, eng, query, nil)
	require.Len(t, first.Rows, 1)
	assert.Equal(t, int64(1), first.Rows[0]["c"])
	assert.Nil(t, first.Rows[0]["s"])

	second := mustExec(t, eng, query, nil)
	require.Len(t, second.Rows, 1)
	assert.Equal(t, int64(1), second.Rows[0]["c"])
	assert.Equal(t, int64(1), second.Rows[0]["s"])

	count := mustExec(t, eng, `MATCH (u:User {email:'a@b'}) RETURN count(u) AS n`, nil)
	assert.Equal(t, int64(1), count.Rows[0]["n"])
}

// E4. UNWIND-driven batch create (spec.md §8).
func TestE4UnwindBatchCreate(t *testing.T) {
	eng := openTestEngine(t)
	res := mustExec(t, eng, `UNWIND [{n:'A'},{n:'B'},{n:'C'}] AS r CREATE (:Item {name: r.n}) RETURN count(*) AS created`, nil)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(3), res.Rows[0]["created"])

	check := mustExec(t, eng, `MATCH (i:Item) RETURN count(i) AS n`, nil)
	assert.Equal(t, int64(3), check.Rows[0]["n"])
}

// E5. List comprehension in RETURN (spec.md §8).
func TestE5ListComprehensionInReturn(t *testing.T) {
	eng := openTestEngine(t)
	res := mustExec(t, eng, `RETURN [x IN range(1,5) WHERE x % 2 = 0 | x*10] AS evens`, nil)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []any{int64(20), int64(40)}, res.Rows[0]["evens"])
}

// E6. OPTIONAL MATCH preserves the anchor row with nulls for the
// unmatched extension (spec.md §8).
func TestE6OptionalMatchPreservesAnchor(t *testing.T) {
	eng := openTestEngine(t)
	mustExec(t, eng, `CREATE (a:P {n:'A'})`, nil)

	res := mustExec(t, eng, `MATCH (p:P {n:'A'}) OPTIONAL MATCH (p)-[:K]->(q:P) RETURN p.n AS pn, q.n AS qn`, nil)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "A", res.Rows[0]["pn"])
	assert.Nil(t, res.Rows[0]["qn"])
}

func TestExplainShortCircuitsWithoutExecuting(t *testing.T) {
	eng := openTestEngine(t)
	res := mustExec(t, eng, `EXPLAIN MATCH (n:Person) RETURN n`, nil)
	require.NotNil(t, res.Meta.Plan)
	assert.Nil(t, res.Rows)

	count := mustExec(t, eng, `MATCH (n:Person) RETURN count(n) AS n`, nil)
	assert.Equal(t, int64(0), count.Rows[0]["n"])
}

func TestDeleteWithoutDetachRejectsConnectedNode(t *testing.T) {
	eng := openTestEngine(t)
	mustExec(t, eng, `CREATE (a:U {id:1})-[:K]->(b:U {id:2})`, nil)

	_, err := Execute(context.Background(), eng, `MATCH (a:U {id:1}) DELETE a`, nil)
	require.Error(t, err)
	var semErr *SemanticError
	assert.ErrorAs(t, err, &semErr)
}

func TestUnionDeduplicatesUnlessAll(t *testing.T) {
	eng := openTestEngine(t)
	mustExec(t, eng, `CREATE (:Person {name:'Alice'})`, nil)

	deduped := mustExec(t, eng, `MATCH (n:Person) RETURN n.name AS name UNION MATCH (n:Person) RETURN n.name AS name`, nil)
	assert.Len(t, deduped.Rows, 1)

	all := mustExec(t, eng, `MATCH (n:Person) RETURN n.name AS name UNION ALL MATCH (n:Person) RETURN n.name AS name`, nil)
	assert.Len(t, all.Rows, 2)
}
