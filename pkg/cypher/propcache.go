package cypher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orneryd/leangraph/pkg/storage"
)

// propCache is the per-query property-parse cache spec.md §5 calls for:
// "per-query, keyed by node-id, cleared at query start." Every Go-side
// evaluation of a bound node or edge variable goes through here instead of
// re-querying storage on every reference within the same query.
type propCache struct {
	ctx   context.Context
	tx    *storage.Tx
	nodes map[string]*storage.Node
	edges map[string]*storage.Edge
}

func newPropCache(ctx context.Context, tx *storage.Tx) *propCache {
	return &propCache{
		ctx:   ctx,
		tx:    tx,
		nodes: map[string]*storage.Node{},
		edges: map[string]*storage.Edge{},
	}
}

func (c *propCache) node(id string) (*storage.Node, error) {
	if n, ok := c.nodes[id]; ok {
		return n, nil
	}
	rows, err := c.tx.QueryContext(c.ctx, `SELECT id, label, properties FROM nodes WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, &SemanticError{Message: fmt.Sprintf("node %q no longer exists", id)}
	}
	var labelJSON, propsJSON string
	var n storage.Node
	if err := rows.Scan(&n.ID, &labelJSON, &propsJSON); err != nil {
		return nil, &InternalError{Message: err.Error()}
	}
	if err := json.Unmarshal([]byte(labelJSON), &n.Labels); err != nil {
		return nil, &InternalError{Message: "decoding node labels: " + err.Error()}
	}
	props, err := decodeProperties(propsJSON)
	if err != nil {
		return nil, err
	}
	n.Properties = props
	c.nodes[id] = &n
	return &n, nil
}

func (c *propCache) edge(id string) (*storage.Edge, error) {
	if e, ok := c.edges[id]; ok {
		return e, nil
	}
	rows, err := c.tx.QueryContext(c.ctx, `SELECT id, type, source_id, target_id, properties FROM edges WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, &SemanticError{Message: fmt.Sprintf("edge %q no longer exists", id)}
	}
	var propsJSON string
	var e storage.Edge
	if err := rows.Scan(&e.ID, &e.Type, &e.SourceID, &e.TargetID, &propsJSON); err != nil {
		return nil, &InternalError{Message: err.Error()}
	}
	props, err := decodeProperties(propsJSON)
	if err != nil {
		return nil, err
	}
	e.Properties = props
	c.edges[id] = &e
	return &e, nil
}

// invalidateNode and invalidateEdge drop an entry from the cache after a
// mutation changes its stored
// properties/labels (SET/REMOVE), so a later reference within the same
// query re-reads the new value instead of the pre-mutation snapshot.
func (c *propCache) invalidateNode(id string) { delete(c.nodes, id) }
func (c *propCache) invalidateEdge(id string) { delete(c.edges, id) }
