package storage

import (
	"container/list"
	"database/sql"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// statementCache is a bounded LRU of prepared statements keyed by a hash of
// their SQL text, matching spec.md §5/§9: "Prepared-statement cache: bounded
// LRU keyed by SQL text, evicted on capacity; invalidated on schema change
// and on handle close." SQL text itself is frequently long (recursive CTEs
// in particular), so entries are keyed by a blake2b-256 digest rather than
// the raw string — this is the one place SPEC_FULL.md redirects the
// teacher's golang.org/x/crypto dependency (originally password hashing,
// out of scope here) to a concern the spec actually calls for.
type statementCache struct {
	mu       sync.Mutex
	capacity int
	items    map[[32]byte]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	key  [32]byte
	stmt *sql.Stmt
}

func newStatementCache(capacity int) *statementCache {
	if capacity < 1 {
		capacity = 1
	}
	return &statementCache{
		capacity: capacity,
		items:    make(map[[32]byte]*list.Element),
		order:    list.New(),
	}
}

// getOrPrepare returns a cached *sql.Stmt for sqlText, preparing and caching
// a new one via prepare() on a miss. Eviction closes the displaced statement.
func (c *statementCache) getOrPrepare(sqlText string, prepare func(string) (*sql.Stmt, error)) (*sql.Stmt, error) {
	key := blake2b.Sum256([]byte(sqlText))

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		stmt := el.Value.(*cacheEntry).stmt
		c.mu.Unlock()
		return stmt, nil
	}
	c.mu.Unlock()

	stmt, err := prepare(sqlText)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have raced us to preparing the same statement;
	// keep the one already installed and close ours to avoid leaking it.
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		existing := el.Value.(*cacheEntry).stmt
		_ = stmt.Close()
		return existing, nil
	}

	el := c.order.PushFront(&cacheEntry{key: key, stmt: stmt})
	c.items[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		entry := c.order.Remove(oldest).(*cacheEntry)
		delete(c.items, entry.key)
		_ = entry.stmt.Close()
	}

	return stmt, nil
}

// invalidate closes and evicts every cached statement. Called on schema
// change and on handle close (spec.md §5).
func (c *statementCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Front(); el != nil; el = el.Next() {
		_ = el.Value.(*cacheEntry).stmt.Close()
	}
	c.items = make(map[[32]byte]*list.Element)
	c.order = list.New()
}
