// Package cache keeps prepared statements for an open connection.
package cache

import (
	"container/list"
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
)

// DefaultCapacity bounds the number of statements kept per connection.
const DefaultCapacity = 256

// PrepareFunc prepares query against the connection the cache belongs to.
type PrepareFunc func(ctx context.Context, query string) (*sql.Stmt, error)

// StmtCache is an LRU of prepared statements keyed by positional SQL.
// Evicted and replaced statements are closed.
type StmtCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry struct {
	query string
	stmt  *sql.Stmt
}

// New returns a cache holding at most capacity statements.
// A non-positive capacity selects DefaultCapacity.
func New(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &StmtCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached statement for query, marking it most recently used.
func (c *StmtCache) Get(query string) (*sql.Stmt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[query]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return elem.Value.(*entry).stmt, true
}

// Put stores stmt under query, closing any statement it replaces.
func (c *StmtCache) Put(query string, stmt *sql.Stmt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[query]; ok {
		c.order.MoveToFront(elem)
		e := elem.Value.(*entry)
		if e.stmt != stmt {
			_ = e.stmt.Close()
			e.stmt = stmt
		}
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	c.items[query] = c.order.PushFront(&entry{query: query, stmt: stmt})
}

// Prepare returns a cached statement for query or prepares and caches one.
// A failed prepare leaves the cache untouched.
func (c *StmtCache) Prepare(ctx context.Context, query string, prepare PrepareFunc) (*sql.Stmt, error) {
	if stmt, ok := c.Get(query); ok {
		return stmt, nil
	}
	stmt, err := prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	c.Put(query, stmt)
	return stmt, nil
}

// Remove closes and forgets the statement for query.
func (c *StmtCache) Remove(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[query]
	if !ok {
		return
	}
	c.order.Remove(elem)
	delete(c.items, query)
	_ = elem.Value.(*entry).stmt.Close()
}

// must hold c.mu
func (c *StmtCache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.items, e.query)
	_ = e.stmt.Close()
	c.evictions.Add(1)
}

// Clear closes every cached statement. It is called whenever the
// underlying connection changes or closes.
func (c *StmtCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		_ = elem.Value.(*entry).stmt.Close()
	}
	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Len reports how many statements are cached.
func (c *StmtCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// Stats returns current counters.
func (c *StmtCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Size:      c.Len(),
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   rate,
	}
}
