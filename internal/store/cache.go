package store

import (
	"database/sql"
	"sync"
)

// DefaultMaxStatements is the resident-statement bound applied when the
// configuration does not set one.
const DefaultMaxStatements = 512

// statementCache maps exact SQL text to a live prepared statement bound to
// the store's single connection. Two textually distinct but semantically
// identical queries occupy separate entries. When inserting would push the
// resident count past the maximum, the whole cache is flushed: bounded
// memory at the cost of the occasional full re-prepare storm, which is far
// simpler to reason about than recency tracking.
//
// The mutex makes the cache safe for concurrent callers; statement handles
// themselves are safe for concurrent use under database/sql.
type statementCache struct {
	mu    sync.Mutex
	max   int
	stmts map[string]*sql.Stmt
}

func newStatementCache(max int) *statementCache {
	if max <= 0 {
		max = DefaultMaxStatements
	}
	return &statementCache{
		max:   max,
		stmts: make(map[string]*sql.Stmt),
	}
}

// get returns the cached statement for sqlText, or nil on a miss.
func (c *statementCache) get(sqlText string) *sql.Stmt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stmts[sqlText]
}

// put inserts a freshly prepared statement and returns the statement the
// caller must use. When the key is already resident — two callers missed on
// the same SQL concurrently — the cached statement wins and the incoming one
// is closed immediately; overwriting instead would orphan a live handle that
// eviction could never reach. The flush happens before the insert, never
// after: flushing afterwards would finalize the statement the caller is
// about to execute. The resident count therefore never exceeds max.
func (c *statementCache) put(sqlText string, stmt *sql.Stmt) *sql.Stmt {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.stmts[sqlText]; ok {
		_ = stmt.Close() //nolint:errcheck // Loser of the prepare race, never handed out
		return existing
	}
	if len(c.stmts) >= c.max {
		c.flushLocked()
	}
	c.stmts[sqlText] = stmt
	return stmt
}

// evictAll finalizes every cached statement and clears the map.
func (c *statementCache) evictAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *statementCache) flushLocked() {
	for _, stmt := range c.stmts {
		_ = stmt.Close() //nolint:errcheck // Best effort: the statement is gone either way
	}
	c.stmts = make(map[string]*sql.Stmt)
}

// size returns the current resident-statement count.
func (c *statementCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stmts)
}
