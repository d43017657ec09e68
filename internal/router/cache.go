// Cache persists Router task results keyed by fingerprint, backed by
// modernc.org/sqlite (pure Go, no cgo) — the teacher depends on this same
// driver for its local embedded store (internal/store/embedded_store.go);
// here it backs the Router's LRU-bounded response cache instead of
// semantic memory.
package router

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"autodev/internal/metrics"
)

// Cache is a fingerprint -> TaskResult store with a TTL and an LRU bound
// enforced on Set.
type Cache struct {
	mu       sync.Mutex
	db       *sql.DB
	ttl      time.Duration
	maxSize  int
}

// OpenCache opens (creating if necessary) a sqlite database at path to
// back the Router cache.
func OpenCache(path string, ttl time.Duration, maxSize int) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("router: open cache db: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			fingerprint TEXT PRIMARY KEY,
			result_json TEXT NOT NULL,
			created_at  INTEGER NOT NULL,
			accessed_at INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("router: init cache schema: %w", err)
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{db: db, ttl: ttl, maxSize: maxSize}, nil
}

// OpenInMemoryCache opens a cache backed by an in-memory sqlite database,
// useful for tests and for runs with no configured project root.
func OpenInMemoryCache(ttl time.Duration, maxSize int) (*Cache, error) {
	return OpenCache(":memory:", ttl, maxSize)
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns a fresh (within ttl) cached result for fingerprint, if any.
func (c *Cache) Get(fingerprint string) (TaskResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var resultJSON string
	var createdAt int64
	row := c.db.QueryRow(`SELECT result_json, created_at FROM cache_entries WHERE fingerprint = ?`, fingerprint)
	if err := row.Scan(&resultJSON, &createdAt); err != nil {
		metrics.CacheMisses.Inc()
		return TaskResult{}, false
	}

	age := time.Since(time.Unix(createdAt, 0))
	if c.ttl > 0 && age > c.ttl {
		metrics.CacheMisses.Inc()
		_, _ = c.db.Exec(`DELETE FROM cache_entries WHERE fingerprint = ?`, fingerprint)
		return TaskResult{}, false
	}

	result, err := decodeResult(resultJSON)
	if err != nil {
		metrics.CacheMisses.Inc()
		return TaskResult{}, false
	}

	_, _ = c.db.Exec(`UPDATE cache_entries SET accessed_at = ? WHERE fingerprint = ?`, time.Now().Unix(), fingerprint)
	metrics.CacheHits.Inc()
	result.FromCache = true
	return result, true
}

// Set stores a result under fingerprint, evicting the least-recently
// accessed entries when the cache exceeds maxSize (LRU, bounded size per
// spec.md §4.C step 5).
func (c *Cache) Set(fingerprint string, result TaskResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	encoded, err := encodeResult(result)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	if _, err := c.db.Exec(`
		INSERT INTO cache_entries (fingerprint, result_json, created_at, accessed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET result_json = excluded.result_json, accessed_at = excluded.accessed_at
	`, fingerprint, encoded, now, now); err != nil {
		return fmt.Errorf("router: cache set: %w", err)
	}

	return c.evictOverflow()
}

func (c *Cache) evictOverflow() error {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return err
	}
	if count <= c.maxSize {
		return nil
	}
	overflow := count - c.maxSize
	_, err := c.db.Exec(`
		DELETE FROM cache_entries WHERE fingerprint IN (
			SELECT fingerprint FROM cache_entries ORDER BY accessed_at ASC LIMIT ?
		)`, overflow)
	return err
}

func encodeResult(r TaskResult) (string, error) {
	// Streaming results are never cached in raw chunk form; only the
	// final assembled text is stored (spec.md §4.C "Streaming vs cached").
	return marshalResult(r)
}

func decodeResult(s string) (TaskResult, error) {
	return unmarshalResult(s)
}
