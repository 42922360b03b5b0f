package chunker

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"codescout/internal/config"
	"codescout/internal/errs"
)

// QueryStats is cumulative compile-cache telemetry.
type QueryStats struct {
	Hits            int
	Misses          int
	CompileFailures int
	CompileTime     time.Duration
	Cached          int
}

type queryEntry struct {
	query      Query
	compiledIn time.Duration
}

// QueryManager caches compiled capture queries per language with TTL
// eviction. Compilation failure is reported once and cached as a negative
// entry so a broken query string does not recompile on every file.
type QueryManager struct {
	engine  Engine
	handler *errs.Handler

	cache *expirable.LRU[string, *queryEntry]

	mu      sync.Mutex
	stats   QueryStats
	failed  map[string]struct{}
	onEvict func(lang string)
}

// NewQueryManager creates a manager sized and aged from configuration.
func NewQueryManager(engine Engine, cfg *config.Config, handler *errs.Handler) *QueryManager {
	size := cfg.TreeSitterQueryCacheSize
	if size <= 0 {
		size = 64
	}
	ttl := time.Duration(cfg.TreeSitterQueryCacheTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	m := &QueryManager{
		engine:  engine,
		handler: handler,
		failed:  make(map[string]struct{}),
	}
	m.cache = expirable.NewLRU(size, func(_ string, e *queryEntry) {
		if e.query != nil {
			e.query.Close()
		}
	}, ttl)
	return m
}

func queryKey(lang, text string) string {
	return lang + ":" + strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// GetCompiled returns the compiled capture query for a language, or nil when
// the language has no query text or compilation failed. A nil result is a
// valid answer: the extractor falls back to node-type traversal.
func (m *QueryManager) GetCompiled(lang string) Query {
	text, ok := queryTextFor(lang)
	if !ok {
		return nil
	}
	key := queryKey(lang, text)

	if e, ok := m.cache.Get(key); ok {
		m.mu.Lock()
		m.stats.Hits++
		m.mu.Unlock()
		return e.query
	}

	m.mu.Lock()
	if _, bad := m.failed[key]; bad {
		m.mu.Unlock()
		return nil
	}
	m.stats.Misses++
	m.mu.Unlock()

	start := time.Now()
	q, err := m.engine.Compile(lang, text)
	elapsed := time.Since(start)

	m.mu.Lock()
	m.stats.CompileTime += elapsed
	if err != nil {
		m.stats.CompileFailures++
		m.failed[key] = struct{}{}
		m.mu.Unlock()
		m.handler.Report(err, errs.Context{
			Component: "query_manager",
			Operation: "compile",
			Language:  lang,
		}, errs.CategoryParsing)
		return nil
	}
	m.mu.Unlock()

	m.cache.Add(key, &queryEntry{query: q, compiledIn: elapsed})
	return q
}

// Invalidate drops cached queries for one language and returns how many
// entries were removed. The negative-compile cache is cleared too, so a
// grammar swapped in at runtime gets a fresh compile attempt.
func (m *QueryManager) Invalidate(lang string) int {
	prefix := lang + ":"
	removed := 0
	for _, key := range m.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			if m.cache.Remove(key) {
				removed++
			}
		}
	}
	m.mu.Lock()
	for key := range m.failed {
		if strings.HasPrefix(key, prefix) {
			delete(m.failed, key)
		}
	}
	m.mu.Unlock()
	return removed
}

// Purge drops every cached query and returns how many were removed.
func (m *QueryManager) Purge() int {
	n := m.cache.Len()
	m.cache.Purge()
	m.mu.Lock()
	m.failed = make(map[string]struct{})
	m.mu.Unlock()
	return n
}

// Stats returns a snapshot of cache telemetry.
func (m *QueryManager) Stats() QueryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Cached = m.cache.Len()
	return s
}
