package chunker

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"codescout/internal/config"
	"codescout/internal/errs"
)

// Resource kinds accepted by Acquire and Release.
const (
	ResourceParser = "parser"
	ResourceQuery  = "query"
	ResourceAll    = "all"
)

const (
	maintenanceInterval = 5 * time.Minute
	// Aggressive eviction age used while under memory pressure.
	pressureMaxAge = 5 * time.Minute

	memoryCleanupThreshold = 70.0
	memoryMaxUsage         = 80.0
)

// Resources is what Acquire hands out. An empty value means structural
// parsing is not possible for the language and the caller must fall back.
type Resources struct {
	Parser   Parser
	Query    Query
	Language string
}

// Empty reports whether no usable resource was acquired.
func (r Resources) Empty() bool {
	return r.Parser == nil && r.Query == nil
}

// CleanupStats reports what a cleanup pass removed.
type CleanupStats struct {
	ParsersCleaned   int
	LanguagesCleared int
	ResourcesRemoved int
}

// MemoryUsage is point-in-time memory telemetry.
type MemoryUsage struct {
	AllocBytes         uint64
	SysBytes           uint64
	Percent            float64
	TrackedParsers     int
	ProcessedLanguages int
}

type parserEntry struct {
	parser    Parser
	createdAt time.Time
	lastUsed  time.Time
	useCount  int
	valid     bool
}

// ResourceManager owns per-language parser handles and their lifecycle:
// cache reuse, TTL eviction, and memory-pressure cleanup. A single mutex
// guards both maps; batch workers acquire and release across goroutines.
type ResourceManager struct {
	engine  Engine
	cfg     *config.Config
	handler *errs.Handler
	queries *QueryManager

	mu              sync.Mutex
	parsers         map[string]*parserEntry
	languages       map[string]struct{}
	maxParsers      int
	maxResourceAge  time.Duration
	lastMaintenance time.Time
}

// NewResourceManager creates a manager backed by the given engine.
func NewResourceManager(engine Engine, cfg *config.Config, handler *errs.Handler, queries *QueryManager) *ResourceManager {
	age := time.Duration(cfg.TreeSitterParserCacheTTLSec) * time.Second
	if age <= 0 {
		age = 30 * time.Minute
	}
	size := cfg.TreeSitterParserCacheSize
	if size <= 0 {
		size = 32
	}
	return &ResourceManager{
		engine:          engine,
		cfg:             cfg,
		handler:         handler,
		queries:         queries,
		parsers:         make(map[string]*parserEntry),
		languages:       make(map[string]struct{}),
		maxParsers:      size,
		maxResourceAge:  age,
		lastMaintenance: time.Now(),
	}
}

// Acquire returns cached or freshly constructed resources for a language.
// Construction failure is reported and yields an empty Resources value,
// never an error: the caller's contract is "empty means fall back".
func (m *ResourceManager) Acquire(lang, kind string) Resources {
	m.maybeMaintain()

	var parser Parser
	if kind == ResourceParser || kind == ResourceAll {
		parser = m.cachedParser(lang)
		if parser == nil {
			// Construction runs outside the lock: a slow or panicking
			// grammar binding must not wedge every other language.
			p, err := m.constructParser(lang)
			if err != nil {
				m.handler.Report(err, errs.Context{
					Component: "resource_manager",
					Operation: "acquire",
					Language:  lang,
				}, errs.CategoryResource)
				return Resources{}
			}
			parser = m.storeParser(lang, p)
		}
	} else {
		m.mu.Lock()
		m.languages[lang] = struct{}{}
		m.mu.Unlock()
	}

	var query Query
	if kind == ResourceQuery || kind == ResourceAll {
		// A nil query is valid: it means no capture query is defined or it
		// failed to compile, and the caller must use traversal extraction.
		query = m.queries.GetCompiled(lang)
	}

	return Resources{Parser: parser, Query: query, Language: lang}
}

// cachedParser returns the live cached parser for lang, dropping an expired
// or invalidated entry on the way.
func (m *ResourceManager) cachedParser(lang string) Parser {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.languages[lang] = struct{}{}
	entry, ok := m.parsers[lang]
	if !ok {
		return nil
	}
	if !entry.valid || time.Since(entry.lastUsed) > m.maxResourceAge {
		entry.parser.Close()
		delete(m.parsers, lang)
		return nil
	}
	entry.lastUsed = time.Now()
	entry.useCount++
	return entry.parser
}

// constructParser builds a parser with panic containment, so a broken
// grammar binding degrades to the construction-failure path instead of
// escaping mid-acquire.
func (m *ResourceManager) constructParser(lang string) (p Parser, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("parser construction panic for %s: %v", lang, r)
		}
	}()
	return m.engine.NewParser(lang)
}

// storeParser caches a freshly built parser. When a concurrent acquire won
// the race, the cached one is kept and the loser is closed.
func (m *ResourceManager) storeParser(lang string, p Parser) Parser {
	m.mu.Lock()
	if existing, ok := m.parsers[lang]; ok && existing.valid {
		existing.lastUsed = time.Now()
		existing.useCount++
		m.mu.Unlock()
		p.Close()
		return existing.parser
	}
	now := time.Now()
	m.parsers[lang] = &parserEntry{parser: p, createdAt: now, lastUsed: now, useCount: 1, valid: true}
	m.evictOverCapLocked(lang)
	m.mu.Unlock()
	return p
}

// evictOverCapLocked keeps the parser cache at its size bound by dropping
// the least recently used entries, never the one just added. Caller holds mu.
func (m *ResourceManager) evictOverCapLocked(keep string) {
	for len(m.parsers) > m.maxParsers {
		victim := ""
		var oldest time.Time
		for lang, e := range m.parsers {
			if lang == keep {
				continue
			}
			if victim == "" || e.lastUsed.Before(oldest) {
				victim = lang
				oldest = e.lastUsed
			}
		}
		if victim == "" {
			return
		}
		m.parsers[victim].parser.Close()
		delete(m.parsers, victim)
	}
}

// Release drops cached resources for a language and returns how many were
// released.
func (m *ResourceManager) Release(lang, kind string) int {
	released := 0
	if kind == ResourceParser || kind == ResourceAll {
		m.mu.Lock()
		if entry, ok := m.parsers[lang]; ok {
			entry.parser.Close()
			delete(m.parsers, lang)
			released++
		}
		delete(m.languages, lang)
		m.mu.Unlock()
	}
	if kind == ResourceQuery || kind == ResourceAll {
		released += m.queries.Invalidate(lang)
	}
	return released
}

// CleanupAll evicts everything and reports statistics.
func (m *ResourceManager) CleanupAll() CleanupStats {
	m.mu.Lock()
	stats := CleanupStats{}
	for lang, entry := range m.parsers {
		entry.parser.Close()
		delete(m.parsers, lang)
		stats.ParsersCleaned++
	}
	stats.LanguagesCleared = len(m.languages)
	m.languages = make(map[string]struct{})
	m.lastMaintenance = time.Now()
	m.mu.Unlock()

	stats.ResourcesRemoved = stats.ParsersCleaned + m.queries.Purge()
	return stats
}

// EvictExpired removes entries whose last use is older than maxAge.
func (m *ResourceManager) EvictExpired(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	now := time.Now()
	for lang, entry := range m.parsers {
		if now.Sub(entry.lastUsed) > maxAge {
			entry.parser.Close()
			delete(m.parsers, lang)
			removed++
		}
	}
	return removed
}

// maybeMaintain runs opportunistic maintenance: TTL eviction on the normal
// interval, plus an aggressive pass with a shortened max-age when estimated
// memory usage crosses the cleanup threshold.
func (m *ResourceManager) maybeMaintain() {
	m.mu.Lock()
	due := time.Since(m.lastMaintenance) >= maintenanceInterval
	if due {
		m.lastMaintenance = time.Now()
	}
	m.mu.Unlock()
	if !due {
		return
	}

	m.EvictExpired(m.maxResourceAge)

	if pct := m.memoryPercent(); pct >= memoryCleanupThreshold {
		removed := m.EvictExpired(pressureMaxAge)
		if pct >= memoryMaxUsage {
			// Over the hard ceiling: drop everything.
			stats := m.CleanupAll()
			removed += stats.ResourcesRemoved
		}
		m.handler.Reportf(errs.Context{
			Component: "resource_manager",
			Operation: "memory_pressure",
		}, errs.CategoryResource, "memory at %.1f%%, evicted %d resources", pct, removed)
	}
}

// MemoryPercent estimates process heap usage against the configured limit.
func (m *ResourceManager) MemoryPercent() float64 {
	return m.memoryPercent()
}

func (m *ResourceManager) memoryPercent() float64 {
	limit := uint64(m.cfg.MemoryLimitMB) * 1024 * 1024
	if limit == 0 {
		return 0
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / float64(limit) * 100
}

// Usage returns memory and cache telemetry.
func (m *ResourceManager) Usage() MemoryUsage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.mu.Lock()
	defer m.mu.Unlock()
	u := MemoryUsage{
		AllocBytes:         ms.HeapAlloc,
		SysBytes:           ms.Sys,
		TrackedParsers:     len(m.parsers),
		ProcessedLanguages: len(m.languages),
	}
	if limit := uint64(m.cfg.MemoryLimitMB) * 1024 * 1024; limit > 0 {
		u.Percent = float64(ms.HeapAlloc) / float64(limit) * 100
	}
	return u
}

// Info summarizes tracked resources for diagnostics.
func (m *ResourceManager) Info() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldest := time.Duration(0)
	now := time.Now()
	for _, e := range m.parsers {
		if age := now.Sub(e.createdAt); age > oldest {
			oldest = age
		}
	}
	return fmt.Sprintf("parsers=%d languages=%d oldest=%s", len(m.parsers), len(m.languages), oldest.Round(time.Second))
}
