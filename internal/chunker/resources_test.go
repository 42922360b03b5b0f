package chunker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescout/internal/config"
	"codescout/internal/errs"
)

func managerWithEngine(engine Engine) (*ResourceManager, *errs.Handler) {
	cfg := config.Default()
	handler := errs.NewHandler(false)
	qm := NewQueryManager(engine, cfg, handler)
	return NewResourceManager(engine, cfg, handler, qm), handler
}

func parserEngine() *fakeEngine {
	return &fakeEngine{
		supports: map[string]bool{"python": true, "go": true},
		newParser: func(string) (Parser, error) {
			return &fakeParser{tree: &fakeTree{root: &fakeNode{kind: "module"}}}, nil
		},
		compile: func(string, string) (Query, error) { return &cursorQuery{}, nil },
	}
}

func TestAcquireCachesParser(t *testing.T) {
	calls := 0
	engine := parserEngine()
	inner := engine.newParser
	engine.newParser = func(lang string) (Parser, error) {
		calls++
		return inner(lang)
	}
	m, _ := managerWithEngine(engine)

	a := m.Acquire("python", ResourceParser)
	b := m.Acquire("python", ResourceParser)
	require.NotNil(t, a.Parser)
	assert.Same(t, a.Parser, b.Parser)
	assert.Equal(t, 1, calls)
}

func TestAcquireSurvivesConstructionPanic(t *testing.T) {
	engine := &fakeEngine{
		supports:  map[string]bool{"python": true, "go": true},
		newParser: func(string) (Parser, error) { panic("grammar binding blew up") },
	}
	m, handler := managerWithEngine(engine)

	res := m.Acquire("python", ResourceAll)
	assert.True(t, res.Empty())
	assert.Equal(t, 1, handler.Total())

	// The manager stays usable: no lock is left held by the panic.
	res = m.Acquire("go", ResourceParser)
	assert.True(t, res.Empty())
	assert.Equal(t, 0, m.Usage().TrackedParsers)
	assert.Zero(t, m.CleanupAll().ParsersCleaned)
}

func TestParserCacheSizeBound(t *testing.T) {
	langs := []string{"python", "go", "rust", "java"}
	supports := map[string]bool{}
	for _, l := range langs {
		supports[l] = true
	}
	engine := &fakeEngine{
		supports: supports,
		newParser: func(string) (Parser, error) {
			return &fakeParser{tree: &fakeTree{root: &fakeNode{kind: "module"}}}, nil
		},
	}
	cfg := config.Default()
	cfg.TreeSitterParserCacheSize = 2
	handler := errs.NewHandler(false)
	m := NewResourceManager(engine, cfg, handler, NewQueryManager(engine, cfg, handler))

	for _, l := range langs {
		require.NotNil(t, m.Acquire(l, ResourceParser).Parser)
	}
	assert.Equal(t, 2, m.Usage().TrackedParsers)
	// The newest acquisition always survives eviction.
	assert.NotNil(t, m.parsers["java"])
}

func TestAcquireFailureReturnsEmpty(t *testing.T) {
	engine := &fakeEngine{
		supports:  map[string]bool{"python": true},
		newParser: func(string) (Parser, error) { return nil, errors.New("grammar missing") },
	}
	m, handler := managerWithEngine(engine)

	res := m.Acquire("python", ResourceAll)
	assert.True(t, res.Empty())
	assert.Equal(t, 1, handler.Total())
}

func TestAcquireQueryOnly(t *testing.T) {
	m, _ := managerWithEngine(parserEngine())

	res := m.Acquire("python", ResourceQuery)
	assert.Nil(t, res.Parser)
	assert.NotNil(t, res.Query)
}

func TestReleaseDropsParser(t *testing.T) {
	m, _ := managerWithEngine(parserEngine())

	a := m.Acquire("python", ResourceParser)
	require.NotNil(t, a.Parser)
	assert.Equal(t, 1, m.Release("python", ResourceParser))

	b := m.Acquire("python", ResourceParser)
	assert.NotSame(t, a.Parser, b.Parser)
}

func TestCleanupAll(t *testing.T) {
	m, _ := managerWithEngine(parserEngine())
	m.Acquire("python", ResourceAll)
	m.Acquire("go", ResourceAll)

	stats := m.CleanupAll()
	assert.Equal(t, 2, stats.ParsersCleaned)
	assert.Equal(t, 2, stats.LanguagesCleared)
	assert.GreaterOrEqual(t, stats.ResourcesRemoved, 2)

	u := m.Usage()
	assert.Zero(t, u.TrackedParsers)
	assert.Zero(t, u.ProcessedLanguages)
}

func TestEvictExpired(t *testing.T) {
	m, _ := managerWithEngine(parserEngine())
	m.Acquire("python", ResourceParser)

	assert.Equal(t, 0, m.EvictExpired(time.Hour))
	assert.Equal(t, 1, m.EvictExpired(0))
}

func TestUsageTelemetry(t *testing.T) {
	m, _ := managerWithEngine(parserEngine())
	m.Acquire("python", ResourceParser)

	u := m.Usage()
	assert.Equal(t, 1, u.TrackedParsers)
	assert.Equal(t, 1, u.ProcessedLanguages)
	assert.Positive(t, u.AllocBytes)
}
