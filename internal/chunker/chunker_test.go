package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"codescout/internal/config"
	"codescout/internal/errs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testChunker(engine Engine, mutate func(*config.Config)) (*Chunker, *errs.Handler) {
	cfg := config.Default()
	cfg.MinBlockChars = 10
	cfg.TreeSitterMinBlockChars = 10
	if mutate != nil {
		mutate(cfg)
	}
	handler := errs.NewHandler(false)
	return NewWithEngine(cfg, handler, engine), handler
}

// structuralEngine parses any python file into a tree with one function
// definition node and compiles a query that captures it.
func structuralEngine(src string) *fakeEngine {
	fn := span(src, "def first_function(a, b):\n    return a + b", "function_definition")
	name := span(src, "first_function", "identifier")
	fn.children = []*fakeNode{name}
	root := &fakeNode{kind: "module", src: src, endByte: len(src), children: []*fakeNode{fn}}
	return &fakeEngine{
		supports: map[string]bool{"python": true},
		newParser: func(string) (Parser, error) {
			return &fakeParser{tree: &fakeTree{root: root}}, nil
		},
		compile: func(string, string) (Query, error) {
			return &listQuery{captures: []Capture{
				{Node: fn, Name: "function"},
				{Node: name, Name: "name"},
			}}, nil
		},
	}
}

func TestChunkStructural(t *testing.T) {
	c, _ := testChunker(structuralEngine(pySrc), nil)
	defer c.Close()

	blocks := c.Chunk(context.Background(), FileInput{Path: "a.py", Text: pySrc, Hash: "h"})
	require.Len(t, blocks, 1)
	assert.Equal(t, "first_function", blocks[0].Identifier)
	assert.Equal(t, "function", blocks[0].Type)
	assert.Equal(t, 1, c.StrategyUse()["structural"])
}

func TestChunkTraversalWhenQueryEmpty(t *testing.T) {
	fn := span(pySrc, "def first_function(a, b):\n    return a + b", "function_definition")
	root := &fakeNode{kind: "module", src: pySrc, endByte: len(pySrc), children: []*fakeNode{fn}}
	engine := &fakeEngine{
		supports: map[string]bool{"python": true},
		newParser: func(string) (Parser, error) {
			return &fakeParser{tree: &fakeTree{root: root}}, nil
		},
		compile: func(string, string) (Query, error) {
			return &listQuery{}, nil // executes fine, captures nothing
		},
	}
	c, _ := testChunker(engine, nil)
	defer c.Close()

	blocks := c.Chunk(context.Background(), FileInput{Path: "a.py", Text: pySrc, Hash: "h"})
	require.NotEmpty(t, blocks)
	assert.Equal(t, "function_definition", blocks[0].Type)
}

func TestChunkFallsBackToRegexOnParserFailure(t *testing.T) {
	engine := &fakeEngine{
		supports:  map[string]bool{"python": true},
		newParser: func(string) (Parser, error) { return nil, errors.New("grammar unavailable") },
	}
	c, handler := testChunker(engine, nil)
	defer c.Close()

	src := "def lonely_function(x):\n    return x * 2\n"
	blocks := c.Chunk(context.Background(), FileInput{Path: "a.py", Text: src, Hash: "h"})
	require.NotEmpty(t, blocks)
	assert.Equal(t, "lonely_function", blocks[0].Identifier)
	assert.Equal(t, 1, c.StrategyUse()["regex"])
	assert.Positive(t, handler.Total())
}

func TestChunkFallsBackToLines(t *testing.T) {
	c, _ := testChunker(&fakeEngine{}, nil)
	defer c.Close()

	// Unknown extension, no signatures: only the line strategy can serve it.
	text := strings.Repeat("no structure here at all\n", 5)
	blocks := c.Chunk(context.Background(), FileInput{Path: "notes.xyz", Text: text, Hash: "h"})
	require.NotEmpty(t, blocks)
	assert.Equal(t, 1, c.StrategyUse()["lines"])

	total := 0
	for _, b := range blocks {
		total += len(b.Content)
	}
	assert.GreaterOrEqual(t, total, len(text)-len(blocks)) // joining newlines excluded
}

func TestChunkHybridForConfigFile(t *testing.T) {
	c, _ := testChunker(&fakeEngine{}, nil)
	defer c.Close()

	ini := "[server]\nhost = localhost\nport = 8080\n"
	blocks := c.Chunk(context.Background(), FileInput{Path: "app.ini", Text: ini, Hash: "h"})
	require.NotEmpty(t, blocks)
	assert.Equal(t, "config_section", blocks[0].Type)
	assert.Equal(t, 1, c.StrategyUse()["hybrid"])
}

func TestChunkNeverPanics(t *testing.T) {
	engine := &fakeEngine{
		supports: map[string]bool{"python": true, "go": true},
		newParser: func(string) (Parser, error) {
			panic("engine exploded")
		},
	}
	c, _ := testChunker(engine, nil)
	defer c.Close()

	inputs := []FileInput{
		{Path: "a.py", Text: "def broken(:\n    ???\n", Hash: "h1"},
		{Path: "b.go", Text: strings.Repeat("\x7f\x10garbage ascii soup\n", 10), Hash: "h2"},
		{Path: "c.unknown", Text: "\x00\x01\x02", Hash: "h3"},
		{Path: "d.py", Text: "", Hash: "h4"},
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			c.Chunk(context.Background(), in)
		}, in.Path)
	}
}

func TestChunkBinaryAndEmptyYieldNothing(t *testing.T) {
	c, _ := testChunker(&fakeEngine{}, nil)
	defer c.Close()

	assert.Empty(t, c.Chunk(context.Background(), FileInput{Path: "a.bin", Text: "x\x00y", Hash: "h"}))
	assert.Empty(t, c.Chunk(context.Background(), FileInput{Path: "a.txt", Text: "", Hash: "h"}))
}

func TestChunkDeterministicWithBrokenEngine(t *testing.T) {
	engine := &fakeEngine{
		supports:  map[string]bool{"python": true},
		newParser: func(string) (Parser, error) { return nil, errors.New("always broken") },
	}
	c, _ := testChunker(engine, nil)
	defer c.Close()

	file := FileInput{Path: "m.py", Text: "def f_one():\n    return 1\n\ndef f_two():\n    return 2\n", Hash: "h"}
	a := c.Chunk(context.Background(), file)
	b := c.Chunk(context.Background(), file)
	assert.Equal(t, a, b)
}

func TestChunkStrategyModeLines(t *testing.T) {
	c, _ := testChunker(structuralEngine(pySrc), func(cfg *config.Config) {
		cfg.ChunkingStrategy = "lines"
	})
	defer c.Close()

	blocks := c.Chunk(context.Background(), FileInput{Path: "a.py", Text: pySrc, Hash: "h"})
	require.NotEmpty(t, blocks)
	assert.Equal(t, "segment", blocks[0].Type)
	assert.Zero(t, c.StrategyUse()["structural"])
}

func TestChunkStrategyModeTokens(t *testing.T) {
	c, _ := testChunker(structuralEngine(pySrc), func(cfg *config.Config) {
		cfg.ChunkingStrategy = "tokens"
		cfg.TokenChunkSize = 5
		cfg.TokenChunkOverlap = 0
	})
	defer c.Close()

	blocks := c.Chunk(context.Background(), FileInput{Path: "a.py", Text: pySrc, Hash: "h"})
	require.NotEmpty(t, blocks)
	assert.Equal(t, "token_window", blocks[0].Type)
}

func TestChunkSplitsOversizedStructuralBlocks(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("def first_function(a, b):\n    return a + b\n")
	src := sb.String() + strings.Repeat("# padding line to inflate the block body\n", 60)

	fn := &fakeNode{kind: "function_definition", src: src, startByte: 0, endByte: len(src)}
	name := span(src, "first_function", "identifier")
	root := &fakeNode{kind: "module", src: src, endByte: len(src), children: []*fakeNode{fn}}
	engine := &fakeEngine{
		supports: map[string]bool{"python": true},
		newParser: func(string) (Parser, error) {
			return &fakeParser{tree: &fakeTree{root: root}}, nil
		},
		compile: func(string, string) (Query, error) {
			return &listQuery{captures: []Capture{
				{Node: fn, Name: "function"},
				{Node: name, Name: "name"},
			}}, nil
		},
	}
	maxChars := 400
	c, _ := testChunker(engine, func(cfg *config.Config) {
		cfg.MaxBlockChars = maxChars
	})
	defer c.Close()

	blocks := c.Chunk(context.Background(), FileInput{Path: "a.py", Text: src, Hash: "h"})
	require.Greater(t, len(blocks), 1)
	limit := int(float64(maxChars) * sizeTolerance)
	for i, b := range blocks {
		assert.LessOrEqual(t, len(b.Content), limit)
		assert.Equal(t, "function", b.Type)
		assert.Equal(t, fmt.Sprintf("first_function_part%d", i+1), b.Identifier)
	}
}

func TestChunkSkipsFilteredFileToFallback(t *testing.T) {
	c, _ := testChunker(structuralEngine(pySrc), nil)
	defer c.Close()

	// Test files are excluded from structural parsing but still get chunked.
	blocks := c.Chunk(context.Background(), FileInput{Path: "test_helpers.py", Text: pySrc, Hash: "h"})
	require.NotEmpty(t, blocks)
	assert.Zero(t, c.StrategyUse()["structural"])
}
