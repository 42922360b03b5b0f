package chunker

import (
	"context"
	"fmt"
	"sync"

	"codescout/internal/config"
	"codescout/internal/errs"
	"codescout/internal/language"
)

// chunkStep is one link of the fallback chain. ok=false means "this
// strategy does not apply or produced nothing, try the next"; it is not an
// error.
type chunkStep struct {
	name string
	run  func(ctx context.Context, file FileInput, lang string) ([]CodeBlock, bool)
}

// Chunker turns file text into CodeBlocks. Strategy selection walks an
// ordered fallback chain (structural, hybrid, regex, lines) so that Chunk
// always returns blocks for non-empty text and never panics; every absorbed
// failure lands in the error handler instead.
type Chunker struct {
	cfg     *config.Config
	handler *errs.Handler

	engine    Engine
	resources *ResourceManager
	queries   *QueryManager
	executor  *QueryExecutor
	extractor *BlockExtractor
	files     *FileProcessor
	hybrid    *HybridParserManager
	regex     *RegexStrategy
	lines     *LineStrategy
	tokens    *TokenStrategy

	chain []chunkStep

	mu          sync.Mutex
	strategyUse map[string]int
}

// New builds a chunker on the tree-sitter engine.
func New(cfg *config.Config, handler *errs.Handler) *Chunker {
	return NewWithEngine(cfg, handler, NewSitterEngine())
}

// NewWithEngine builds a chunker on an explicit engine. Tests inject fakes
// here.
func NewWithEngine(cfg *config.Config, handler *errs.Handler, engine Engine) *Chunker {
	queries := NewQueryManager(engine, cfg, handler)
	lines := NewLineStrategy(cfg)
	c := &Chunker{
		cfg:         cfg,
		handler:     handler,
		engine:      engine,
		queries:     queries,
		resources:   NewResourceManager(engine, cfg, handler, queries),
		executor:    NewQueryExecutor(handler),
		extractor:   NewBlockExtractor(cfg, handler),
		files:       NewFileProcessor(cfg, handler),
		hybrid:      NewHybridParserManager(cfg),
		regex:       NewRegexStrategy(cfg, lines),
		lines:       lines,
		tokens:      NewTokenStrategy(cfg),
		strategyUse: make(map[string]int),
	}
	c.chain = []chunkStep{
		{"structural", c.runStructural},
		{"hybrid", c.runHybrid},
		{"regex", c.runRegex},
		{"lines", c.runLines},
	}
	return c
}

// Resources exposes the resource manager for lifecycle control.
func (c *Chunker) Resources() *ResourceManager { return c.resources }

// Close releases all cached parsing resources.
func (c *Chunker) Close() { c.resources.CleanupAll() }

// StrategyUse reports how many files each chain step settled.
func (c *Chunker) StrategyUse() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.strategyUse))
	for k, v := range c.strategyUse {
		out[k] = v
	}
	return out
}

func (c *Chunker) recordUse(step string) {
	c.mu.Lock()
	c.strategyUse[step]++
	c.mu.Unlock()
}

// Chunk splits one file into blocks. It never panics and never returns an
// error: any failure mode degrades to a simpler strategy, bottoming out at
// line chunking. Binary or empty content yields no blocks.
func (c *Chunker) Chunk(ctx context.Context, file FileInput) (blocks []CodeBlock) {
	defer func() {
		if r := recover(); r != nil {
			c.handler.Reportf(errs.Context{
				Component: "chunker",
				Operation: "chunk",
				FilePath:  file.Path,
			}, errs.CategoryExtraction, "recovered: %v", r)
			blocks = c.lines.Chunk(file)
			c.recordUse("lines")
		}
	}()

	if len(file.Text) == 0 || IsBinary([]byte(file.Text)) {
		return nil
	}

	switch c.cfg.ChunkingStrategy {
	case "lines":
		c.recordUse("lines")
		return c.lines.Chunk(file)
	case "tokens":
		c.recordUse("tokens")
		return c.tokens.Chunk(file)
	}

	lang, _ := language.Detect(file.Path)
	for _, step := range c.chain {
		if out, ok := step.run(ctx, file, lang); ok {
			c.recordUse(step.name)
			return out
		}
	}
	// Unreachable: the lines step always succeeds on non-empty text. Kept so
	// the chain stays data, not control flow.
	return nil
}

func (c *Chunker) runStructural(ctx context.Context, file FileInput, lang string) ([]CodeBlock, bool) {
	if lang == "" || !c.engine.Supports(lang) {
		return nil, false
	}
	if err := c.files.Check(file.Path, int64(len(file.Text)), lang); err != nil {
		c.handler.Report(err, errs.Context{
			Component: "file_processor",
			Operation: "check",
			FilePath:  file.Path,
			Language:  lang,
		}, errs.CategoryFile)
		return nil, false
	}
	if err := c.files.CheckContent([]byte(file.Text), lang); err != nil {
		c.handler.Report(err, errs.Context{
			Component: "file_processor",
			Operation: "check_content",
			FilePath:  file.Path,
			Language:  lang,
		}, errs.CategoryFile)
		return nil, false
	}

	res := c.resources.Acquire(lang, ResourceAll)
	if res.Empty() || res.Parser == nil {
		return nil, false
	}

	src := []byte(file.Text)
	tree, err := res.Parser.Parse(ctx, src)
	if err != nil || tree == nil {
		if err != nil {
			c.handler.Report(fmt.Errorf("%w: %v", errs.ErrParserUnavailable, err), errs.Context{
				Component: "chunker",
				Operation: "parse",
				FilePath:  file.Path,
				Language:  lang,
			}, errs.CategoryParsing)
		}
		return nil, false
	}
	defer tree.Close()
	root := tree.Root()

	var blocks []CodeBlock
	if res.Query != nil {
		if exec, err := c.executor.Execute(res.Query, root, src, lang); err == nil {
			blocks = c.extractor.Extract(exec, file, lang)
		}
	}
	if len(blocks) == 0 {
		blocks = c.extractor.ExtractByNodeTypes(root, file, lang)
	}
	if len(blocks) == 0 {
		return nil, false
	}
	return c.splitOversized(file, blocks), true
}

func (c *Chunker) runHybrid(_ context.Context, file FileInput, lang string) ([]CodeBlock, bool) {
	blocks, applied := c.hybrid.Parse(file, lang)
	if !applied || len(blocks) == 0 {
		return nil, false
	}
	return blocks, true
}

func (c *Chunker) runRegex(_ context.Context, file FileInput, lang string) ([]CodeBlock, bool) {
	blocks := c.regex.Chunk(file, lang)
	if len(blocks) == 0 {
		return nil, false
	}
	return blocks, true
}

func (c *Chunker) runLines(_ context.Context, file FileInput, _ string) ([]CodeBlock, bool) {
	return c.lines.Chunk(file), true
}

// splitOversized re-chunks structural blocks that blew past the size
// ceiling, replacing each with line-accumulated pieces over the same span.
func (c *Chunker) splitOversized(file FileInput, blocks []CodeBlock) []CodeBlock {
	maxLen := int(float64(c.cfg.MaxBlockChars) * sizeTolerance)
	out := blocks[:0:0]
	for _, b := range blocks {
		if len(b.Content) <= maxLen {
			out = append(out, b)
			continue
		}
		pieces := c.lines.chunkSpan(file, b.StartLine, splitContentLines(b.Content))
		for i := range pieces {
			if b.Identifier != "" {
				pieces[i].Identifier = fmt.Sprintf("%s_part%d", b.Identifier, i+1)
			}
			pieces[i].Type = b.Type
		}
		out = append(out, pieces...)
	}
	return out
}

func splitContentLines(content string) []string {
	lines := make([]string, 0, 16)
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	return append(lines, content[start:])
}
