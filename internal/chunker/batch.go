package chunker

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"codescout/internal/errs"
	"codescout/internal/language"
)

// parallelThreshold is the batch size below which worker coordination costs
// more than it saves.
const parallelThreshold = 5

// unknownGroup buckets files whose language could not be detected. They
// still get chunked; detection runs again per file inside Chunk and falls
// through the chain.
const unknownGroup = "unknown"

// BatchStats summarizes one batch run.
type BatchStats struct {
	Files     int
	Blocks    int
	Languages int
	Failures  int
	Elapsed   time.Duration
}

// BatchProcessor chunks many files, grouping them by language so each
// group's parser resources are acquired once and released together. Groups
// run on bounded workers; one slow or broken file never blocks the batch
// past the group timeout.
type BatchProcessor struct {
	chunker *Chunker
	handler *errs.Handler
}

// NewBatchProcessor wraps a chunker for batch use.
func NewBatchProcessor(c *Chunker, handler *errs.Handler) *BatchProcessor {
	return &BatchProcessor{chunker: c, handler: handler}
}

// Process chunks every file and returns all blocks ordered by file path and
// start line. Every input file is accounted for: files whose group timed
// out or whose structural pass failed are chunked with the line strategy so
// none is silently dropped.
func (b *BatchProcessor) Process(ctx context.Context, files []FileInput) ([]CodeBlock, BatchStats) {
	start := time.Now()
	cfg := b.chunker.cfg

	groups := map[string][]FileInput{}
	for _, f := range files {
		lang, ok := language.Detect(f.Path)
		if !ok {
			lang = unknownGroup
		}
		groups[lang] = append(groups[lang], f)
	}

	var (
		mu     sync.Mutex
		blocks []CodeBlock
		fails  int
	)
	collect := func(bs []CodeBlock, failed int) {
		mu.Lock()
		blocks = append(blocks, bs...)
		fails += failed
		mu.Unlock()
	}

	if cfg.ParallelProcessing && len(files) > parallelThreshold {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.MaxParallelWorkers)
		for lang, group := range groups {
			g.Go(func() error {
				bs, failed := b.processGroup(gctx, lang, group)
				collect(bs, failed)
				return nil
			})
		}
		// Workers never return errors; Wait only joins them.
		_ = g.Wait()
	} else {
		for lang, group := range groups {
			bs, failed := b.processGroup(ctx, lang, group)
			collect(bs, failed)
		}
	}

	if b.chunker.resources.MemoryPercent() >= memoryMaxUsage {
		b.chunker.resources.CleanupAll()
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].FilePath != blocks[j].FilePath {
			return blocks[i].FilePath < blocks[j].FilePath
		}
		return blocks[i].StartLine < blocks[j].StartLine
	})

	return blocks, BatchStats{
		Files:     len(files),
		Blocks:    len(blocks),
		Languages: len(groups),
		Failures:  fails,
		Elapsed:   time.Since(start),
	}
}

// ProcessByFile runs Process and groups the blocks by file path. The map has
// an entry for every input file, empty when the file produced no blocks, so
// callers can account for each path without rescanning the input.
func (b *BatchProcessor) ProcessByFile(ctx context.Context, files []FileInput) (map[string][]CodeBlock, BatchStats) {
	blocks, stats := b.Process(ctx, files)
	byFile := make(map[string][]CodeBlock, len(files))
	for _, f := range files {
		byFile[f.Path] = nil
	}
	for _, blk := range blocks {
		byFile[blk.FilePath] = append(byFile[blk.FilePath], blk)
	}
	return byFile, stats
}

// processGroup chunks one language group under the group timeout. After the
// deadline fires, remaining files drop straight to line chunking so the
// batch still covers every file.
func (b *BatchProcessor) processGroup(ctx context.Context, lang string, group []FileInput) ([]CodeBlock, int) {
	timeout := time.Duration(b.chunker.cfg.GroupTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var blocks []CodeBlock
	failed := 0
	for _, f := range group {
		if gctx.Err() != nil {
			b.handler.Reportf(errs.Context{
				Component: "batch_processor",
				Operation: "group",
				FilePath:  f.Path,
				Language:  lang,
			}, errs.CategoryBatch, "group deadline exceeded, using line chunking")
			failed++
			blocks = append(blocks, b.chunker.lines.Chunk(f)...)
			continue
		}
		blocks = append(blocks, b.chunker.Chunk(gctx, f)...)
	}
	return blocks, failed
}
