package chunker

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescout/internal/config"
	"codescout/internal/errs"
)

func testBatch(engine Engine, mutate func(*config.Config)) *BatchProcessor {
	c, handler := testChunker(engine, mutate)
	return NewBatchProcessor(c, handler)
}

func batchFiles(n int) []FileInput {
	files := make([]FileInput, 0, n)
	for i := range n {
		var f FileInput
		switch i % 3 {
		case 0:
			f = FileInput{
				Path: fmt.Sprintf("pkg/file%02d.py", i),
				Text: fmt.Sprintf("def function_%02d(x):\n    return x + %d\n", i, i),
				Hash: fmt.Sprintf("h%02d", i),
			}
		case 1:
			f = FileInput{
				Path: fmt.Sprintf("conf/settings%02d.ini", i),
				Text: fmt.Sprintf("[section_%02d]\nkey = value_%02d\n", i, i),
				Hash: fmt.Sprintf("h%02d", i),
			}
		default:
			f = FileInput{
				Path: fmt.Sprintf("notes/readme%02d.xyz", i),
				Text: fmt.Sprintf("freeform note number %02d with enough characters\n", i),
				Hash: fmt.Sprintf("h%02d", i),
			}
		}
		files = append(files, f)
	}
	return files
}

func TestBatchCoversEveryFile(t *testing.T) {
	b := testBatch(&fakeEngine{}, nil)
	defer b.chunker.Close()

	files := batchFiles(12)
	blocks, stats := b.Process(context.Background(), files)

	covered := map[string]bool{}
	for _, blk := range blocks {
		covered[blk.FilePath] = true
	}
	for _, f := range files {
		assert.True(t, covered[f.Path], "no blocks for %s", f.Path)
	}
	assert.Equal(t, 12, stats.Files)
	assert.Equal(t, len(blocks), stats.Blocks)
	assert.Equal(t, 3, stats.Languages) // python, ini, unknown
}

func TestBatchOutputOrdered(t *testing.T) {
	b := testBatch(&fakeEngine{}, nil)
	defer b.chunker.Close()

	blocks, _ := b.Process(context.Background(), batchFiles(9))
	require.NotEmpty(t, blocks)

	sorted := sort.SliceIsSorted(blocks, func(i, j int) bool {
		if blocks[i].FilePath != blocks[j].FilePath {
			return blocks[i].FilePath < blocks[j].FilePath
		}
		return blocks[i].StartLine < blocks[j].StartLine
	})
	assert.True(t, sorted)
}

func TestBatchByFileHasEntryForEveryPath(t *testing.T) {
	b := testBatch(&fakeEngine{}, nil)
	defer b.chunker.Close()

	files := batchFiles(9)
	// A file that yields no blocks still gets a map entry.
	files = append(files, FileInput{Path: "empty.py", Text: "", Hash: "h-empty"})

	byFile, stats := b.ProcessByFile(context.Background(), files)
	assert.Len(t, byFile, len(files))
	for _, f := range files {
		_, ok := byFile[f.Path]
		assert.True(t, ok, "missing entry for %s", f.Path)
	}
	assert.Empty(t, byFile["empty.py"])
	assert.Equal(t, len(files), stats.Files)

	for path, blocks := range byFile {
		for _, blk := range blocks {
			assert.Equal(t, path, blk.FilePath)
		}
	}
}

func TestBatchSequentialMatchesParallel(t *testing.T) {
	files := batchFiles(15)

	seq := testBatch(&fakeEngine{}, func(c *config.Config) { c.ParallelProcessing = false })
	defer seq.chunker.Close()
	par := testBatch(&fakeEngine{}, func(c *config.Config) {
		c.ParallelProcessing = true
		c.MaxParallelWorkers = 4
	})
	defer par.chunker.Close()

	a, _ := seq.Process(context.Background(), files)
	b, _ := par.Process(context.Background(), files)
	assert.Equal(t, a, b)
}

func TestBatchGroupTimeoutFallsBackToLines(t *testing.T) {
	b := testBatch(&fakeEngine{}, func(c *config.Config) {
		c.ParallelProcessing = false
	})
	defer b.chunker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already expired: every file takes the degraded path

	files := batchFiles(6)
	blocks, stats := b.Process(ctx, files)
	assert.Equal(t, 6, stats.Failures)
	covered := map[string]bool{}
	for _, blk := range blocks {
		covered[blk.FilePath] = true
	}
	for _, f := range files {
		assert.True(t, covered[f.Path], "no blocks for %s", f.Path)
	}
}

func TestBatchEmptyInput(t *testing.T) {
	b := testBatch(&fakeEngine{}, nil)
	defer b.chunker.Close()

	blocks, stats := b.Process(context.Background(), nil)
	assert.Empty(t, blocks)
	assert.Zero(t, stats.Files)
}

func TestBatchReportsErrorsNotFailures(t *testing.T) {
	handler := errs.NewHandler(false)
	cfg := config.Default()
	cfg.MinBlockChars = 10
	engine := &fakeEngine{
		supports:  map[string]bool{"python": true},
		newParser: func(string) (Parser, error) { panic("grammar load failure") },
	}
	c := NewWithEngine(cfg, handler, engine)
	defer c.Close()
	b := NewBatchProcessor(c, handler)

	files := batchFiles(6)
	blocks, _ := b.Process(context.Background(), files)

	covered := map[string]bool{}
	for _, blk := range blocks {
		covered[blk.FilePath] = true
	}
	for _, f := range files {
		assert.True(t, covered[f.Path], "no blocks for %s", f.Path)
	}
	assert.Positive(t, handler.Total())
}
