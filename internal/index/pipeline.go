package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"

	"codescout/internal/chunker"
	"codescout/internal/config"
	"codescout/internal/embedder"
	"codescout/internal/language"
	"codescout/internal/store"
	"codescout/internal/walker"
)

// Stats reports indexing results.
type Stats struct {
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	FilesPruned  int
	BlocksTotal  int
}

// fileWork is a file that needs to be (re-)indexed.
type fileWork struct {
	info walker.FileInfo
	hash string
	lang string
	src  []byte
}

func runPipeline(
	ctx context.Context,
	root string,
	cfg *config.Config,
	s store.Store,
	batch *chunker.BatchProcessor,
	emb *embedder.OllamaEmbedder,
	onProgress ProgressFunc,
) (*Stats, error) {
	stats := &Stats{}

	// Stage 1: walk. Stage 2: hash and changed-check on a small worker pool.
	fileCh, walkErrCh := walker.Walk(root, cfg.MaxFileSizeBytes)

	var (
		mu      sync.Mutex
		changed []fileWork
		seen    = map[string]struct{}{}
	)
	var hashWg sync.WaitGroup
	for range cfg.MaxParallelWorkers {
		hashWg.Add(1)
		go func() {
			defer hashWg.Done()
			for fi := range fileCh {
				src, err := os.ReadFile(fi.Path)
				if err != nil {
					continue
				}
				sum := sha256.Sum256(src)
				hash := hex.EncodeToString(sum[:])

				mu.Lock()
				stats.FilesTotal++
				seen[fi.RelPath] = struct{}{}
				mu.Unlock()

				existing, err := s.GetFileHash(fi.RelPath)
				if err == nil && existing == hash {
					continue // unchanged
				}

				lang, _ := language.Detect(fi.RelPath)
				mu.Lock()
				changed = append(changed, fileWork{info: fi, hash: hash, lang: lang, src: src})
				mu.Unlock()
			}
		}()
	}
	hashWg.Wait()
	if err := <-walkErrCh; err != nil {
		return stats, fmt.Errorf("walk error: %w", err)
	}

	// Prune files that are indexed but no longer on disk.
	if paths, err := s.ListPaths(); err == nil {
		for _, p := range paths {
			if _, ok := seen[p]; !ok {
				if err := s.DeleteByFilePath(p); err == nil {
					stats.FilesPruned++
				}
			}
		}
	}

	stats.FilesSkipped = stats.FilesTotal - len(changed)
	if len(changed) == 0 {
		return stats, nil
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].info.RelPath < changed[j].info.RelPath })

	// Stage 3: chunk everything in one batch, grouped by language.
	inputs := make([]chunker.FileInput, len(changed))
	for i, w := range changed {
		inputs[i] = chunker.FileInput{Path: w.info.RelPath, Text: string(w.src), Hash: w.hash}
	}
	byFile, _ := batch.ProcessByFile(ctx, inputs)

	// Stages 4 and 5: embed in sub-batches, then store, file by file so a
	// failed file leaves the rest of the run intact.
	var firstErr error
	done := 0
	for _, w := range changed {
		done++
		if onProgress != nil {
			onProgress("Indexing files...", done, len(changed))
		}

		fileBlocks := byFile[w.info.RelPath]
		if err := s.UpsertFile(store.FileRecord{
			Path:      w.info.RelPath,
			Hash:      w.hash,
			Language:  w.lang,
			SizeBytes: w.info.Size,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "store upsert error %s: %v\n", w.info.RelPath, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(fileBlocks) == 0 {
			stats.FilesIndexed++
			continue
		}

		points, err := embedBlocks(ctx, emb, cfg.EmbedBatchSize, fileBlocks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "embed error %s: %v\n", w.info.RelPath, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("embedding failed: %w", err)
			}
			continue
		}
		if err := s.Upsert(points); err != nil {
			fmt.Fprintf(os.Stderr, "store blocks error %s: %v\n", w.info.RelPath, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("storage failed: %w", err)
			}
			continue
		}
		stats.FilesIndexed++
		stats.BlocksTotal += len(fileBlocks)
	}

	return stats, firstErr
}

// embedBlocks embeds a file's blocks in sub-batches and pairs each with its
// point ID.
func embedBlocks(ctx context.Context, emb *embedder.OllamaEmbedder, batchSize int, blocks []chunker.CodeBlock) ([]store.Point, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	points := make([]store.Point, 0, len(blocks))
	for i := 0; i < len(blocks); i += batchSize {
		end := i + batchSize
		if end > len(blocks) {
			end = len(blocks)
		}
		texts := make([]string, end-i)
		for j, b := range blocks[i:end] {
			texts[j] = b.Content
		}
		vectors, err := emb.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		for j, b := range blocks[i:end] {
			points = append(points, store.NewPoint(b, vectors[j]))
		}
	}
	return points, nil
}
