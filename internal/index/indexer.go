package index

import (
	"context"
	"fmt"

	"codescout/internal/chunker"
	"codescout/internal/config"
	"codescout/internal/embedder"
	"codescout/internal/errs"
	"codescout/internal/store"
)

// ProgressFunc receives progress updates during indexing.
type ProgressFunc func(phase string, done, total int)

// Indexer is the public API for indexing and searching a workspace.
type Indexer struct {
	cfg      *config.Config
	handler  *errs.Handler
	store    store.Store
	embedder *embedder.OllamaEmbedder
	chunker  *chunker.Chunker
	batch    *chunker.BatchProcessor
}

// New creates an Indexer from configuration.
func New(cfg *config.Config) (*Indexer, error) {
	s, err := store.Open(cfg.ResolveDBPath(), cfg.EmbeddingLength)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return NewWithStore(cfg, s), nil
}

// NewWithStore creates an Indexer on an existing store. Tests use this with
// an in-memory database.
func NewWithStore(cfg *config.Config, s store.Store) *Indexer {
	handler := errs.NewHandler(cfg.Debug)
	c := chunker.New(cfg, handler)
	return &Indexer{
		cfg:      cfg,
		handler:  handler,
		store:    s,
		embedder: embedder.NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.EmbedTimeoutSeconds),
		chunker:  c,
		batch:    chunker.NewBatchProcessor(c, handler),
	}
}

// Errors exposes the error handler for diagnostics.
func (idx *Indexer) Errors() *errs.Handler { return idx.handler }

// Index indexes the workspace rooted at root. Unchanged files are skipped
// by content hash; files that vanished since the last run are pruned.
func (idx *Indexer) Index(ctx context.Context, root string, onProgress ProgressFunc) (*Stats, error) {
	// A model change invalidates every stored vector.
	model := idx.embedder.ModelIdentifier()
	lastModel, err := idx.store.GetMeta(store.MetaEmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("get meta: %w", err)
	}
	if lastModel != "" && lastModel != model {
		fmt.Printf("Embedding model changed from %q to %q, re-indexing all files\n", lastModel, model)
		if err := idx.store.Clear(); err != nil {
			return nil, fmt.Errorf("clear index: %w", err)
		}
	}

	stats, err := runPipeline(ctx, root, idx.cfg, idx.store, idx.batch, idx.embedder, onProgress)
	if err != nil {
		return stats, err
	}

	if err := idx.store.SetMeta(store.MetaEmbeddingModel, model); err != nil {
		return stats, fmt.Errorf("set meta: %w", err)
	}
	return stats, nil
}

// Search embeds the query and returns blocks above the configured score
// floor.
func (idx *Indexer) Search(ctx context.Context, query string) ([]store.SearchResult, error) {
	vector, err := idx.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return idx.store.Search(vector, idx.cfg.SearchMinScore, idx.cfg.SearchMaxResults)
}

// ListPaths returns every indexed file path.
func (idx *Indexer) ListPaths() ([]string, error) {
	return idx.store.ListPaths()
}

// Clear removes everything from the index.
func (idx *Indexer) Clear() error {
	return idx.store.Clear()
}

// Close releases store and parser resources.
func (idx *Indexer) Close() error {
	idx.chunker.Close()
	return idx.store.Close()
}
