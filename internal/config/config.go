package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for codescout. Loaded once at startup,
// validated once, and treated as immutable afterwards.
type Config struct {
	// Endpoints and workspace.
	OllamaBaseURL string `yaml:"ollama_base_url"`
	OllamaModel   string `yaml:"ollama_model"`
	WorkspacePath string `yaml:"workspace_path"`
	DBPath        string `yaml:"db_path"`

	// Embedding.
	EmbeddingLength     int `yaml:"embedding_length"`
	EmbedTimeoutSeconds int `yaml:"embed_timeout_seconds"`
	EmbedBatchSize      int `yaml:"embed_batch_size"`

	// Search.
	SearchMinScore   float64 `yaml:"search_min_score"`
	SearchMaxResults int     `yaml:"search_max_results"`

	// Scanning.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`

	// Chunking strategy: "lines", "tokens", or "treesitter".
	ChunkingStrategy string `yaml:"chunking_strategy"`

	MinBlockChars int `yaml:"min_block_chars"`
	MaxBlockChars int `yaml:"max_block_chars"`

	TokenChunkSize    int `yaml:"token_chunk_size"`
	TokenChunkOverlap int `yaml:"token_chunk_overlap"`

	// Tree-sitter block extraction.
	TreeSitterMaxFileSizeBytes  int      `yaml:"tree_sitter_max_file_size_bytes"`
	TreeSitterMaxBlocksPerFile  int      `yaml:"tree_sitter_max_blocks_per_file"`
	TreeSitterMinBlockChars     int      `yaml:"tree_sitter_min_block_chars"`
	TreeSitterMaxFunctions      int      `yaml:"tree_sitter_max_functions_per_file"`
	TreeSitterMaxClasses        int      `yaml:"tree_sitter_max_classes_per_file"`
	TreeSitterMaxImplBlocks     int      `yaml:"tree_sitter_max_impl_blocks_per_file"`
	TreeSitterSkipTestFiles     bool     `yaml:"tree_sitter_skip_test_files"`
	TreeSitterSkipExamples      bool     `yaml:"tree_sitter_skip_examples"`
	TreeSitterSkipPatterns      []string `yaml:"tree_sitter_skip_patterns"`
	TreeSitterParserCacheSize   int      `yaml:"tree_sitter_parser_cache_size"`
	TreeSitterParserCacheTTLSec int      `yaml:"tree_sitter_parser_cache_ttl"`
	TreeSitterQueryCacheSize    int      `yaml:"tree_sitter_query_cache_size"`
	TreeSitterQueryCacheTTLSec  int      `yaml:"tree_sitter_query_cache_ttl"`

	// Rust files are expensive to parse; these keep worst cases bounded.
	RustOptimizations RustOptimizations `yaml:"rust_specific_optimizations"`

	// Batch processing.
	ParallelProcessing bool `yaml:"parallel_processing"`
	MaxParallelWorkers int  `yaml:"max_parallel_workers"`
	GroupTimeoutSec    int  `yaml:"group_timeout_seconds"`
	MemoryLimitMB      int  `yaml:"memory_limit_mb"`

	Debug bool `yaml:"debug"`
}

// RustOptimizations bounds parse cost on Rust-heavy workspaces.
type RustOptimizations struct {
	SkipLargeFiles     bool     `yaml:"skip_large_rust_files"`
	MaxFileSizeKB      int      `yaml:"max_rust_file_size_kb"`
	SkipGeneratedFiles bool     `yaml:"skip_generated_rust_files"`
	TargetDirectories  []string `yaml:"rust_target_directories"`
	MaxBlocksPerFile   int      `yaml:"max_blocks_per_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OllamaBaseURL:       "http://localhost:11434",
		OllamaModel:         "nomic-embed-text",
		WorkspacePath:       ".",
		EmbeddingLength:     768,
		EmbedTimeoutSeconds: 60,
		EmbedBatchSize:      32,
		SearchMinScore:      0.4,
		SearchMaxResults:    50,
		MaxFileSizeBytes:    1 << 20,
		ChunkingStrategy:    "treesitter",
		MinBlockChars:       50,
		MaxBlockChars:       1000,
		TokenChunkSize:      1000,
		TokenChunkOverlap:   200,

		TreeSitterMaxFileSizeBytes: 512 * 1024,
		TreeSitterMaxBlocksPerFile: 100,
		TreeSitterMinBlockChars:    50,
		TreeSitterMaxFunctions:     50,
		TreeSitterMaxClasses:       20,
		TreeSitterMaxImplBlocks:    30,
		TreeSitterSkipTestFiles:    true,
		TreeSitterSkipExamples:     true,
		TreeSitterSkipPatterns: []string{
			"*.min.js", "*.bundle.js", "*.min.css",
			"package-lock.json", "yarn.lock", "*.lock",
			"target/**", "build/**", "dist/**",
			"__pycache__/**", "node_modules/**",
			"*.log", "*.tmp", "*.temp",
		},
		TreeSitterParserCacheSize:   32,
		TreeSitterParserCacheTTLSec: 1800,
		TreeSitterQueryCacheSize:    64,
		TreeSitterQueryCacheTTLSec:  300,

		RustOptimizations: RustOptimizations{
			SkipLargeFiles:     false,
			MaxFileSizeKB:      300,
			SkipGeneratedFiles: true,
			TargetDirectories:  []string{"target/", "build/", "dist/"},
			MaxBlocksPerFile:   30,
		},

		ParallelProcessing: true,
		MaxParallelWorkers: defaultWorkers(),
		GroupTimeoutSec:    300,
		MemoryLimitMB:      1024,
	}
}

func defaultWorkers() int {
	n := 2 * runtime.NumCPU()
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Load reads configuration from path, layered over the defaults and then the
// environment. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.OllamaBaseURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.OllamaModel = v
	}
	if v := os.Getenv("CODESCOUT_WORKSPACE"); v != "" {
		c.WorkspacePath = v
	}
	if v := os.Getenv("CODESCOUT_EMBED_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.EmbedTimeoutSeconds = n
		}
	}
	if v := os.Getenv("CODESCOUT_DEBUG"); v != "" {
		c.Debug = v == "1" || v == "true"
	}
}

// Validate is the only fatal error path for configuration. After it passes,
// no configuration value may abort a chunking run.
func (c *Config) Validate() error {
	switch c.ChunkingStrategy {
	case "lines", "tokens", "treesitter":
	default:
		return fmt.Errorf("invalid chunking_strategy %q (want lines, tokens, or treesitter)", c.ChunkingStrategy)
	}
	if c.MinBlockChars < 0 {
		return fmt.Errorf("min_block_chars must be >= 0, got %d", c.MinBlockChars)
	}
	if c.MaxBlockChars <= 0 {
		return fmt.Errorf("max_block_chars must be > 0, got %d", c.MaxBlockChars)
	}
	if c.MinBlockChars > c.MaxBlockChars {
		return fmt.Errorf("min_block_chars (%d) exceeds max_block_chars (%d)", c.MinBlockChars, c.MaxBlockChars)
	}
	if c.TreeSitterMaxBlocksPerFile <= 0 {
		return fmt.Errorf("tree_sitter_max_blocks_per_file must be > 0, got %d", c.TreeSitterMaxBlocksPerFile)
	}
	if c.TreeSitterMaxFileSizeBytes <= 0 {
		return fmt.Errorf("tree_sitter_max_file_size_bytes must be > 0, got %d", c.TreeSitterMaxFileSizeBytes)
	}
	if c.TokenChunkOverlap >= c.TokenChunkSize {
		return fmt.Errorf("token_chunk_overlap (%d) must be smaller than token_chunk_size (%d)", c.TokenChunkOverlap, c.TokenChunkSize)
	}
	if c.MaxParallelWorkers < 1 {
		return fmt.Errorf("max_parallel_workers must be >= 1, got %d", c.MaxParallelWorkers)
	}
	if c.EmbeddingLength <= 0 {
		return fmt.Errorf("embedding_length must be > 0, got %d", c.EmbeddingLength)
	}
	return nil
}

// ResolveDBPath returns the index database path, defaulting to
// <workspace>/.codescout/index.db.
func (c *Config) ResolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.WorkspacePath, ".codescout", "index.db")
}
