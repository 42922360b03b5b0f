package chunker

import (
	"fmt"
)

// CodeBlock is one retrievable unit of source text. Blocks are created fresh
// on every chunking call and never mutated after construction; persistence is
// entirely the vector store's concern.
type CodeBlock struct {
	FilePath    string
	Identifier  string // optional human name; empty for anonymous chunks
	Type        string // open vocabulary: "function", "class", "chunk", "text_chunk", ...
	StartLine   int    // 1-indexed, inclusive
	EndLine     int    // 1-indexed, inclusive
	Content     string
	FileHash    string // hash of the whole file, constant across its blocks
	SegmentHash string // stable per-block identity within the file
}

// SegmentHash derives the stable identity of a block from the file hash and
// its line range. Idempotent by construction: identical inputs always yield
// the same key.
func SegmentHash(fileHash string, startLine, endLine int) string {
	return fmt.Sprintf("%s:%d:%d", fileHash, startLine, endLine)
}

// FileInput is one file submitted to ChunkBatch.
type FileInput struct {
	Path string
	Text string
	Hash string
}
