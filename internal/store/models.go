package store

import (
	"github.com/cespare/xxhash/v2"

	"codescout/internal/chunker"
)

// Point is one stored vector with its block payload. The ID is derived from
// the block's segment hash, so re-indexing an unchanged file replaces points
// in place instead of accumulating duplicates.
type Point struct {
	ID     int64
	Block  chunker.CodeBlock
	Vector []float32
}

// PointID derives the stable point identifier for a segment hash.
func PointID(segmentHash string) int64 {
	return int64(xxhash.Sum64String(segmentHash))
}

// NewPoint pairs a block with its embedding.
func NewPoint(block chunker.CodeBlock, vector []float32) Point {
	return Point{ID: PointID(block.SegmentHash), Block: block, Vector: vector}
}

// FileRecord tracks an indexed source file for change detection.
type FileRecord struct {
	Path      string
	Hash      string
	Language  string
	SizeBytes int64
}

// SearchResult is a block with its cosine similarity to the query vector.
type SearchResult struct {
	Block chunker.CodeBlock
	Score float64
}
