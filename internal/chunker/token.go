package chunker

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"codescout/internal/config"
)

// TokenStrategy splits text into overlapping windows of whitespace-delimited
// tokens. Tokens are tracked as byte spans into the original text, so each
// block's content is verbatim source and its line numbers are exact.
type TokenStrategy struct {
	cfg *config.Config
}

// NewTokenStrategy creates the strategy with the configured window and
// overlap.
func NewTokenStrategy(cfg *config.Config) *TokenStrategy {
	return &TokenStrategy{cfg: cfg}
}

type tokenSpan struct {
	start, end int // byte offsets
}

// Chunk splits the file into token windows.
func (s *TokenStrategy) Chunk(file FileInput) []CodeBlock {
	spans := tokenize(file.Text)
	if len(spans) == 0 {
		return nil
	}

	size := s.cfg.TokenChunkSize
	overlap := s.cfg.TokenChunkOverlap
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	newlines := newlineOffsets(file.Text)
	var blocks []CodeBlock
	for i := 0; i < len(spans); i += step {
		j := i + size
		if j > len(spans) {
			j = len(spans)
		}
		start, end := spans[i].start, spans[j-1].end
		content := file.Text[start:end]
		if len(strings.TrimSpace(content)) >= s.cfg.MinBlockChars {
			startLine := lineAt(newlines, start)
			endLine := lineAt(newlines, end-1)
			// Overlapping windows can share a line range, so the window
			// ordinal is folded into the hash to keep identities distinct.
			n := len(blocks) + 1
			blocks = append(blocks, CodeBlock{
				FilePath:    file.Path,
				Identifier:  fmt.Sprintf("window_%d", n),
				Type:        "token_window",
				StartLine:   startLine,
				EndLine:     endLine,
				Content:     content,
				FileHash:    file.Hash,
				SegmentHash: fmt.Sprintf("%s:w%d", SegmentHash(file.Hash, startLine, endLine), n),
			})
		}
		if j == len(spans) {
			break
		}
	}
	return blocks
}

func tokenize(text string) []tokenSpan {
	var spans []tokenSpan
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, tokenSpan{start: start, end: i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, tokenSpan{start: start, end: len(text)})
	}
	return spans
}

func newlineOffsets(text string) []int {
	var offs []int
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offs = append(offs, i)
		}
	}
	return offs
}

// lineAt returns the 1-indexed line containing byte offset.
func lineAt(newlines []int, offset int) int {
	return sort.SearchInts(newlines, offset) + 1
}
