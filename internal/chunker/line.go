package chunker

import (
	"fmt"
	"strings"

	"codescout/internal/config"
)

// sizeTolerance lets a block exceed the configured ceiling slightly rather
// than leave a tiny remainder block behind.
const sizeTolerance = 1.15

// LineStrategy is the last resort: accumulate whole lines into fixed-size
// blocks. It succeeds on any text, which is what makes the fallback chain
// total.
type LineStrategy struct {
	cfg *config.Config
}

// NewLineStrategy creates the strategy with the configured size bounds.
func NewLineStrategy(cfg *config.Config) *LineStrategy {
	return &LineStrategy{cfg: cfg}
}

// Chunk splits the file into line-accumulated blocks.
func (s *LineStrategy) Chunk(file FileInput) []CodeBlock {
	return s.chunkSpan(file, 1, strings.Split(file.Text, "\n"))
}

// chunkSpan chunks a run of lines beginning at startLine (1-indexed). The
// regex strategy reuses it to split oversized signature-to-signature spans.
func (s *LineStrategy) chunkSpan(file FileInput, startLine int, lines []string) []CodeBlock {
	limit := float64(s.cfg.MaxBlockChars) * sizeTolerance

	var blocks []CodeBlock
	var buf strings.Builder
	blockStart := startLine
	lineNo := startLine

	emit := func(endLine int) {
		content := buf.String()
		buf.Reset()
		if len(strings.TrimSpace(content)) < s.cfg.MinBlockChars {
			return
		}
		blocks = append(blocks, CodeBlock{
			FilePath:    file.Path,
			Identifier:  fmt.Sprintf("segment_%d", len(blocks)+1),
			Type:        "segment",
			StartLine:   blockStart,
			EndLine:     endLine,
			Content:     content,
			FileHash:    file.Hash,
			SegmentHash: SegmentHash(file.Hash, blockStart, endLine),
		})
	}

	for _, line := range lines {
		add := len(line)
		if buf.Len() > 0 {
			add++ // joining newline
		}
		if buf.Len() > 0 && float64(buf.Len()+add) > limit {
			emit(lineNo - 1)
			blockStart = lineNo
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
		lineNo++
	}
	emit(lineNo - 1)
	return blocks
}
