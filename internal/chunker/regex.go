package chunker

import (
	"regexp"
	"strings"

	"codescout/internal/config"
)

// signaturePatterns match lines that open a definition. The regex strategy
// splits a file at these boundaries when structural parsing fails; languages
// without an entry skip straight to the line strategy.
var signaturePatterns = map[string]*regexp.Regexp{
	"python":     regexp.MustCompile(`^\s*(?:async\s+)?(?:def|class)\s+(\w+)`),
	"go":         regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?(\w+)|^type\s+(\w+)\s+(?:struct|interface)`),
	"javascript": regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?(?:function\*?|class)\s+(\w+)|^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?(?:function|\()`),
	"typescript": regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?(?:async\s+)?(?:function\*?|class|interface|enum)\s+(\w+)|^\s*(?:export\s+)?(?:const|let)\s+(\w+)\s*=\s*(?:async\s*)?(?:function|\()`),
	"rust":       regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?(?:fn|struct|enum|trait|mod)\s+(\w+)|^\s*impl\b`),
	"java":       regexp.MustCompile(`^\s*(?:public|private|protected)?\s*(?:static\s+)?(?:final\s+)?(?:class|interface|enum)\s+(\w+)|^\s*(?:public|private|protected)\s+[\w<>\[\]]+\s+(\w+)\s*\(`),
	"csharp":     regexp.MustCompile(`^\s*(?:public|private|protected|internal)?\s*(?:static\s+)?(?:partial\s+)?(?:class|interface|struct|enum)\s+(\w+)`),
	"ruby":       regexp.MustCompile(`^\s*(?:def|class|module)\s+([\w.?!]+)`),
	"php":        regexp.MustCompile(`^\s*(?:abstract\s+|final\s+)?(?:public\s+|private\s+|protected\s+|static\s+)*(?:function|class|interface|trait)\s+(\w+)`),
	"c":          regexp.MustCompile(`^\w[\w\s\*]*\s\*?(\w+)\s*\([^;]*$|^\s*(?:struct|enum|union)\s+(\w+)`),
	"cpp":        regexp.MustCompile(`^[\w:<>~]+[\w\s\*&:<>,~]*\s[\*&]?([\w:~]+)\s*\([^;]*$|^\s*(?:class|struct|enum)\s+(\w+)`),
	"kotlin":     regexp.MustCompile(`^\s*(?:override\s+|open\s+|private\s+|public\s+|internal\s+)*(?:fun|class|interface|object)\s+(\w+)`),
	"swift":      regexp.MustCompile(`^\s*(?:public\s+|private\s+|internal\s+|open\s+)*(?:func|class|struct|enum|protocol|extension)\s+(\w+)`),
	"scala":      regexp.MustCompile(`^\s*(?:def|class|object|trait)\s+(\w+)`),
	"elixir":     regexp.MustCompile(`^\s*(?:def|defp|defmodule|defmacro)\s+([\w.?!]+)`),
	"lua":        regexp.MustCompile(`^\s*(?:local\s+)?function\s+([\w.:]+)`),
	"bash":       regexp.MustCompile(`^\s*(?:function\s+)?(\w+)\s*\(\)\s*\{?`),
}

// RegexStrategy splits files at definition-signature boundaries. Each block
// runs from one signature to just before the next; oversized spans are
// re-split with the line strategy so the size ceiling still holds.
type RegexStrategy struct {
	cfg   *config.Config
	lines *LineStrategy
}

// NewRegexStrategy creates the strategy.
func NewRegexStrategy(cfg *config.Config, lines *LineStrategy) *RegexStrategy {
	return &RegexStrategy{cfg: cfg, lines: lines}
}

// maxBlocks mirrors the structural per-file cap, including the tighter Rust
// bound, so the fallback cannot flood the index where structural chunking
// could not.
func (s *RegexStrategy) maxBlocks(lang string) int {
	if lang == "rust" && s.cfg.RustOptimizations.MaxBlocksPerFile > 0 {
		return s.cfg.RustOptimizations.MaxBlocksPerFile
	}
	return s.cfg.TreeSitterMaxBlocksPerFile
}

// Supports reports whether a signature pattern exists for the language.
func (s *RegexStrategy) Supports(lang string) bool {
	_, ok := signaturePatterns[lang]
	return ok
}

// Chunk splits at signature boundaries. Returns nil when the language has
// no pattern or no signature matched anywhere, so the caller can fall back.
func (s *RegexStrategy) Chunk(file FileInput, lang string) []CodeBlock {
	pat, ok := signaturePatterns[lang]
	if !ok {
		return nil
	}

	lines := strings.Split(file.Text, "\n")
	type boundary struct {
		line int // 1-indexed
		name string
	}
	var bounds []boundary
	for i, line := range lines {
		if m := pat.FindStringSubmatch(line); m != nil {
			name := ""
			for _, g := range m[1:] {
				if g != "" {
					name = g
					break
				}
			}
			bounds = append(bounds, boundary{line: i + 1, name: name})
		}
	}
	if len(bounds) == 0 {
		return nil
	}

	maxLen := int(float64(s.cfg.MaxBlockChars) * sizeTolerance)
	limit := s.maxBlocks(lang)
	var blocks []CodeBlock
	appendSpan := func(name string, start, end int) {
		if len(blocks) >= limit {
			return
		}
		content := strings.Join(lines[start-1:end], "\n")
		if len(strings.TrimSpace(content)) < s.cfg.MinBlockChars {
			return
		}
		if len(content) > maxLen {
			blocks = append(blocks, s.lines.chunkSpan(file, start, lines[start-1:end])...)
			return
		}
		blocks = append(blocks, CodeBlock{
			FilePath:    file.Path,
			Identifier:  name,
			Type:        "definition",
			StartLine:   start,
			EndLine:     end,
			Content:     content,
			FileHash:    file.Hash,
			SegmentHash: SegmentHash(file.Hash, start, end),
		})
	}

	if bounds[0].line > 1 {
		appendSpan("preamble", 1, bounds[0].line-1)
	}
	for i, b := range bounds {
		end := len(lines)
		if i+1 < len(bounds) {
			end = bounds[i+1].line - 1
		}
		appendSpan(b.name, b.line, end)
	}
	// An oversized span re-split into line pieces can overshoot the cap.
	if len(blocks) > limit {
		blocks = blocks[:limit]
	}
	return blocks
}
