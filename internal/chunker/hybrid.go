package chunker

import (
	"regexp"
	"strings"

	"codescout/internal/config"
)

// Hybrid parsers cover file kinds where a syntax tree adds nothing: prose
// gets paragraph blocks, config files get section blocks. They sit between
// structural parsing and the regex fallback in the chain.

var textLanguages = map[string]struct{}{
	"markdown": {},
	"text":     {},
	"rst":      {},
	"asciidoc": {},
}

var configLanguages = map[string]struct{}{
	"yaml":       {},
	"toml":       {},
	"ini":        {},
	"properties": {},
	"dotenv":     {},
}

// PlainTextParser splits prose into paragraph blocks, merging adjacent
// paragraphs until the size ceiling so tiny paragraphs do not become noise
// vectors.
type PlainTextParser struct {
	cfg *config.Config
}

// Parse chunks prose into paragraph blocks.
func (p *PlainTextParser) Parse(file FileInput) []CodeBlock {
	lines := strings.Split(file.Text, "\n")

	type para struct {
		start, end int // 1-indexed line span
		text       string
	}
	var paras []para
	cur := para{start: -1}
	flush := func(endLine int) {
		if cur.start > 0 && strings.TrimSpace(cur.text) != "" {
			cur.end = endLine
			paras = append(paras, cur)
		}
		cur = para{start: -1}
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush(i) // previous line, 1-indexed
			continue
		}
		if cur.start < 0 {
			cur.start = i + 1
			cur.text = line
		} else {
			cur.text += "\n" + line
		}
	}
	flush(len(lines))

	var blocks []CodeBlock
	var acc para
	accSet := false
	emit := func() {
		if !accSet {
			return
		}
		if len(acc.text) >= p.cfg.MinBlockChars {
			blocks = append(blocks, CodeBlock{
				FilePath:    file.Path,
				Identifier:  firstWords(acc.text, 6),
				Type:        "text_block",
				StartLine:   acc.start,
				EndLine:     acc.end,
				Content:     acc.text,
				FileHash:    file.Hash,
				SegmentHash: SegmentHash(file.Hash, acc.start, acc.end),
			})
		}
		accSet = false
	}
	for _, pg := range paras {
		if accSet && len(acc.text)+len(pg.text)+2 > p.cfg.MaxBlockChars {
			emit()
		}
		if !accSet {
			acc = pg
			accSet = true
		} else {
			acc.text += "\n\n" + pg.text
			acc.end = pg.end
		}
	}
	emit()
	return blocks
}

// firstWords derives an identifier from the opening words of a block.
func firstWords(text string, n int) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimLeft(line, "#*-= \t")
	fields := strings.Fields(line)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

var (
	iniSectionRe  = regexp.MustCompile(`^\s*\[([^\]]+)\]`)
	yamlTopKeyRe  = regexp.MustCompile(`^([A-Za-z0-9_."'-]+)\s*:`)
	commentLineRe = regexp.MustCompile(`^\s*[#;]`)
)

// ConfigFileParser splits configuration files into section blocks: bracketed
// sections for INI and TOML, top-level keys for YAML. Content before the
// first section becomes a preamble block.
type ConfigFileParser struct {
	cfg *config.Config
}

// Parse chunks a config file into section blocks.
func (p *ConfigFileParser) Parse(file FileInput, lang string) []CodeBlock {
	lines := strings.Split(file.Text, "\n")

	isHeader := func(line string) (string, bool) {
		if commentLineRe.MatchString(line) {
			return "", false
		}
		switch lang {
		case "yaml":
			if m := yamlTopKeyRe.FindStringSubmatch(line); m != nil {
				return strings.Trim(m[1], `"'`), true
			}
		default:
			if m := iniSectionRe.FindStringSubmatch(line); m != nil {
				return m[1], true
			}
		}
		return "", false
	}

	type section struct {
		name       string
		start, end int
	}
	var sections []section
	cur := section{name: "preamble", start: 1}
	for i, line := range lines {
		if name, ok := isHeader(line); ok && i+1 > cur.start {
			cur.end = i
			sections = append(sections, cur)
			cur = section{name: name, start: i + 1}
		} else if ok {
			cur.name = name
		}
	}
	cur.end = len(lines)
	sections = append(sections, cur)

	var blocks []CodeBlock
	for _, s := range sections {
		if s.end < s.start {
			continue
		}
		content := strings.Join(lines[s.start-1:s.end], "\n")
		if len(strings.TrimSpace(content)) < p.cfg.MinBlockChars {
			continue
		}
		blocks = append(blocks, CodeBlock{
			FilePath:    file.Path,
			Identifier:  s.name,
			Type:        "config_section",
			StartLine:   s.start,
			EndLine:     s.end,
			Content:     content,
			FileHash:    file.Hash,
			SegmentHash: SegmentHash(file.Hash, s.start, s.end),
		})
	}
	return blocks
}

// HybridParserManager routes a file to the text or config parser based on
// its detected language. The boolean result distinguishes "no hybrid parser
// applies" from "applied but produced nothing".
type HybridParserManager struct {
	text   *PlainTextParser
	config *ConfigFileParser
}

// NewHybridParserManager creates the manager with shared size limits.
func NewHybridParserManager(cfg *config.Config) *HybridParserManager {
	return &HybridParserManager{
		text:   &PlainTextParser{cfg: cfg},
		config: &ConfigFileParser{cfg: cfg},
	}
}

// Parse applies the hybrid parser for lang, if one exists.
func (m *HybridParserManager) Parse(file FileInput, lang string) ([]CodeBlock, bool) {
	if _, ok := textLanguages[lang]; ok {
		return m.text.Parse(file), true
	}
	if _, ok := configLanguages[lang]; ok {
		return m.config.Parse(file, lang), true
	}
	return nil, false
}
