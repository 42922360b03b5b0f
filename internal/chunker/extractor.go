package chunker

import (
	"fmt"
	"sort"
	"strings"

	"codescout/internal/config"
	"codescout/internal/errs"
)

// traversalMaxDepth bounds the node-type fallback walk. Definitions deeper
// than this are closures and local types not worth indexing on their own.
const traversalMaxDepth = 7

// identifierKinds are node kinds that can carry a definition's name across
// the supported grammars.
var identifierKinds = map[string]struct{}{
	"identifier":          {},
	"type_identifier":     {},
	"field_identifier":    {},
	"property_identifier": {},
	"constant":            {},
	"name":                {},
	"word":                {},
}

// limitCategory buckets a capture or node kind for per-file count limits.
func limitCategory(kind string) string {
	switch kind {
	case "function", "method", "constructor",
		"function_definition", "function_declaration", "function_item",
		"method_definition", "method_declaration", "arrow_function":
		return "function"
	case "class", "interface", "struct", "enum", "trait", "module", "type",
		"class_definition", "class_declaration", "struct_item", "enum_item",
		"trait_item", "interface_declaration", "type_declaration":
		return "class"
	case "impl", "impl_item":
		return "impl"
	default:
		return "other"
	}
}

// BlockExtractor turns execution results (or raw trees) into CodeBlocks,
// enforcing size and count limits so pathological files cannot flood the
// index.
type BlockExtractor struct {
	cfg     *config.Config
	handler *errs.Handler
}

// NewBlockExtractor creates an extractor with the given limits.
func NewBlockExtractor(cfg *config.Config, handler *errs.Handler) *BlockExtractor {
	return &BlockExtractor{cfg: cfg, handler: handler}
}

func (x *BlockExtractor) maxBlocks(lang string) int {
	if lang == "rust" && x.cfg.RustOptimizations.MaxBlocksPerFile > 0 {
		return x.cfg.RustOptimizations.MaxBlocksPerFile
	}
	return x.cfg.TreeSitterMaxBlocksPerFile
}

func (x *BlockExtractor) categoryLimit(cat string) int {
	switch cat {
	case "function":
		return x.cfg.TreeSitterMaxFunctions
	case "class":
		return x.cfg.TreeSitterMaxClasses
	case "impl":
		return x.cfg.TreeSitterMaxImplBlocks
	default:
		return 0 // unbounded within the per-file total
	}
}

// Extract builds blocks from normalized query captures. The "name" captures
// are not blocks themselves; each definition node is paired with the name
// capture whose byte range nests inside it. A single misbehaving node is
// skipped and reported, never the whole file.
func (x *BlockExtractor) Extract(res ExecResult, file FileInput, lang string) []CodeBlock {
	names := res.Captures["name"]

	type cand struct {
		node Node
		kind string
	}
	var cands []cand
	for kind, nodes := range res.Captures {
		if kind == "name" {
			continue
		}
		for _, n := range nodes {
			cands = append(cands, cand{node: n, kind: kind})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].node.StartByte() != cands[j].node.StartByte() {
			return cands[i].node.StartByte() < cands[j].node.StartByte()
		}
		return cands[i].node.EndByte() > cands[j].node.EndByte()
	})

	limit := x.maxBlocks(lang)
	counts := map[string]int{}
	blocks := make([]CodeBlock, 0, len(cands))
	for _, c := range cands {
		if len(blocks) >= limit {
			break
		}
		cat := limitCategory(c.kind)
		if max := x.categoryLimit(cat); max > 0 && counts[cat] >= max {
			continue
		}
		b, ok := x.buildBlock(c.node, c.kind, file, names)
		if !ok {
			continue
		}
		counts[cat]++
		blocks = append(blocks, b)
	}
	return blocks
}

// ExtractByNodeTypes walks the tree collecting nodes whose kind is in the
// language's definition set. Used when no capture query exists or it
// produced nothing. Duplicate spans from nested matches are dropped.
func (x *BlockExtractor) ExtractByNodeTypes(root Node, file FileInput, lang string) []CodeBlock {
	kinds, ok := nodeTypesFor(lang)
	if !ok || root == nil {
		return nil
	}
	kindSet := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		kindSet[k] = struct{}{}
	}

	limit := x.maxBlocks(lang)
	counts := map[string]int{}
	seen := map[string]struct{}{}
	var blocks []CodeBlock

	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		if n == nil || depth > traversalMaxDepth || len(blocks) >= limit {
			return
		}
		kind := n.Kind()
		if _, want := kindSet[kind]; want {
			cat := limitCategory(kind)
			if max := x.categoryLimit(cat); max == 0 || counts[cat] < max {
				if b, ok := x.buildBlock(n, kind, file, nil); ok {
					key := fmt.Sprintf("%d:%d:%s:%s", b.StartLine, b.EndLine, b.Type, b.Identifier)
					if _, dup := seen[key]; !dup {
						seen[key] = struct{}{}
						counts[cat]++
						blocks = append(blocks, b)
					}
				}
			}
		}
		for i := 0; i < n.ChildCount(); i++ {
			walk(n.Child(i), depth+1)
		}
	}
	walk(root, 0)

	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].StartLine < blocks[j].StartLine })
	return blocks
}

// buildBlock constructs one CodeBlock from a node, applying the minimum size
// filter. Panics from engine node accessors are contained per block.
func (x *BlockExtractor) buildBlock(n Node, kind string, file FileInput, names []Node) (block CodeBlock, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			x.handler.Reportf(errs.Context{
				Component: "block_extractor",
				Operation: "build_block",
				FilePath:  file.Path,
			}, errs.CategoryExtraction, "node access panic: %v", r)
		}
	}()

	start, end := n.StartByte(), n.EndByte()
	if start < 0 || end > len(file.Text) || start >= end {
		return CodeBlock{}, false
	}
	content := file.Text[start:end]
	if len(strings.TrimSpace(content)) < x.cfg.TreeSitterMinBlockChars {
		return CodeBlock{}, false
	}

	ident := ""
	if names != nil {
		ident = identifierFromNames(n, names, file.Text)
	}
	if ident == "" {
		ident = identifierFromChildren(n, file.Text)
	}

	startLine, endLine := n.StartLine(), n.EndLine()
	return CodeBlock{
		FilePath:    file.Path,
		Identifier:  ident,
		Type:        kind,
		StartLine:   startLine,
		EndLine:     endLine,
		Content:     content,
		FileHash:    file.Hash,
		SegmentHash: SegmentHash(file.Hash, startLine, endLine),
	}, true
}

// identifierFromNames picks the first name capture whose span nests inside
// the definition node.
func identifierFromNames(def Node, names []Node, text string) string {
	for _, nm := range names {
		if nm.StartByte() >= def.StartByte() && nm.EndByte() <= def.EndByte() {
			s, e := nm.StartByte(), nm.EndByte()
			if s >= 0 && e <= len(text) && s < e {
				return text[s:e]
			}
		}
	}
	return ""
}

// identifierFromChildren scans shallow children for an identifier-like node.
// Covers traversal extraction, where no name captures exist.
func identifierFromChildren(def Node, text string) string {
	var find func(n Node, depth int) string
	find = func(n Node, depth int) string {
		if n == nil || depth > 2 {
			return ""
		}
		for i := 0; i < n.ChildCount(); i++ {
			c := n.Child(i)
			if c == nil {
				continue
			}
			if _, ok := identifierKinds[c.Kind()]; ok {
				s, e := c.StartByte(), c.EndByte()
				if s >= 0 && e <= len(text) && s < e {
					return text[s:e]
				}
			}
			if got := find(c, depth+1); got != "" {
				return got
			}
		}
		return ""
	}
	return find(def, 0)
}
