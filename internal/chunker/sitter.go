package chunker

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// SitterEngine adapts the go-tree-sitter bindings to the Engine interface.
// Its queries expose the cursor and match execution shapes.
type SitterEngine struct{}

// NewSitterEngine returns the production parsing engine.
func NewSitterEngine() *SitterEngine {
	return &SitterEngine{}
}

func (e *SitterEngine) Supports(lang string) bool {
	return grammarFor(lang) != nil
}

func (e *SitterEngine) NewParser(lang string) (Parser, error) {
	grammar := grammarFor(lang)
	if grammar == nil {
		return nil, fmt.Errorf("no grammar for language %q", lang)
	}
	p := sitter.NewParser()
	p.SetLanguage(grammar)
	return &sitterParser{parser: p}, nil
}

func (e *SitterEngine) Compile(lang, queryText string) (Query, error) {
	grammar := grammarFor(lang)
	if grammar == nil {
		return nil, fmt.Errorf("no grammar for language %q", lang)
	}
	q, err := sitter.NewQuery([]byte(queryText), grammar)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", lang, err)
	}
	return &sitterQuery{query: q}, nil
}

type sitterParser struct {
	parser *sitter.Parser
}

func (p *sitterParser) Parse(ctx context.Context, src []byte) (Tree, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	return &sitterTree{tree: tree}, nil
}

func (p *sitterParser) Close() {
	p.parser.Close()
}

type sitterTree struct {
	tree *sitter.Tree
}

func (t *sitterTree) Root() Node {
	return sitterNode{node: t.tree.RootNode()}
}

func (t *sitterTree) Close() {
	t.tree.Close()
}

type sitterNode struct {
	node *sitter.Node
}

func (n sitterNode) Kind() string   { return n.node.Type() }
func (n sitterNode) StartLine() int { return int(n.node.StartPoint().Row) + 1 }
func (n sitterNode) EndLine() int   { return int(n.node.EndPoint().Row) + 1 }
func (n sitterNode) StartByte() int { return int(n.node.StartByte()) }
func (n sitterNode) EndByte() int   { return int(n.node.EndByte()) }
func (n sitterNode) ChildCount() int {
	return int(n.node.ChildCount())
}
func (n sitterNode) Child(i int) Node {
	c := n.node.Child(i)
	if c == nil {
		return nil
	}
	return sitterNode{node: c}
}

type sitterQuery struct {
	query *sitter.Query
}

func (q *sitterQuery) Close() { q.query.Close() }

// NewCursor implements the cursor execution shape.
func (q *sitterQuery) NewCursor() Cursor {
	return &sitterCursor{query: q.query, cursor: sitter.NewQueryCursor()}
}

// Matches implements the match-list execution shape.
func (q *sitterQuery) Matches(root Node) ([]Match, error) {
	sn, ok := root.(sitterNode)
	if !ok {
		return nil, fmt.Errorf("foreign node type %T", root)
	}
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q.query, sn.node)

	var matches []Match
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var caps []Capture
		for _, c := range m.Captures {
			caps = append(caps, Capture{
				Node: sitterNode{node: c.Node},
				Name: q.query.CaptureNameForId(c.Index),
			})
		}
		matches = append(matches, Match{Captures: caps})
	}
	return matches, nil
}

type sitterCursor struct {
	query  *sitter.Query
	cursor *sitter.QueryCursor
}

func (c *sitterCursor) Exec(root Node) error {
	sn, ok := root.(sitterNode)
	if !ok {
		return fmt.Errorf("foreign node type %T", root)
	}
	c.cursor.Exec(c.query, sn.node)
	return nil
}

func (c *sitterCursor) NextMatch() (Match, bool) {
	m, ok := c.cursor.NextMatch()
	if !ok {
		return Match{}, false
	}
	var caps []Capture
	for _, cap := range m.Captures {
		caps = append(caps, Capture{
			Node: sitterNode{node: cap.Node},
			Name: c.query.CaptureNameForId(cap.Index),
		})
	}
	return Match{Captures: caps}, true
}

func (c *sitterCursor) NextCapture() (Capture, bool) {
	m, idx, ok := c.cursor.NextCapture()
	if !ok {
		return Capture{}, false
	}
	cap := m.Captures[idx]
	return Capture{
		Node: sitterNode{node: cap.Node},
		Name: c.query.CaptureNameForId(cap.Index),
	}, true
}

func (c *sitterCursor) Close() {
	c.cursor.Close()
}
