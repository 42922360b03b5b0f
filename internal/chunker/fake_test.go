package chunker

import (
	"context"
	"fmt"
	"strings"
)

// Fake engine types used across the package tests. Each fake query type
// implements a different subset of the execution capability interfaces, so
// tests can pin which strategy the executor settles on.

type fakeNode struct {
	kind      string
	startByte int
	endByte   int
	src       string
	children  []*fakeNode
}

func (n *fakeNode) Kind() string { return n.kind }
func (n *fakeNode) StartLine() int {
	return strings.Count(n.src[:n.startByte], "\n") + 1
}
func (n *fakeNode) EndLine() int {
	if n.endByte == 0 {
		return 1
	}
	return strings.Count(n.src[:n.endByte-1], "\n") + 1
}
func (n *fakeNode) StartByte() int  { return n.startByte }
func (n *fakeNode) EndByte() int    { return n.endByte }
func (n *fakeNode) ChildCount() int { return len(n.children) }
func (n *fakeNode) Child(i int) Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// span makes a node covering the first occurrence of sub within src.
func span(src, sub, kind string) *fakeNode {
	i := strings.Index(src, sub)
	if i < 0 {
		panic(fmt.Sprintf("span: %q not in source", sub))
	}
	return &fakeNode{kind: kind, startByte: i, endByte: i + len(sub), src: src}
}

type fakeTree struct {
	root   Node
	closed bool
}

func (t *fakeTree) Root() Node { return t.root }
func (t *fakeTree) Close()     { t.closed = true }

type fakeParser struct {
	tree Tree
	err  error
}

func (p *fakeParser) Parse(_ context.Context, _ []byte) (Tree, error) { return p.tree, p.err }
func (p *fakeParser) Close()                                          {}

// fakeEngine routes parser and query construction through test hooks.
type fakeEngine struct {
	supports  map[string]bool
	newParser func(lang string) (Parser, error)
	compile   func(lang, text string) (Query, error)
}

func (e *fakeEngine) Supports(lang string) bool { return e.supports[lang] }

func (e *fakeEngine) NewParser(lang string) (Parser, error) {
	if e.newParser == nil {
		return nil, fmt.Errorf("no parser for %s", lang)
	}
	return e.newParser(lang)
}

func (e *fakeEngine) Compile(lang, text string) (Query, error) {
	if e.compile == nil {
		return nil, fmt.Errorf("no query for %s", lang)
	}
	return e.compile(lang, text)
}

// cursorQuery exposes only the cursor shape.
type cursorQuery struct {
	matches []Match
	execErr error
	closed  bool
}

func (q *cursorQuery) Close() { q.closed = true }
func (q *cursorQuery) NewCursor() Cursor {
	return &fakeCursor{matches: q.matches, execErr: q.execErr}
}

type fakeCursor struct {
	matches []Match
	execErr error
	mi, ci  int
	execked bool
}

func (c *fakeCursor) Exec(_ Node) error {
	c.execked = true
	return c.execErr
}

func (c *fakeCursor) NextMatch() (Match, bool) {
	if !c.execked || c.mi >= len(c.matches) {
		return Match{}, false
	}
	m := c.matches[c.mi]
	c.mi++
	return m, true
}

func (c *fakeCursor) NextCapture() (Capture, bool) {
	for c.mi < len(c.matches) {
		m := c.matches[c.mi]
		if c.ci < len(m.Captures) {
			cap := m.Captures[c.ci]
			c.ci++
			return cap, true
		}
		c.mi++
		c.ci = 0
	}
	return Capture{}, false
}

func (c *fakeCursor) Close() {}

// listQuery exposes only the direct capture-list shape.
type listQuery struct {
	captures []Capture
	err      error
}

func (q *listQuery) Close() {}
func (q *listQuery) Captures(_ Node) ([]Capture, error) {
	return q.captures, q.err
}

// mapQuery exposes only the capture-map shape.
type mapQuery struct {
	caps map[string][]Node
	err  error
}

func (q *mapQuery) Close() {}
func (q *mapQuery) CaptureMap(_ Node) (map[string][]Node, error) {
	return q.caps, q.err
}

// matchesQuery exposes only the match-list shape.
type matchesQuery struct {
	matches []Match
	err     error
}

func (q *matchesQuery) Close() {}
func (q *matchesQuery) Matches(_ Node) ([]Match, error) {
	return q.matches, q.err
}

// panicQuery panics on execution through every shape it claims.
type panicQuery struct{}

func (q *panicQuery) Close()            {}
func (q *panicQuery) NewCursor() Cursor { panic("cursor blew up") }

// bareQuery implements no execution shape at all.
type bareQuery struct{}

func (q *bareQuery) Close() {}
