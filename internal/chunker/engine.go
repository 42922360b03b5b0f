package chunker

import "context"

// Engine is the structural parsing capability: parse text into a tree, and
// compile capture queries against a language grammar. Production uses the
// tree-sitter adapter in sitter.go; tests inject fakes through the same
// interface.
type Engine interface {
	// Supports reports whether a grammar is available for the language key.
	Supports(lang string) bool
	// NewParser constructs a parser bound to the language grammar.
	NewParser(lang string) (Parser, error)
	// Compile compiles capture-query text against the language grammar.
	Compile(lang, queryText string) (Query, error)
}

// Parser parses source bytes into a Tree. Parsers are cached by the resource
// manager and shared across files of one language.
type Parser interface {
	Parse(ctx context.Context, src []byte) (Tree, error)
	Close()
}

// Tree is a parsed syntax tree. Close releases engine-side memory.
type Tree interface {
	Root() Node
	Close()
}

// Node is one span of a parse tree.
type Node interface {
	Kind() string
	StartLine() int // 1-indexed
	EndLine() int   // 1-indexed, inclusive
	StartByte() int
	EndByte() int
	ChildCount() int
	Child(i int) Node
}

// Query is a compiled capture query. Engine bindings differ in which
// execution surface a query exposes; concrete types implement one or more of
// the capability interfaces below, and the executor probes them with type
// assertions in a fixed preference order.
type Query interface {
	Close()
}

// Capture is a named node span produced by running a query against a tree.
type Capture struct {
	Node Node
	Name string
}

// Match bundles the captures of a single pattern match.
type Match struct {
	Captures []Capture
}

// Cursor is the stateful execution surface some bindings expose instead of
// (or in addition to) direct query methods.
type Cursor interface {
	Exec(root Node) error
	NextMatch() (Match, bool)
	NextCapture() (Capture, bool)
	Close()
}

// Capability shapes, probed by the executor.
type cursorFactory interface {
	NewCursor() Cursor
}

type captureLister interface {
	Captures(root Node) ([]Capture, error)
}

type captureMapper interface {
	CaptureMap(root Node) (map[string][]Node, error)
}

type matchLister interface {
	Matches(root Node) ([]Match, error)
}
