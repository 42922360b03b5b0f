package chunker

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"codescout/internal/errs"
)

// ExecResult is the normalized output of a query execution: capture name to
// the nodes captured under it, regardless of which API shape produced them.
type ExecResult struct {
	Captures map[string][]Node
	Strategy string
}

// Empty reports whether the execution produced no captures. Only the
// whitespace short-circuit yields an empty result without an error; a query
// whose every shape comes back empty is an execution failure.
func (r ExecResult) Empty() bool {
	return len(r.Captures) == 0
}

type runStrategy struct {
	name string
	run  func(q Query, root Node) (map[string][]Node, error)
}

// QueryExecutor runs compiled queries against parse trees. Engine bindings
// expose incompatible execution surfaces, so execution walks a fixed-order
// strategy table, probing each shape with a type assertion and settling on
// the first that completes. Per-strategy failures are collected; only when
// every shape fails does the executor report one aggregated error.
type QueryExecutor struct {
	handler *errs.Handler

	mu    sync.Mutex
	used  map[string]int
	total int
}

// NewQueryExecutor creates an executor reporting into handler.
func NewQueryExecutor(handler *errs.Handler) *QueryExecutor {
	return &QueryExecutor{handler: handler, used: make(map[string]int)}
}

var strategies = []runStrategy{
	{"cursor_matches", runCursorMatches},
	{"cursor_captures", runCursorCaptures},
	{"direct_captures", runDirectCaptures},
	{"capture_map", runCaptureMap},
	{"match_list", runMatchList},
}

// Execute runs q against root. Whitespace-only sources short-circuit to an
// empty result without touching the query machinery. The returned error is
// non-nil only when every applicable strategy failed.
func (e *QueryExecutor) Execute(q Query, root Node, src []byte, lang string) (ExecResult, error) {
	if len(bytes.TrimSpace(src)) == 0 {
		return ExecResult{Captures: map[string][]Node{}, Strategy: "whitespace"}, nil
	}
	if q == nil || root == nil {
		return ExecResult{}, errs.ErrQueryUnavailable
	}

	var failures []string
	attempted := 0
	emptied := 0
	for _, s := range strategies {
		caps, err := e.attempt(s, q, root)
		if err == errShapeUnsupported {
			continue
		}
		attempted++
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", s.name, err))
			continue
		}
		if len(caps) == 0 {
			// An empty result from a working shape is not final: a later
			// shape may still surface captures this one silently dropped.
			emptied++
			continue
		}
		e.mu.Lock()
		e.used[s.name]++
		e.total++
		e.mu.Unlock()
		return ExecResult{Captures: caps, Strategy: s.name}, nil
	}

	detail := strings.Join(failures, "; ")
	if emptied > 0 {
		if detail != "" {
			detail += "; "
		}
		detail += fmt.Sprintf("%d shapes returned no captures", emptied)
	}
	err := fmt.Errorf("%w: %d shapes attempted (%s)",
		errs.ErrQueryExecution, attempted, detail)
	e.handler.Report(err, errs.Context{
		Component: "query_executor",
		Operation: "execute",
		Language:  lang,
	}, errs.CategoryParsing)
	return ExecResult{}, err
}

// errShapeUnsupported marks a strategy whose capability interface the query
// does not implement. It is filtered out before failure aggregation.
var errShapeUnsupported = fmt.Errorf("query shape not supported")

// attempt runs one strategy with panic containment. A panicking binding is
// treated as a failed strategy, not a failed file.
func (e *QueryExecutor) attempt(s runStrategy, q Query, root Node) (caps map[string][]Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			caps = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.run(q, root)
}

// StrategyCounts reports how often each execution shape was used.
func (e *QueryExecutor) StrategyCounts() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.used))
	for k, v := range e.used {
		out[k] = v
	}
	return out
}

func runCursorMatches(q Query, root Node) (map[string][]Node, error) {
	f, ok := q.(cursorFactory)
	if !ok {
		return nil, errShapeUnsupported
	}
	c := f.NewCursor()
	defer c.Close()
	if err := c.Exec(root); err != nil {
		return nil, err
	}
	caps := map[string][]Node{}
	for {
		m, ok := c.NextMatch()
		if !ok {
			break
		}
		for _, cap := range m.Captures {
			caps[cap.Name] = append(caps[cap.Name], cap.Node)
		}
	}
	return caps, nil
}

func runCursorCaptures(q Query, root Node) (map[string][]Node, error) {
	f, ok := q.(cursorFactory)
	if !ok {
		return nil, errShapeUnsupported
	}
	c := f.NewCursor()
	defer c.Close()
	if err := c.Exec(root); err != nil {
		return nil, err
	}
	caps := map[string][]Node{}
	for {
		cap, ok := c.NextCapture()
		if !ok {
			break
		}
		caps[cap.Name] = append(caps[cap.Name], cap.Node)
	}
	return caps, nil
}

func runDirectCaptures(q Query, root Node) (map[string][]Node, error) {
	l, ok := q.(captureLister)
	if !ok {
		return nil, errShapeUnsupported
	}
	list, err := l.Captures(root)
	if err != nil {
		return nil, err
	}
	caps := map[string][]Node{}
	for _, cap := range list {
		caps[cap.Name] = append(caps[cap.Name], cap.Node)
	}
	return caps, nil
}

func runCaptureMap(q Query, root Node) (map[string][]Node, error) {
	m, ok := q.(captureMapper)
	if !ok {
		return nil, errShapeUnsupported
	}
	caps, err := m.CaptureMap(root)
	if err != nil {
		return nil, err
	}
	if caps == nil {
		caps = map[string][]Node{}
	}
	return caps, nil
}

func runMatchList(q Query, root Node) (map[string][]Node, error) {
	l, ok := q.(matchLister)
	if !ok {
		return nil, errShapeUnsupported
	}
	matches, err := l.Matches(root)
	if err != nil {
		return nil, err
	}
	caps := map[string][]Node{}
	for _, m := range matches {
		for _, cap := range m.Captures {
			caps[cap.Name] = append(caps[cap.Name], cap.Node)
		}
	}
	return caps, nil
}
