package errs

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// Sentinel errors for the chunking taxonomy. All of them are absorbed inside
// the chunker and converted into fallback behavior; they never cross the
// Chunk/ChunkBatch boundary.
var (
	ErrLanguageUnsupported = errors.New("language not supported for structural parsing")
	ErrFileTooLarge        = errors.New("file too large for structural parsing")
	ErrFileFiltered        = errors.New("file filtered out by chunking configuration")
	ErrParserUnavailable   = errors.New("structural parser unavailable")
	ErrQueryUnavailable    = errors.New("capture query unavailable")
	ErrQueryExecution      = errors.New("capture query execution failed")
)

// Category classifies an absorbed failure for diagnostics.
type Category string

const (
	CategoryConfiguration Category = "configuration"
	CategoryParsing       Category = "parsing"
	CategoryResource      Category = "resource_management"
	CategoryExtraction    Category = "extraction"
	CategoryBatch         Category = "batch"
	CategoryFile          Category = "file"
)

// Context identifies where a failure happened.
type Context struct {
	Component string
	Operation string
	FilePath  string
	Language  string
}

// Record is one absorbed failure kept for diagnostics.
type Record struct {
	Context  Context
	Category Category
	Err      error
	At       time.Time
}

const recentLimit = 10

// Handler collects absorbed failures. The chunking pipeline reports every
// swallowed error here instead of propagating it; the ring of recent records
// is what diagnostics and tests inspect.
type Handler struct {
	mu     sync.Mutex
	recent []Record
	total  int
	debug  bool
}

// NewHandler creates a Handler. When debug is true each record is also
// printed to stderr as it arrives.
func NewHandler(debug bool) *Handler {
	return &Handler{debug: debug}
}

// Report records an absorbed failure. Safe for concurrent use.
func (h *Handler) Report(err error, ctx Context, cat Category) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total++
	h.recent = append(h.recent, Record{Context: ctx, Category: cat, Err: err, At: time.Now()})
	if len(h.recent) > recentLimit {
		h.recent = h.recent[len(h.recent)-recentLimit:]
	}
	if h.debug {
		fmt.Fprintf(os.Stderr, "[%s] %s.%s", cat, ctx.Component, ctx.Operation)
		if ctx.Language != "" {
			fmt.Fprintf(os.Stderr, " lang=%s", ctx.Language)
		}
		if ctx.FilePath != "" {
			fmt.Fprintf(os.Stderr, " file=%s", ctx.FilePath)
		}
		fmt.Fprintf(os.Stderr, ": %v\n", err)
	}
}

// Reportf records a formatted failure.
func (h *Handler) Reportf(ctx Context, cat Category, format string, args ...any) {
	h.Report(fmt.Errorf(format, args...), ctx, cat)
}

// Recent returns a copy of the most recent records (bounded).
func (h *Handler) Recent() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.recent))
	copy(out, h.recent)
	return out
}

// Total returns the number of failures reported over the handler's lifetime.
func (h *Handler) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}
