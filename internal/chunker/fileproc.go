package chunker

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"codescout/internal/config"
	"codescout/internal/errs"
)

const binarySniffLen = 8192

// generatedMarkers flag machine-written files worth skipping when the
// language opts in.
var generatedMarkers = [][]byte{
	[]byte("@generated"),
	[]byte("DO NOT EDIT"),
	[]byte("Code generated"),
	[]byte("automatically generated"),
}

// FileProcessor decides whether a file is eligible for structural chunking.
// Ineligible files are not errors for the pipeline; they fall through to the
// line strategy. The returned errors wrap the filter sentinels so callers
// can tell "too large" from "filtered".
type FileProcessor struct {
	cfg     *config.Config
	handler *errs.Handler
}

// NewFileProcessor creates a processor with the given filters.
func NewFileProcessor(cfg *config.Config, handler *errs.Handler) *FileProcessor {
	return &FileProcessor{cfg: cfg, handler: handler}
}

// Check runs the path and size filters. A nil return means the file may
// proceed to content checks.
func (p *FileProcessor) Check(path string, size int64, lang string) error {
	if size > int64(p.cfg.TreeSitterMaxFileSizeBytes) {
		return fmt.Errorf("%w: %d bytes (limit %d)", errs.ErrFileTooLarge, size, p.cfg.TreeSitterMaxFileSizeBytes)
	}

	slashed := filepath.ToSlash(path)
	base := filepath.Base(slashed)

	for _, pat := range p.cfg.TreeSitterSkipPatterns {
		if matched, _ := doublestar.Match(pat, slashed); matched {
			return fmt.Errorf("%w: matches pattern %q", errs.ErrFileFiltered, pat)
		}
		if matched, _ := doublestar.Match(pat, base); matched {
			return fmt.Errorf("%w: matches pattern %q", errs.ErrFileFiltered, pat)
		}
	}

	if p.cfg.TreeSitterSkipTestFiles && isTestPath(slashed, base) {
		return fmt.Errorf("%w: test file", errs.ErrFileFiltered)
	}
	if p.cfg.TreeSitterSkipExamples && isExamplePath(slashed, base) {
		return fmt.Errorf("%w: example file", errs.ErrFileFiltered)
	}

	if lang == "rust" {
		if err := p.checkRustPath(slashed, size); err != nil {
			return err
		}
	}
	return nil
}

// CheckContent runs the content filters: binary sniffing for every file and
// generated-code markers for Rust when enabled.
func (p *FileProcessor) CheckContent(data []byte, lang string) error {
	if IsBinary(data) {
		return fmt.Errorf("%w: binary content", errs.ErrFileFiltered)
	}
	if lang == "rust" && p.cfg.RustOptimizations.SkipGeneratedFiles {
		head := data
		if len(head) > binarySniffLen {
			head = head[:binarySniffLen]
		}
		for _, marker := range generatedMarkers {
			if bytes.Contains(head, marker) {
				return fmt.Errorf("%w: generated file", errs.ErrFileFiltered)
			}
		}
	}
	return nil
}

func (p *FileProcessor) checkRustPath(slashed string, size int64) error {
	opts := p.cfg.RustOptimizations
	for _, dir := range opts.TargetDirectories {
		dir = strings.Trim(filepath.ToSlash(dir), "/")
		if dir != "" && (strings.HasPrefix(slashed, dir+"/") || strings.Contains(slashed, "/"+dir+"/")) {
			return fmt.Errorf("%w: build artifact directory %q", errs.ErrFileFiltered, dir)
		}
	}
	if opts.SkipLargeFiles && opts.MaxFileSizeKB > 0 && size > int64(opts.MaxFileSizeKB)*1024 {
		return fmt.Errorf("%w: rust file %d bytes (limit %d KB)", errs.ErrFileTooLarge, size, opts.MaxFileSizeKB)
	}
	return nil
}

// IsBinary sniffs the first 8 KiB for a NUL byte or a low ratio of printable
// bytes.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	head := data
	if len(head) > binarySniffLen {
		head = head[:binarySniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	printable := 0
	for _, b := range head {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b < 0x7f) || b >= 0x80 {
			printable++
		}
	}
	return float64(printable)/float64(len(head)) < 0.8
}

func isTestPath(slashed, base string) bool {
	lower := strings.ToLower(base)
	if strings.HasPrefix(lower, "test_") || strings.HasSuffix(lower, "_test.go") ||
		strings.Contains(lower, ".test.") || strings.Contains(lower, ".spec.") {
		return true
	}
	return hasDirSegment(slashed, "tests", "test", "__tests__")
}

func isExamplePath(slashed, base string) bool {
	lower := strings.ToLower(base)
	if strings.HasPrefix(lower, "example_") || strings.HasSuffix(lower, "_example.go") {
		return true
	}
	return hasDirSegment(slashed, "examples", "example")
}

// hasDirSegment reports whether any directory component of the slashed path
// matches one of the names. Relative paths carry no leading slash, so the
// match is per segment, not substring.
func hasDirSegment(slashed string, names ...string) bool {
	segments := strings.Split(strings.ToLower(slashed), "/")
	if len(segments) > 0 {
		segments = segments[:len(segments)-1] // the last segment is the file
	}
	for _, seg := range segments {
		for _, name := range names {
			if seg == name {
				return true
			}
		}
	}
	return false
}
