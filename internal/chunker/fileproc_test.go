package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"codescout/internal/config"
	"codescout/internal/errs"
)

func newFileProcessor(mutate func(*config.Config)) *FileProcessor {
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	return NewFileProcessor(cfg, errs.NewHandler(false))
}

func TestCheckSizeCeiling(t *testing.T) {
	p := newFileProcessor(nil)

	assert.NoError(t, p.Check("src/main.go", 1024, "go"))
	err := p.Check("src/huge.go", 600*1024, "go")
	assert.ErrorIs(t, err, errs.ErrFileTooLarge)
}

func TestCheckSkipPatterns(t *testing.T) {
	p := newFileProcessor(nil)

	assert.ErrorIs(t, p.Check("assets/app.min.js", 100, "javascript"), errs.ErrFileFiltered)
	assert.ErrorIs(t, p.Check("package-lock.json", 100, "json"), errs.ErrFileFiltered)
	assert.ErrorIs(t, p.Check("node_modules/lib/index.js", 100, "javascript"), errs.ErrFileFiltered)
	assert.NoError(t, p.Check("src/app.js", 100, "javascript"))
}

func TestCheckTestAndExampleFiles(t *testing.T) {
	p := newFileProcessor(nil)

	assert.ErrorIs(t, p.Check("pkg/store_test.go", 100, "go"), errs.ErrFileFiltered)
	assert.ErrorIs(t, p.Check("src/test_utils.py", 100, "python"), errs.ErrFileFiltered)
	assert.ErrorIs(t, p.Check("web/app.spec.ts", 100, "typescript"), errs.ErrFileFiltered)
	assert.ErrorIs(t, p.Check("examples/demo.py", 100, "python"), errs.ErrFileFiltered)
	assert.ErrorIs(t, p.Check("tests/unit.py", 100, "python"), errs.ErrFileFiltered)
	assert.ErrorIs(t, p.Check("pkg/__tests__/app.js", 100, "javascript"), errs.ErrFileFiltered)

	// Segment match only: directory names merely containing "test" pass.
	assert.NoError(t, p.Check("contest/app.py", 100, "python"))
	assert.NoError(t, p.Check("pkg/attestation/sign.go", 100, "go"))

	// Both heuristics can be disabled.
	open := newFileProcessor(func(c *config.Config) {
		c.TreeSitterSkipTestFiles = false
		c.TreeSitterSkipExamples = false
	})
	assert.NoError(t, open.Check("pkg/store_test.go", 100, "go"))
	assert.NoError(t, open.Check("examples/demo.py", 100, "python"))
}

func TestCheckRustOptimizations(t *testing.T) {
	p := newFileProcessor(func(c *config.Config) {
		c.RustOptimizations.SkipLargeFiles = true
		c.RustOptimizations.MaxFileSizeKB = 100
	})

	assert.ErrorIs(t, p.Check("src/lib.rs", 200*1024, "rust"), errs.ErrFileTooLarge)
	assert.ErrorIs(t, p.Check("target/debug/gen.rs", 100, "rust"), errs.ErrFileFiltered)
	assert.NoError(t, p.Check("src/lib.rs", 50*1024, "rust"))
}

func TestCheckContentGeneratedRust(t *testing.T) {
	p := newFileProcessor(nil)

	gen := "// @generated by prost-build\npub struct Msg {}\n"
	assert.ErrorIs(t, p.CheckContent([]byte(gen), "rust"), errs.ErrFileFiltered)
	assert.NoError(t, p.CheckContent([]byte("pub fn f() {}\n"), "rust"))
	// Markers only apply to rust.
	assert.NoError(t, p.CheckContent([]byte(gen), "go"))
}

func TestIsBinary(t *testing.T) {
	assert.True(t, IsBinary([]byte("ELF\x00\x01\x02binary")))
	assert.True(t, IsBinary([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}))
	assert.False(t, IsBinary([]byte("plain text\nwith lines\n")))
	assert.False(t, IsBinary([]byte("unicode is fine: héllo wörld")))
	assert.False(t, IsBinary(nil))
	assert.False(t, IsBinary([]byte(strings.Repeat("a", 20000))))
}
