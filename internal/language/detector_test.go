package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectByExtension(t *testing.T) {
	cases := map[string]string{
		"main.go":                 "go",
		"src/app.PY":              "python",
		"web/index.tsx":           "tsx",
		"lib/util.cjs":            "javascript",
		"crates/core/src/lib.rs":  "rust",
		"deploy/main.tf":          "hcl",
		"README.md":               "markdown",
		"settings.CFG":            "ini",
		"notes.txt":               "text",
		"schema.surql":            "sql",
		"a/b/c/服务.yaml":           "yaml",
		"vendor/x/y/z.proto":      "protobuf",
		"scripts/backup.zsh":      "bash",
		"ops/policies/access.cue": "cue",
	}
	for path, want := range cases {
		lang, ok := Detect(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, lang, path)
	}
}

func TestDetectByFilename(t *testing.T) {
	cases := map[string]string{
		"Dockerfile":          "dockerfile",
		"docker/Containerfile": "dockerfile",
		"Makefile":            "makefile",
		"proj/CMakeLists.txt": "cmake",
		"Cargo.toml":          "toml",
		"go.mod":              "gomod",
		"Gemfile":             "ruby",
		"ci/Jenkinsfile":      "groovy",
		"home/.bashrc":        "bash",
	}
	for path, want := range cases {
		lang, ok := Detect(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, lang, path)
	}
}

func TestFilenameWinsOverExtension(t *testing.T) {
	// CMakeLists.txt would be "text" by extension.
	lang, ok := Detect("CMakeLists.txt")
	assert.True(t, ok)
	assert.Equal(t, "cmake", lang)
}

func TestDetectUnknown(t *testing.T) {
	for _, path := range []string{"binary.exe", "LICENSE", "archive.tar.gz", "", "noext"} {
		_, ok := Detect(path)
		assert.False(t, ok, path)
	}
}

func TestDetectCachesResult(t *testing.T) {
	lang1, ok1 := Detect("cached/example.kt")
	lang2, ok2 := Detect("cached/example.kt")
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, lang1, lang2)
	assert.Equal(t, "kotlin", lang1)
}

func TestSetsCoverDetection(t *testing.T) {
	exts := Extensions()
	assert.True(t, exts["go"])
	assert.True(t, exts["rs"])
	assert.False(t, exts["exe"])

	names := Filenames()
	assert.True(t, names["dockerfile"])
	assert.True(t, names["makefile"])
	assert.False(t, names["license"])
}
