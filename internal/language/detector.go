package language

import (
	"path/filepath"
	"strings"
	"sync"
)

// knownFilenames maps exact (lowercased) filenames to a language key.
// Filename matches take priority over extension matches.
var knownFilenames = map[string]string{
	"dockerfile":     "dockerfile",
	"containerfile":  "dockerfile",
	"makefile":       "makefile",
	"gnumakefile":    "makefile",
	"cmakelists.txt": "cmake",
	"cargo.toml":     "toml",
	"go.mod":         "gomod",
	"go.sum":         "gosum",
	"gemfile":        "ruby",
	"rakefile":       "ruby",
	"vagrantfile":    "ruby",
	"jenkinsfile":    "groovy",
	".bashrc":        "bash",
	".zshrc":         "bash",
	".profile":       "bash",
}

// extensions maps a lowercased extension (without dot) to a language key.
var extensions = map[string]string{
	"py": "python", "pyi": "python",
	"js": "javascript", "jsx": "javascript", "mjs": "javascript", "cjs": "javascript",
	"ts": "typescript", "tsx": "tsx",
	"go":   "go",
	"java": "java",
	"cpp":  "cpp", "cc": "cpp", "cxx": "cpp", "hpp": "cpp", "hh": "cpp",
	"c": "c", "h": "c",
	"rs": "rust",
	"cs": "csharp",
	"rb": "ruby",
	"php": "php", "phtml": "php",
	"kt": "kotlin", "kts": "kotlin",
	"swift": "swift",
	"lua":   "lua",
	"scala": "scala", "sc": "scala",
	"ex": "elixir", "exs": "elixir",
	"ml": "ocaml", "mli": "ocaml",
	"sh": "bash", "bash": "bash", "zsh": "bash",
	"groovy": "groovy", "gvy": "groovy",
	"elm":   "elm",
	"hcl":   "hcl",
	"tf":    "hcl",
	"cue":   "cue",
	"proto": "protobuf",
	"sql":   "sql", "surql": "sql",
	"html": "html", "htm": "html",
	"css":    "css",
	"svelte": "svelte",
	"toml":   "toml",
	"yaml":   "yaml", "yml": "yaml",
	"json": "json",
	"md":   "markdown", "markdown": "markdown",
	"txt": "text",
	"ini": "ini", "cfg": "ini", "conf": "ini", "properties": "ini", "env": "ini",
	"dart": "dart",
	"pl":   "perl", "pm": "perl",
	"hs":  "haskell",
	"clj": "clojure", "cljs": "clojure",
	"erl": "erlang", "hrl": "erlang",
	"r":   "r",
	"jl":  "julia",
	"zig": "zig",
	"nim": "nim",
	"vue": "vue",
	"rst": "rst",
	"tex": "latex",
	"sol": "solidity",
	"ps1": "powershell",
}

var cache sync.Map // path -> string (empty means undetected)

// Detect maps a file path to a language key. Filename match wins over
// extension match. Detection is side-effect-free and never fails: any
// internal panic is swallowed and reported as undetected.
func Detect(path string) (lang string, ok bool) {
	if v, hit := cache.Load(path); hit {
		s := v.(string)
		return s, s != ""
	}
	defer func() {
		if recover() != nil {
			lang, ok = "", false
		}
	}()
	lang = detect(path)
	cache.Store(path, lang)
	return lang, lang != ""
}

func detect(path string) string {
	name := strings.ToLower(filepath.Base(path))
	if lang, ok := knownFilenames[name]; ok {
		return lang
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return ""
	}
	return extensions[ext]
}

// Extensions returns the set of all recognized extensions (without dot).
func Extensions() map[string]bool {
	out := make(map[string]bool, len(extensions))
	for ext := range extensions {
		out[ext] = true
	}
	return out
}

// Filenames returns the set of recognized exact filenames.
func Filenames() map[string]bool {
	out := make(map[string]bool, len(knownFilenames))
	for name := range knownFilenames {
		out[name] = true
	}
	return out
}
