package walker

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"codescout/internal/language"
)

// FileInfo holds metadata about a discovered source file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// defaultIgnores are used when no .codescoutignore file exists.
var defaultIgnores = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"vendor",
	"__pycache__",
	".idea",
	".vscode",
	".codescout",
	"dist",
	"build",
	"target",
}

// Walk traverses the directory tree rooted at root and sends discovered
// source files on the returned channel. It only emits files the language
// detector knows by extension or filename, and skips directories matching
// .codescoutignore patterns. maxFileSize bounds accepted files; zero-byte
// files are skipped.
func Walk(root string, maxFileSize int64) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	allowedExts := language.Extensions()
	allowedNames := language.Filenames()

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		ignores := loadIgnorePatterns(absRoot)

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip errors, keep walking
			}

			if d.IsDir() {
				if path == absRoot {
					return nil
				}
				rel, _ := filepath.Rel(absRoot, path)
				if matchesIgnore(d.Name(), filepath.ToSlash(rel), ignores) {
					return filepath.SkipDir
				}
				return nil
			}

			// Skip symlinks.
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			name := strings.ToLower(d.Name())
			ext := strings.TrimPrefix(filepath.Ext(path), ".")
			if _, byName := allowedNames[name]; !byName {
				if _, byExt := allowedExts[ext]; !byExt {
					return nil
				}
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > maxFileSize || info.Size() == 0 {
				return nil
			}

			rel, _ := filepath.Rel(absRoot, path)
			relPath := filepath.ToSlash(rel)
			if matchesIgnore(d.Name(), relPath, ignores) {
				return nil
			}
			files <- FileInfo{
				Path:    path,
				RelPath: relPath,
				Size:    info.Size(),
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// loadIgnorePatterns reads .codescoutignore from the project root.
// If the file doesn't exist, it creates one with the default patterns.
func loadIgnorePatterns(root string) []string {
	ignorePath := filepath.Join(root, ".codescoutignore")

	f, err := os.Open(ignorePath)
	if err != nil {
		createDefaultIgnoreFile(ignorePath)
		return defaultIgnores
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if len(patterns) == 0 {
		return defaultIgnores
	}
	return patterns
}

func createDefaultIgnoreFile(path string) {
	var b strings.Builder
	b.WriteString("# Paths to exclude from indexing.\n")
	b.WriteString("# One pattern per line. Supports exact names and ** globs.\n\n")
	for _, p := range defaultIgnores {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	// Best-effort write; if it fails the defaults are still used in memory.
	os.WriteFile(path, []byte(b.String()), 0o644)
}

// matchesIgnore checks whether an entry name or relative path matches any
// ignore pattern.
func matchesIgnore(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
		if strings.HasPrefix(relPath, p+"/") || relPath == p {
			return true
		}
		if matched, _ := doublestar.Match(p, relPath); matched {
			return true
		}
		if matched, _ := doublestar.Match(p, name); matched {
			return true
		}
	}
	return false
}
