package discover

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/codegraph/codegraph/internal/lang"
)

// IgnoreDirs are directory names skipped during discovery: version control,
// interpreter bytecode caches, virtualenvs and build artifacts.
var IgnoreDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"__pycache__": true, ".mypy_cache": true, ".pytest_cache": true,
	".ruff_cache": true, ".tox": true, ".nox": true, ".eggs": true,
	".venv": true, "venv": true, "env": true, "site-packages": true,
	"node_modules": true, "bower_components": true,
	"build": true, "dist": true, "target": true, "vendor": true,
	"coverage": true, "htmlcov": true, ".idea": true, ".vscode": true,
}

// IgnoreSuffixes are file suffixes skipped during discovery.
var IgnoreSuffixes = []string{
	".pyc", ".pyo", ".tmp", "~", ".o", ".a", ".so", ".dll", ".class",
}

// IgnoreFileName is the per-corpus ignore file, gitignore syntax.
const IgnoreFileName = ".codegraphignore"

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to the corpus root, slash-separated
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	IgnoreFile string // explicit ignore file path; defaults to <root>/.codegraphignore
}

// Discover walks a corpus root and returns every file whose extension has a
// registered parser. Directories in IgnoreDirs and paths matched by the
// corpus ignore file are excluded. The walk stops early if ctx is cancelled.
func Discover(ctx context.Context, root string, opts *Options) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ignPath := filepath.Join(root, IgnoreFileName)
	if opts != nil && opts.IgnoreFile != "" {
		ignPath = opts.IgnoreFile
	}
	var ign *ignore.GitIgnore
	if _, statErr := os.Stat(ignPath); statErr == nil {
		ign, _ = ignore.CompileIgnoreFile(ignPath)
	}

	var files []FileInfo

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if IgnoreDirs[info.Name()] || (ign != nil && rel != "." && ign.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		for _, suffix := range IgnoreSuffixes {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}
		if ign != nil && ign.MatchesPath(rel) {
			return nil
		}

		l, ok := lang.LanguageForExtension(filepath.Ext(path))
		if !ok {
			return nil // unsupported extension: silently skipped
		}
		files = append(files, FileInfo{Path: path, RelPath: rel, Language: l})
		return nil
	})

	return files, err
}
