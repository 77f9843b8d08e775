// Package fsglob expands entry and project glob patterns against a
// workspace directory, honoring ignore patterns and gitignore rules.
package fsglob

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
	ignore "github.com/sabhiram/go-gitignore"

	"cruft/internal/core/errors"
)

// Directories never worth walking into.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".hg":          true,
	".svn":         true,
}

const globCacheSize = 512

var (
	globCacheOnce sync.Once
	globCache     *lru.Cache[string, glob.Glob]
)

func compiledGlob(pattern string) (glob.Glob, error) {
	globCacheOnce.Do(func() {
		globCache, _ = lru.New[string, glob.Glob](globCacheSize)
	})
	if g, ok := globCache.Get(pattern); ok {
		return g, nil
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigError, "invalid glob pattern "+pattern)
	}
	globCache.Add(pattern, g)
	return g, nil
}

// variants makes a leading "**/" match zero directories as well, the
// way project globs are written.
func variants(pattern string) []string {
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		return []string{pattern, rest}
	}
	return []string{pattern}
}

// Expand matches patterns against files under dir. Patterns prefixed
// with "!" subtract from the match set; ignore patterns subtract
// globally. When useGitignore is set, .gitignore rules in dir apply.
// Output is absolute, sorted, deduplicated.
func Expand(dir string, patterns, ignorePatterns []string, useGitignore bool) ([]string, error) {
	var includes, excludes []glob.Glob
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		negated := strings.HasPrefix(pattern, "!")
		pattern = strings.TrimPrefix(pattern, "!")
		for _, variant := range variants(pattern) {
			g, err := compiledGlob(variant)
			if err != nil {
				return nil, err
			}
			if negated {
				excludes = append(excludes, g)
			} else {
				includes = append(includes, g)
			}
		}
	}
	for _, pattern := range ignorePatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		for _, variant := range variants(pattern) {
			g, err := compiledGlob(variant)
			if err != nil {
				return nil, err
			}
			excludes = append(excludes, g)
		}
	}

	var gi *ignore.GitIgnore
	if useGitignore {
		gi = loadGitignore(dir)
	}

	seen := make(map[string]bool)
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		matched := false
		for _, g := range includes {
			if g.Match(rel) {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}
		for _, g := range excludes {
			if g.Match(rel) {
				return nil
			}
		}

		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "walk "+dir)
	}

	sort.Strings(out)
	return out, nil
}

func loadGitignore(dir string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
