package parser

import (
	"os"
	"path/filepath"
	"strings"

	"cruft/internal/engine/modspec"
)

// Extension probe order mirrors module resolution: exact hit first,
// then source extensions, then directory index files.
var probeExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// ResolveFile maps a relative or absolute specifier to an existing file
// path. Returns "" when nothing on disk matches.
func ResolveFile(containingDir, spec string) string {
	var base string
	if filepath.IsAbs(spec) {
		base = filepath.Clean(spec)
	} else {
		base = filepath.Join(containingDir, spec)
	}

	if fi, err := os.Stat(base); err == nil && !fi.IsDir() {
		return modspec.Normalize(base)
	}
	for _, ext := range probeExtensions {
		candidate := base + ext
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return modspec.Normalize(candidate)
		}
	}
	for _, ext := range probeExtensions {
		candidate := filepath.Join(base, "index"+ext)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return modspec.Normalize(candidate)
		}
	}
	return ""
}

// ResolveAlias applies compiler-options path aliases to a bare
// specifier. Returns "" when no alias matches or the target is missing.
func ResolveAlias(opts CompilerOptions, spec string) string {
	if len(opts.Paths) == 0 {
		return ""
	}
	baseDir := opts.BaseURL
	if baseDir == "" {
		return ""
	}

	for pattern, targets := range opts.Paths {
		prefix, suffix, hasStar := strings.Cut(pattern, "*")
		if hasStar {
			if !strings.HasPrefix(spec, prefix) || !strings.HasSuffix(spec, suffix) {
				continue
			}
			star := spec[len(prefix) : len(spec)-len(suffix)]
			for _, target := range targets {
				resolved := ResolveFile(baseDir, strings.Replace(target, "*", star, 1))
				if resolved != "" {
					return resolved
				}
			}
			continue
		}
		if spec != pattern {
			continue
		}
		for _, target := range targets {
			resolved := ResolveFile(baseDir, target)
			if resolved != "" {
				return resolved
			}
		}
	}
	return ""
}
