// Package modspec classifies module specifiers as they appear in source
// code. Classification is a pure function of the string and never
// touches the filesystem.
package modspec

import (
	"path"
	"path/filepath"
	"strings"
)

type Kind int

const (
	KindUnresolvable Kind = iota
	KindInternal
	KindNodeModules
	KindBare
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindNodeModules:
		return "node_modules"
	case KindBare:
		return "bare"
	default:
		return "unresolvable"
	}
}

const nodeModulesSegment = "node_modules"

// Classify assigns a specifier to exactly one kind. Relative specifiers
// and absolute paths outside node_modules are internal; absolute paths
// containing a node_modules segment address an installed package; valid
// bare names are packages; everything else is unresolvable.
func Classify(spec string) Kind {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return KindUnresolvable
	}
	if strings.HasPrefix(spec, ".") {
		return KindInternal
	}
	if filepath.IsAbs(spec) {
		if hasNodeModulesSegment(spec) {
			return KindNodeModules
		}
		return KindInternal
	}
	if PackageName(spec) == "" {
		return KindUnresolvable
	}
	return KindBare
}

// PackageName derives the package name from a bare specifier: the first
// segment, plus the scope segment when the specifier is scoped. The
// empty string means the specifier carries no valid package name.
func PackageName(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") {
		return ""
	}
	parts := strings.Split(spec, "/")
	if strings.HasPrefix(parts[0], "@") {
		if len(parts) < 2 || parts[0] == "@" || parts[1] == "" {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	if parts[0] == "" {
		return ""
	}
	return parts[0]
}

// Subpath returns the part of a bare specifier after the package name,
// without a leading slash. Empty when the specifier is the bare package.
func Subpath(spec string) string {
	name := PackageName(spec)
	if name == "" || len(spec) <= len(name) {
		return ""
	}
	return strings.TrimPrefix(spec[len(name):], "/")
}

// PackageNameFromModulePath derives a package name from an absolute
// path into an installed package tree, taking the segment (or scoped
// segment pair) after the last node_modules directory.
func PackageNameFromModulePath(p string) string {
	segments := strings.Split(filepath.ToSlash(p), "/")
	last := -1
	for i, seg := range segments {
		if seg == nodeModulesSegment {
			last = i
		}
	}
	if last == -1 || last+1 >= len(segments) {
		return ""
	}
	first := segments[last+1]
	if strings.HasPrefix(first, "@") {
		if last+2 >= len(segments) {
			return ""
		}
		return first + "/" + segments[last+2]
	}
	return first
}

func hasNodeModulesSegment(p string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == nodeModulesSegment {
			return true
		}
	}
	return false
}

// Normalize cleans a filesystem path into the canonical slash-separated
// absolute form used as map keys throughout the engine.
func Normalize(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

// Join resolves a relative specifier against the directory of the
// containing file, returning a normalized path.
func Join(containingDir, spec string) string {
	return Normalize(path.Join(filepath.ToSlash(containingDir), spec))
}
