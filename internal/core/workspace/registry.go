// Package workspace models the set of workspaces participating in a
// multi-package project and answers lookups by package name and path.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"cruft/internal/core/config"
	"cruft/internal/core/errors"
	"cruft/internal/core/manifest"
)

type Workspace struct {
	// Name is the root-relative directory, "." for the root workspace.
	Name        string
	Dir         string
	Manifest    *manifest.Manifest
	PackageName string
	// Ancestors holds enclosing workspace names, root first.
	Ancestors []string
	Config    config.WorkspaceConfig
	Enabled   bool
}

func (w *Workspace) ManifestPath() string {
	return filepath.Join(w.Dir, manifest.Filename)
}

type Registry struct {
	root      string
	byName    map[string]*Workspace
	byPackage map[string]*Workspace
	ordered   []*Workspace
}

// NewRegistry discovers workspaces from the root manifest's workspaces
// globs. The root directory itself is always a workspace. Exact package
// names must be unique across the registry.
func NewRegistry(root string, cfg *config.Config) (*Registry, error) {
	root = filepath.Clean(root)
	rootManifest, err := manifest.LoadDir(root)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		root:      root,
		byName:    make(map[string]*Workspace),
		byPackage: make(map[string]*Workspace),
	}

	dirs := []string{root}
	memberDirs, err := expandWorkspaceGlobs(root, rootManifest.Workspaces)
	if err != nil {
		return nil, err
	}
	dirs = append(dirs, memberDirs...)

	for _, dir := range dirs {
		name, err := filepath.Rel(root, dir)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "relativize workspace dir")
		}
		name = filepath.ToSlash(name)

		m := rootManifest
		if dir != root {
			m, err = manifest.LoadDir(dir)
			if err != nil {
				return nil, errors.AddContext(err, errors.CtxWorkspace, name)
			}
		}
		pkgName := strings.TrimSpace(m.Name)
		if pkgName == "" {
			return nil, errors.New(errors.CodeManifestError, fmt.Sprintf("workspace %q has no package name", name))
		}
		if prior, exists := reg.byPackage[pkgName]; exists {
			return nil, errors.New(errors.CodeConfigError,
				fmt.Sprintf("package name %q declared by both %q and %q", pkgName, prior.Name, name))
		}

		ws := &Workspace{
			Name:        name,
			Dir:         dir,
			Manifest:    m,
			PackageName: pkgName,
			Config:      cfg.ForWorkspace(name),
			Enabled:     true,
		}
		reg.byName[name] = ws
		reg.byPackage[pkgName] = ws
		reg.ordered = append(reg.ordered, ws)
	}

	// Ancestors-before-descendants processing order: shallower
	// directories first, names break ties.
	sort.Slice(reg.ordered, func(i, j int) bool {
		di := strings.Count(reg.ordered[i].Name, "/")
		dj := strings.Count(reg.ordered[j].Name, "/")
		if reg.ordered[i].Name == "." {
			di = -1
		}
		if reg.ordered[j].Name == "." {
			dj = -1
		}
		if di != dj {
			return di < dj
		}
		return reg.ordered[i].Name < reg.ordered[j].Name
	})

	for _, ws := range reg.ordered {
		ws.Ancestors = reg.computeAncestors(ws)
	}

	return reg, nil
}

func (r *Registry) computeAncestors(ws *Workspace) []string {
	var out []string
	for _, candidate := range r.ordered {
		if candidate == ws {
			continue
		}
		if candidate.Name == "." || isPathPrefix(candidate.Dir, ws.Dir) {
			out = append(out, candidate.Name)
		}
	}
	return out
}

func (r *Registry) Root() string {
	return r.root
}

func (r *Registry) LookupByPackageName(name string) *Workspace {
	return r.byPackage[name]
}

func (r *Registry) LookupByName(name string) *Workspace {
	return r.byName[name]
}

// LookupByFilePath returns the deepest workspace whose directory is a
// prefix of the path.
func (r *Registry) LookupByFilePath(path string) *Workspace {
	path = filepath.Clean(path)
	var best *Workspace
	for _, ws := range r.ordered {
		if !isPathPrefix(ws.Dir, path) {
			continue
		}
		if best == nil || len(ws.Dir) > len(best.Dir) {
			best = ws
		}
	}
	return best
}

// Ancestors returns the ancestor workspace names of the named
// workspace, root first. Unknown names yield nil.
func (r *Registry) Ancestors(name string) []string {
	ws := r.byName[name]
	if ws == nil {
		return nil
	}
	return ws.Ancestors
}

// NestedWorkspaceDirs returns the root-relative directories of
// workspaces nested inside ws, so its glob expansion can stay out of
// territory owned by descendants.
func (r *Registry) NestedWorkspaceDirs(ws *Workspace) []string {
	var out []string
	for _, candidate := range r.ordered {
		if candidate == ws || !isPathPrefix(ws.Dir, candidate.Dir) {
			continue
		}
		rel, err := filepath.Rel(ws.Dir, candidate.Dir)
		if err != nil {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Enabled() []*Workspace {
	out := make([]*Workspace, 0, len(r.ordered))
	for _, ws := range r.ordered {
		if ws.Enabled {
			out = append(out, ws)
		}
	}
	return out
}

func expandWorkspaceGlobs(root string, patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeConfigError, fmt.Sprintf("invalid workspaces pattern %q", pattern))
		}

		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			name := d.Name()
			if name == "node_modules" || name == ".git" {
				return filepath.SkipDir
			}
			rel, err := filepath.Rel(root, path)
			if err != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if !g.Match(rel) {
				return nil
			}
			if _, err := os.Stat(filepath.Join(path, manifest.Filename)); err != nil {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "walk workspaces")
		}
	}
	sort.Strings(out)
	return out, nil
}

func isPathPrefix(dir, path string) bool {
	if dir == path {
		return true
	}
	return strings.HasPrefix(path, dir+string(os.PathSeparator))
}
