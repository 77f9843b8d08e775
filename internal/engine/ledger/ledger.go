// Package ledger reconciles manifest-declared dependencies against the
// package references observed during analysis.
package ledger

import (
	"sort"

	"github.com/gobwas/glob"

	"cruft/internal/core/workspace"
	"cruft/internal/engine/modspec"
)

type entry struct {
	ws           *workspace.Workspace
	deps         map[string]bool
	devDeps      map[string]bool
	peerDeps     map[string]bool
	optionalDeps map[string]bool
	binaries     map[string]string
	// referenced only ever grows during a run.
	referenced map[string]bool
}

// Ledger keeps one entry per workspace. In strict mode peer
// dependencies do not satisfy references and ancestor declarations do
// not cascade to descendants.
type Ledger struct {
	registry       *workspace.Registry
	strict         bool
	production     bool
	ignoreDeps     []glob.Glob
	ignoreBinaries []glob.Glob
	entries        map[string]*entry
}

func New(registry *workspace.Registry, strict, production bool, ignoreDeps, ignoreBinaries []string) *Ledger {
	return &Ledger{
		registry:       registry,
		strict:         strict,
		production:     production,
		ignoreDeps:     compileGlobs(ignoreDeps),
		ignoreBinaries: compileGlobs(ignoreBinaries),
		entries:        make(map[string]*entry),
	}
}

func compileGlobs(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		if g, err := glob.Compile(pattern); err == nil {
			out = append(out, g)
		}
	}
	return out
}

func (l *Ledger) AddWorkspace(ws *workspace.Workspace) {
	e := &entry{
		ws:           ws,
		deps:         keySet(ws.Manifest.Dependencies),
		devDeps:      keySet(ws.Manifest.DevDependencies),
		peerDeps:     keySet(ws.Manifest.PeerDependencies),
		optionalDeps: keySet(ws.Manifest.OptionalDependencies),
		binaries:     make(map[string]string),
		referenced:   make(map[string]bool),
	}
	l.entries[ws.Name] = e
}

func keySet(m map[string]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

// AddPeerDependencies merges peer deps a plugin discovered for the
// workspace.
func (l *Ledger) AddPeerDependencies(ws *workspace.Workspace, peers []string) {
	e := l.entries[ws.Name]
	if e == nil {
		return
	}
	for _, peer := range peers {
		if peer != "" {
			e.peerDeps[peer] = true
		}
	}
}

func (l *Ledger) SetInstalledBinaries(ws *workspace.Workspace, binaries map[string]string) {
	e := l.entries[ws.Name]
	if e == nil {
		return
	}
	for name, path := range binaries {
		e.binaries[name] = path
	}
}

// MaybeAddReferenced records a package reference for the workspace and
// reports whether the package is accounted for: the workspace's own
// name, a declared dependency (here or, outside strict mode, in an
// ancestor), a peer (outside strict mode), or an ignore-pattern match.
func (l *Ledger) MaybeAddReferenced(ws *workspace.Workspace, packageName string) bool {
	if packageName == "" {
		return false
	}
	e := l.entries[ws.Name]
	if e == nil {
		return false
	}

	for _, g := range l.ignoreDeps {
		if g.Match(packageName) {
			return true
		}
	}
	if packageName == ws.PackageName {
		return true
	}

	if e.declares(packageName) {
		e.referenced[packageName] = true
		return true
	}
	if !l.strict && e.peerDeps[packageName] {
		e.referenced[packageName] = true
		return true
	}
	if !l.strict {
		for _, ancestorName := range ws.Ancestors {
			ancestor := l.entries[ancestorName]
			if ancestor != nil && ancestor.declares(packageName) {
				ancestor.referenced[packageName] = true
				return true
			}
		}
	}
	return false
}

func (e *entry) declares(packageName string) bool {
	return e.deps[packageName] || e.devDeps[packageName] || e.optionalDeps[packageName]
}

// MaybeAddReferencedBinary resolves a referenced binary name through
// the workspace's installed binaries; a hit records the owning package
// as referenced.
func (l *Ledger) MaybeAddReferencedBinary(ws *workspace.Workspace, binary string) bool {
	if binary == "" {
		return false
	}
	for _, g := range l.ignoreBinaries {
		if g.Match(binary) {
			return true
		}
	}
	e := l.entries[ws.Name]
	if e == nil {
		return false
	}
	path, ok := e.binaries[binary]
	if !ok && !l.strict {
		for _, ancestorName := range ws.Ancestors {
			ancestor := l.entries[ancestorName]
			if ancestor == nil {
				continue
			}
			if p, found := ancestor.binaries[binary]; found {
				path, ok = p, true
				break
			}
		}
	}
	if !ok {
		return false
	}
	if pkg := modspec.PackageNameFromModulePath(path); pkg != "" {
		l.MaybeAddReferenced(ws, pkg)
	}
	return true
}

// Unused holds a workspace's declared-minus-referenced result.
type Unused struct {
	Workspace    string
	ManifestPath string
	Dependencies []string
	DevDeps      []string
}

// Settle computes unused declared dependencies per workspace after the
// fixed point converged. Optional and peer declarations are never
// reported. Production mode does not inspect devDependencies.
func (l *Ledger) Settle() []Unused {
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Unused
	for _, name := range names {
		e := l.entries[name]
		unused := Unused{
			Workspace:    name,
			ManifestPath: e.ws.ManifestPath(),
			Dependencies: unreferenced(e.deps, e.referenced, l.ignoreDeps),
		}
		if !l.production {
			unused.DevDeps = unreferenced(e.devDeps, e.referenced, l.ignoreDeps)
		}
		if len(unused.Dependencies) > 0 || len(unused.DevDeps) > 0 {
			out = append(out, unused)
		}
	}
	return out
}

func unreferenced(declared, referenced map[string]bool, ignores []glob.Glob) []string {
	var out []string
	for name := range declared {
		if referenced[name] {
			continue
		}
		ignored := false
		for _, g := range ignores {
			if g.Match(name) {
				ignored = true
				break
			}
		}
		if !ignored {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
