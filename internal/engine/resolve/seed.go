package resolve

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cruft/internal/core/config"
	"cruft/internal/core/workspace"
	"cruft/internal/engine/fsglob"
	"cruft/internal/engine/issues"
	"cruft/internal/engine/parser"
	"cruft/internal/engine/plugin"
	"cruft/internal/engine/principal"
	"cruft/internal/shared/observability"
)

// seed is Phase A: per enabled workspace (ancestors first) it expands
// entry and project globs, adds manifest-declared entry files, records
// installed binaries and replays plugin contributions.
func (e *Engine) seed() error {
	start := time.Now()
	defer func() {
		observability.PhaseDuration.WithLabelValues("seed").Observe(time.Since(start).Seconds())
	}()

	for _, ws := range e.registry.Enabled() {
		prin := e.principalFor(ws)
		e.ledger.AddWorkspace(ws)

		if err := e.seedGlobs(ws, prin); err != nil {
			return err
		}
		e.seedManifestEntries(ws, prin)
		e.seedInstalledBinaries(ws)
		e.runPlugins(ws, prin)
	}

	observability.PrincipalsTotal.Set(float64(len(e.factory.Principals())))
	return nil
}

func (e *Engine) seedGlobs(ws *workspace.Workspace, prin *principal.Principal) error {
	wcfg := ws.Config

	// Descendant workspaces own their own globs.
	ignore := append([]string{}, wcfg.Ignore...)
	for _, nested := range e.registry.NestedWorkspaceDirs(ws) {
		ignore = append(ignore, nested+"/**")
	}

	entryPatterns := make([]string, 0, len(wcfg.Entry))
	for _, pattern := range wcfg.Entry {
		stripped, isProduction := config.ProductionPattern(pattern)
		if e.opts.IsProduction && !isProduction {
			continue
		}
		entryPatterns = append(entryPatterns, stripped)
	}

	entryFiles, err := fsglob.Expand(ws.Dir, entryPatterns, ignore, e.opts.Gitignore)
	if err != nil {
		return err
	}
	for _, path := range entryFiles {
		prin.AddEntryPath(path)
		prin.AddProjectPath(path)
	}

	projectPatterns := make([]string, 0, len(wcfg.Project))
	for _, pattern := range wcfg.Project {
		stripped, _ := config.ProductionPattern(pattern)
		projectPatterns = append(projectPatterns, stripped)
	}
	projectFiles, err := fsglob.Expand(ws.Dir, projectPatterns, ignore, e.opts.Gitignore)
	if err != nil {
		return err
	}
	for _, path := range projectFiles {
		prin.AddProjectPath(path)
	}
	return nil
}

func (e *Engine) seedManifestEntries(ws *workspace.Workspace, prin *principal.Principal) {
	for _, rel := range ws.Manifest.EntryFiles() {
		resolved := parser.ResolveFile(ws.Dir, rel)
		if resolved == "" {
			slog.Debug("manifest entry missing on disk", "workspace", ws.Name, "entry", rel)
			continue
		}
		prin.AddEntryPath(resolved)
	}

	// Bin scripts are executables, not import surface; whatever they
	// export is not held against them.
	for _, rel := range ws.Manifest.BinEntries() {
		if resolved := parser.ResolveFile(ws.Dir, rel); resolved != "" {
			prin.SkipExportsAnalysisFor(resolved)
		}
	}
}

// seedInstalledBinaries records node_modules/.bin contents, following
// symlinks so the owning package can be attributed later.
func (e *Engine) seedInstalledBinaries(ws *workspace.Workspace) {
	binDir := filepath.Join(ws.Dir, "node_modules", ".bin")
	entries, err := os.ReadDir(binDir)
	if err != nil {
		return
	}
	binaries := make(map[string]string, len(entries))
	for _, entry := range entries {
		path := filepath.Join(binDir, entry.Name())
		if target, err := filepath.EvalSymlinks(path); err == nil {
			path = target
		}
		binaries[entry.Name()] = path
	}
	e.ledger.SetInstalledBinaries(ws, binaries)
}

func (e *Engine) runPlugins(ws *workspace.Workspace, prin *principal.Principal) {
	deps := make(map[string]string)
	for name, version := range ws.Manifest.Dependencies {
		deps[name] = version
	}
	for name, version := range ws.Manifest.DevDependencies {
		deps[name] = version
	}

	for _, plug := range e.plugins {
		if !plug.IsEnabled(deps) {
			continue
		}
		configFiles, err := fsglob.Expand(ws.Dir, plug.ConfigGlobs(), nil, e.opts.Gitignore)
		if err != nil {
			slog.Debug("failed to expand plugin config globs", "plugin", plug.Name(), "error", err)
			continue
		}
		for _, configFile := range configFiles {
			result, err := plug.Resolve(configFile, plugin.Context{Workspace: ws, Cwd: e.opts.Cwd})
			if err != nil {
				slog.Debug("plugin failed", "plugin", plug.Name(), "config", configFile, "error", err)
				continue
			}
			e.applyPluginResult(ws, prin, result)
		}
	}
}

func (e *Engine) applyPluginResult(ws *workspace.Workspace, prin *principal.Principal, result plugin.Result) {
	e.ledger.AddPeerDependencies(ws, result.PeerDependencies)
	if len(result.InstalledBinaries) > 0 {
		e.ledger.SetInstalledBinaries(ws, result.InstalledBinaries)
	}

	for _, path := range result.ExtraEntryPaths {
		if !filepath.IsAbs(path) {
			path = filepath.Join(ws.Dir, path)
		}
		if resolved := parser.ResolveFile(filepath.Dir(path), "./"+filepath.Base(path)); resolved != "" {
			prin.AddEntryPath(resolved)
		}
	}

	// Plugin-attributed references run through the same classifier as
	// Phase B so they participate in ledger accounting.
	for _, ref := range result.ReferencedPackages {
		e.classifySpecifier(ws, ref.ContainingFile, ref.Specifier)
	}
	for _, ref := range result.ReferencedBinaries {
		if !e.ledger.MaybeAddReferencedBinary(ws, ref.Specifier) {
			e.collector.Add(issues.Issue{
				Type:     issues.Unlisted,
				FilePath: ref.ContainingFile,
				Symbol:   ref.Specifier,
			})
		}
	}
}
