// Package resolve drives the analysis: it seeds entry paths per
// workspace, classifies every specifier the parsers surface, promotes
// cross-workspace imports and iterates reachability to a fixed point.
package resolve

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"cruft/internal/core/config"
	"cruft/internal/core/workspace"
	"cruft/internal/engine/issues"
	"cruft/internal/engine/ledger"
	"cruft/internal/engine/modspec"
	"cruft/internal/engine/parser"
	"cruft/internal/engine/plugin"
	"cruft/internal/engine/principal"
	"cruft/internal/engine/reconcile"
	"cruft/internal/shared/observability"
)

type Engine struct {
	cfg       *config.Config
	opts      config.Options
	registry  *workspace.Registry
	ledger    *ledger.Ledger
	factory   *principal.Factory
	collector *issues.Collector
	plugins   []plugin.Plugin

	// wsPrincipal maps workspace name to its principal; workspaces with
	// equivalent compiler options share one.
	wsPrincipal map[string]*principal.Principal

	rootOptions parser.CompilerOptions
}

// Run is the single top-level call. Configuration errors abort;
// per-file failures are downgraded to debug logs or issues.
func Run(cfg *config.Config, opts config.Options) (*issues.Report, error) {
	registry, err := workspace.NewRegistry(opts.Cwd, cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		opts:     opts,
		registry: registry,
		ledger: ledger.New(registry, opts.IsStrict, opts.IsProduction,
			cfg.IgnoreDependencies, cfg.IgnoreBinaries),
		factory:     principal.NewFactory(nil),
		collector:   issues.NewCollector(),
		plugins:     plugin.Builtin(),
		wsPrincipal: make(map[string]*principal.Principal),
	}

	if opts.TSConfigPath != "" {
		tsconfig := opts.TSConfigPath
		if !filepath.IsAbs(tsconfig) {
			tsconfig = filepath.Join(opts.Cwd, tsconfig)
		}
		rootOptions, err := parser.LoadCompilerOptions(tsconfig)
		if err != nil {
			return nil, err
		}
		e.rootOptions = rootOptions
	}

	observability.WorkspacesTotal.Set(float64(len(registry.Enabled())))

	if err := e.seed(); err != nil {
		return nil, err
	}
	e.fixedPoint()
	e.reconcile()
	e.finish()

	selectors, err := e.selectors()
	if err != nil {
		return nil, err
	}
	report := e.collector.Finalize(uuid.NewString(), selectors)
	for issueType, list := range report.Issues {
		observability.IssuesTotal.WithLabelValues(string(issueType)).Add(float64(len(list)))
	}
	return report, nil
}

// fixedPoint runs Phase C. The outer loop re-visits all principals
// because classifying an import in one workspace can inject roots into
// another workspace's principal.
func (e *Engine) fixedPoint() {
	start := time.Now()
	defer func() {
		observability.PhaseDuration.WithLabelValues("reachability").Observe(time.Since(start).Seconds())
	}()

	for {
		before := e.stateSignature()
		for _, prin := range e.factory.Principals() {
			e.converge(prin)
		}
		if e.stateSignature() == before {
			break
		}
	}
}

func (e *Engine) stateSignature() int {
	total := 0
	for _, prin := range e.factory.Principals() {
		total += prin.EntryPathCount() + prin.AnalyzedCount()
	}
	return total
}

// converge analyses one principal's reachable files until neither the
// entry-path set nor the analysed set grows. The universe of files is
// finite and both sets are append-only, so this terminates.
func (e *Engine) converge(prin *principal.Principal) {
	for {
		prevEntries := prin.EntryPathCount()
		prevAnalyzed := prin.AnalyzedCount()
		for _, path := range prin.GetUsedResolvedFiles() {
			if prin.IsAnalyzed(path) || !prin.Supports(path) {
				continue
			}
			e.analyzeFile(prin, path)
		}
		observability.FixedPointRounds.Inc()
		if prin.EntryPathCount() == prevEntries && prin.AnalyzedCount() == prevAnalyzed {
			return
		}
	}
}

func (e *Engine) analyzeFile(prin *principal.Principal, path string) {
	if e.opts.Progress {
		slog.Info("analyzing", "path", path)
	}

	result, err := prin.AnalyzeSourceFile(path)
	observability.FilesProcessed.Inc()
	if err != nil {
		// The file stays processed; it just contributes nothing.
		slog.Debug("failed to analyze file", "path", path, "error", err)
		return
	}

	ws := e.workspaceFor(path)
	e.handleResult(ws, path, result)
}

// handleResult is Phase B for one analysed file: internal targets are
// already recorded as reachability edges by the principal; external
// specifiers go through the ledger and the workspace registry, the
// rest becomes issues.
func (e *Engine) handleResult(ws *workspace.Workspace, path string, result *parser.FileResult) {
	externals := make([]string, 0, len(result.External))
	for spec := range result.External {
		externals = append(externals, spec)
	}
	sort.Strings(externals)
	for _, spec := range externals {
		e.classifyExternal(ws, path, spec)
	}

	unresolved := make([]string, 0, len(result.Unresolved))
	for spec := range result.Unresolved {
		unresolved = append(unresolved, spec)
	}
	sort.Strings(unresolved)
	for _, spec := range unresolved {
		e.collector.Add(issues.Issue{Type: issues.Unresolved, FilePath: path, Symbol: spec})
	}

	for _, group := range result.DuplicateExports {
		e.collector.Add(issues.Issue{
			Type:     issues.Duplicates,
			FilePath: path,
			Symbol:   strings.Join(group, "|"),
			Symbols:  group,
		})
	}
}

// classifySpecifier routes one plugin-attributed (containing file,
// specifier) pair. Internal specifiers become entry paths; bare and
// node_modules specifiers take the same classifyExternal path as parser
// output.
func (e *Engine) classifySpecifier(ws *workspace.Workspace, containingFile, spec string) {
	switch modspec.Classify(spec) {
	case modspec.KindInternal:
		resolved := parser.ResolveFile(filepath.Dir(containingFile), spec)
		if resolved == "" {
			e.collector.Add(issues.Issue{Type: issues.Unresolved, FilePath: containingFile, Symbol: spec})
			return
		}
		e.principalFor(ws).AddEntryPath(resolved)
	case modspec.KindNodeModules, modspec.KindBare:
		e.classifyExternal(ws, containingFile, spec)
	default:
		e.collector.Add(issues.Issue{Type: issues.Unresolved, FilePath: containingFile, Symbol: spec})
	}
}

func (e *Engine) classifyExternal(ws *workspace.Workspace, containingFile, spec string) {
	var packageName string
	if modspec.Classify(spec) == modspec.KindNodeModules {
		packageName = modspec.PackageNameFromModulePath(spec)
	} else {
		packageName = modspec.PackageName(spec)
	}
	if packageName == "" {
		e.collector.Add(issues.Issue{Type: issues.Unresolved, FilePath: containingFile, Symbol: spec})
		return
	}

	if !e.ledger.MaybeAddReferenced(ws, packageName) {
		e.collector.Add(issues.Issue{Type: issues.Unlisted, FilePath: containingFile, Symbol: packageName})
	}

	// A package name owned by a workspace makes this a cross-workspace
	// (or self) import; resolve the subpath into that workspace and
	// promote the target to an entry path of its principal.
	target := e.registry.LookupByPackageName(packageName)
	if target == nil {
		return
	}
	subpath := modspec.Subpath(spec)
	rel, err := target.Manifest.ResolveExport(subpath)
	if err != nil {
		slog.Debug("failed to resolve workspace subpath",
			"workspace", target.Name, "specifier", spec, "error", err)
		return
	}
	resolved := parser.ResolveFile(target.Dir, rel)
	if resolved == "" {
		slog.Debug("workspace export target missing on disk",
			"workspace", target.Name, "specifier", spec, "target", rel)
		return
	}
	e.principalFor(target).AddEntryPath(resolved)
}

func (e *Engine) workspaceFor(path string) *workspace.Workspace {
	if ws := e.registry.LookupByFilePath(path); ws != nil {
		return ws
	}
	return e.registry.LookupByName(".")
}

func (e *Engine) principalFor(ws *workspace.Workspace) *principal.Principal {
	if prin, ok := e.wsPrincipal[ws.Name]; ok {
		return prin
	}
	prin := e.factory.GetPrincipal(e.compilerOptionsFor(ws))
	e.wsPrincipal[ws.Name] = prin
	return prin
}

func (e *Engine) compilerOptionsFor(ws *workspace.Workspace) parser.CompilerOptions {
	local := filepath.Join(ws.Dir, "tsconfig.json")
	if opts, err := parser.LoadCompilerOptions(local); err == nil {
		return opts
	}
	return e.rootOptions
}

// reconcile runs the symbol pass once reachability converged.
func (e *Engine) reconcile() {
	start := time.Now()
	defer func() {
		observability.PhaseDuration.WithLabelValues("reconcile").Observe(time.Since(start).Seconds())
	}()

	opts := reconcile.Options{
		EnumMembers:  e.cfg.ReportEnumMembers(),
		ClassMembers: e.cfg.ReportClassMembers(),
	}
	for _, prin := range e.factory.Principals() {
		reconcile.Run(prin, e.collector, opts)
	}
}

// finish emits unreferenced-file issues, settles the ledger and fixes
// the counters.
func (e *Engine) finish() {
	processed := 0
	unreferenced := 0
	for _, prin := range e.factory.Principals() {
		processed += prin.AnalyzedCount()
		for _, path := range prin.GetUnreferencedFiles() {
			unreferenced++
			e.collector.Add(issues.Issue{Type: issues.Files, FilePath: path})
		}
	}
	e.collector.SetCounters(processed, processed+unreferenced)

	for _, unused := range e.ledger.Settle() {
		for _, dep := range unused.Dependencies {
			e.collector.Add(issues.Issue{
				Type:     issues.Dependencies,
				FilePath: unused.ManifestPath,
				Symbol:   dep,
			})
		}
		for _, dep := range unused.DevDeps {
			e.collector.Add(issues.Issue{
				Type:     issues.DevDependencies,
				FilePath: unused.ManifestPath,
				Symbol:   dep,
			})
		}
	}
}

func (e *Engine) selectors() ([]issues.Type, error) {
	include, err := issues.ParseSelectors(e.cfg.Report.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := issues.ParseSelectors(e.cfg.Report.Exclude)
	if err != nil {
		return nil, err
	}
	if len(include) == 0 {
		include = issues.AllTypes
	}
	if len(exclude) == 0 {
		return include, nil
	}
	excluded := make(map[issues.Type]bool, len(exclude))
	for _, t := range exclude {
		excluded[t] = true
	}
	out := make([]issues.Type, 0, len(include))
	for _, t := range include {
		if !excluded[t] {
			out = append(out, t)
		}
	}
	return out, nil
}
