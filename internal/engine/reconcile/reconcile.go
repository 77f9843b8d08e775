// Package reconcile cross-references exports against the aggregated
// import map after reachability has converged.
package reconcile

import (
	"sort"

	"cruft/internal/engine/issues"
	"cruft/internal/engine/parser"
	"cruft/internal/engine/principal"
)

type Options struct {
	EnumMembers  bool
	ClassMembers bool
}

// Run walks every analysed file with exports and emits unused-symbol
// issues. Entry files are roots and never flagged.
func Run(p *principal.Principal, collector *issues.Collector, opts Options) {
	for _, path := range p.AnalyzedFiles() {
		if p.IsEntryPath(path) || p.ShouldSkipExports(path) {
			continue
		}
		record := p.Record(path)
		if record == nil || len(record.Exports) == 0 {
			continue
		}

		names := make([]string, 0, len(record.Exports))
		for name := range record.Exports {
			names = append(names, name)
		}
		sort.Strings(names)

		imports := p.ImportsInto(path)
		for _, name := range names {
			reconcileExport(p, collector, path, name, record.Exports[name], imports, opts)
		}
	}
}

func reconcileExport(p *principal.Principal, collector *issues.Collector, path, name string, exp *parser.Export, imports *parser.ImportItems, opts Options) {
	if p.IsPublicExport(exp) {
		return
	}

	if exp.Kind == parser.KindEnum && opts.EnumMembers && len(exp.Members) > 0 {
		for _, member := range p.FindUnusedMembers(path, name, exp.Members) {
			collector.Add(issues.Issue{
				Type:         issues.EnumMembers,
				FilePath:     path,
				Symbol:       member,
				ParentSymbol: name,
			})
		}
	}
	if exp.Kind == parser.KindClass && opts.ClassMembers && len(exp.Members) > 0 {
		for _, member := range p.FindUnusedMembers(path, name, exp.Members) {
			collector.Add(issues.Issue{
				Type:         issues.ClassMembers,
				FilePath:     path,
				Symbol:       member,
				ParentSymbol: name,
			})
		}
	}

	if imports != nil && imports.Identifiers[name] {
		return
	}

	namespaced := imports != nil && (imports.IsReExported || imports.IsStar)
	if namespaced {
		if chaseReExports(p, path, name, make(map[string]bool)) {
			return
		}
		if p.HasExternalReferences(path) {
			return
		}
		collector.Add(unusedIssue(path, name, exp, true))
		return
	}

	if p.HasExternalReferences(path) {
		return
	}
	collector.Add(unusedIssue(path, name, exp, false))
}

// chaseReExports follows the chain of files that re-export through the
// target. A hop ending at an entry file keeps the export alive; the
// visited set bounds cycles of mutual re-exports.
func chaseReExports(p *principal.Principal, path, name string, visited map[string]bool) bool {
	if visited[path] {
		return false
	}
	visited[path] = true

	imports := p.ImportsInto(path)
	if imports == nil {
		return false
	}

	hops := make([]string, 0, len(imports.IsReExportedBy))
	for hop := range imports.IsReExportedBy {
		hops = append(hops, hop)
	}
	sort.Strings(hops)

	for _, hop := range hops {
		if p.IsEntryPath(hop) {
			return true
		}
		hopImports := p.ImportsInto(hop)
		if hopImports != nil && hopImports.Identifiers[name] {
			return true
		}
		if p.HasExternalReferences(hop) {
			return true
		}
		if chaseReExports(p, hop, name, visited) {
			return true
		}
	}
	return false
}

func unusedIssue(path, name string, exp *parser.Export, namespaced bool) issues.Issue {
	issueType := issues.Exports
	switch {
	case namespaced && exp.Kind.IsTypeKind():
		issueType = issues.NSTypes
	case namespaced:
		issueType = issues.NSExports
	case exp.Kind.IsTypeKind():
		issueType = issues.Types
	}
	return issues.Issue{
		Type:       issueType,
		FilePath:   path,
		Symbol:     name,
		SymbolType: string(exp.Kind),
	}
}
