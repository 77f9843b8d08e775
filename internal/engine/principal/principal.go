// Package principal owns the per-compiler-context analysis state: the
// entry and project path sets, the file records produced under one
// compiler-options group, and the reachability closure over them.
package principal

import (
	"sort"

	"cruft/internal/engine/modspec"
	"cruft/internal/engine/parser"
)

// FileRecord holds one analysed file's contribution. Records are
// created on first analysis and mutated only by the owning principal.
type FileRecord struct {
	Exports          map[string]*parser.Export
	DuplicateExports [][]string
}

type Principal struct {
	id     string
	parser parser.SourceParser

	// entryPaths only ever grows; convergence detection depends on it.
	entryPaths   map[string]bool
	projectPaths map[string]bool
	skipExports  map[string]bool
	analyzed     map[string]bool

	files map[string]*FileRecord

	// perFileEdges holds each analysed file's internal import targets
	// in sorted order, for the reachability walk.
	perFileEdges map[string][]string

	// importsByTarget aggregates every import pointing at a resolved
	// file across all analysed files. The IsReExportedBy sets inside
	// are weak back-references into this same table.
	importsByTarget map[string]*parser.ImportItems

	// memberUses tracks member accesses on imported identifiers,
	// keyed by target file then identifier.
	memberUses map[string]map[string]map[string]bool

	// wholeModule marks targets consumed in full (dynamic imports,
	// unqualified namespace imports).
	wholeModule map[string]bool
}

func New(id string, sourceParser parser.SourceParser) *Principal {
	return &Principal{
		id:              id,
		parser:          sourceParser,
		entryPaths:      make(map[string]bool),
		projectPaths:    make(map[string]bool),
		skipExports:     make(map[string]bool),
		analyzed:        make(map[string]bool),
		files:           make(map[string]*FileRecord),
		perFileEdges:    make(map[string][]string),
		importsByTarget: make(map[string]*parser.ImportItems),
		memberUses:      make(map[string]map[string]map[string]bool),
		wholeModule:     make(map[string]bool),
	}
}

func (p *Principal) ID() string {
	return p.id
}

// Supports reports whether the underlying parser handles the file.
// Reachable but unsupported files stay unanalysed; they contribute no
// exports.
func (p *Principal) Supports(path string) bool {
	return p.parser.Supports(path)
}

func (p *Principal) AddEntryPath(path string) {
	path = modspec.Normalize(path)
	if path != "" {
		p.entryPaths[path] = true
	}
}

func (p *Principal) AddProjectPath(path string) {
	path = modspec.Normalize(path)
	if path != "" {
		p.projectPaths[path] = true
	}
}

func (p *Principal) IsEntryPath(path string) bool {
	return p.entryPaths[modspec.Normalize(path)]
}

func (p *Principal) EntryPathCount() int {
	return len(p.entryPaths)
}

// SkipExportsAnalysisFor marks a file whose exports the reconciler must
// ignore even when imported elsewhere.
func (p *Principal) SkipExportsAnalysisFor(path string) {
	p.skipExports[modspec.Normalize(path)] = true
}

func (p *Principal) ShouldSkipExports(path string) bool {
	return p.skipExports[modspec.Normalize(path)]
}

func (p *Principal) IsAnalyzed(path string) bool {
	return p.analyzed[modspec.Normalize(path)]
}

func (p *Principal) AnalyzedCount() int {
	return len(p.analyzed)
}

// AnalyzeSourceFile parses one file and folds its results into the
// principal's tables. The returned result carries the specifiers the
// engine still has to classify. A file is analysed at most once.
func (p *Principal) AnalyzeSourceFile(path string) (*parser.FileResult, error) {
	path = modspec.Normalize(path)
	p.analyzed[path] = true

	result, err := p.parser.ParseFile(path)
	if err != nil {
		// The file still counts as processed; it contributes nothing.
		p.files[path] = &FileRecord{Exports: map[string]*parser.Export{}}
		return nil, err
	}

	p.files[path] = &FileRecord{
		Exports:          result.Exports,
		DuplicateExports: result.DuplicateExports,
	}

	edges := make([]string, 0, len(result.Internal))
	for target := range result.Internal {
		edges = append(edges, target)
	}
	sort.Strings(edges)
	p.perFileEdges[path] = edges

	for target, items := range result.Internal {
		existing, ok := p.importsByTarget[target]
		if !ok {
			existing = parser.NewImportItems(items.Specifier)
			p.importsByTarget[target] = existing
		}
		existing.Merge(items)

		if items.IsStar && !items.IsReExported && len(items.Identifiers) == 0 {
			p.wholeModule[target] = true
		}

		for id := range items.Identifiers {
			members := result.Accesses[id]
			if len(members) == 0 {
				continue
			}
			if p.memberUses[target] == nil {
				p.memberUses[target] = make(map[string]map[string]bool)
			}
			if p.memberUses[target][id] == nil {
				p.memberUses[target][id] = make(map[string]bool)
			}
			for member := range members {
				p.memberUses[target][id][member] = true
			}
		}
	}

	return result, nil
}

// GetUsedResolvedFiles returns the transitive closure of files
// reachable from entry paths via already-analysed imports. Targets not
// yet analysed still count; they drive the next fixed-point round.
func (p *Principal) GetUsedResolvedFiles() []string {
	reachable := make(map[string]bool, len(p.entryPaths))
	var queue []string
	for path := range p.entryPaths {
		reachable[path] = true
		queue = append(queue, path)
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		record := p.filesImports(current)
		for _, target := range record {
			if !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	out := make([]string, 0, len(reachable))
	for path := range reachable {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// filesImports lists the internal targets of an analysed file.
// Unanalysed files have no edges yet.
func (p *Principal) filesImports(path string) []string {
	return p.perFileEdges[path]
}

// GetUnreferencedFiles returns project paths not reachable from any
// entry path.
func (p *Principal) GetUnreferencedFiles() []string {
	reachable := make(map[string]bool)
	for _, path := range p.GetUsedResolvedFiles() {
		reachable[path] = true
	}
	var out []string
	for path := range p.projectPaths {
		if !reachable[path] {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// ImportsInto returns the aggregated import record pointing at a file,
// nil when nothing imports it.
func (p *Principal) ImportsInto(path string) *parser.ImportItems {
	return p.importsByTarget[modspec.Normalize(path)]
}

// Record returns the file record of an analysed file.
func (p *Principal) Record(path string) *FileRecord {
	return p.files[modspec.Normalize(path)]
}

// AnalyzedFiles lists analysed files in deterministic order.
func (p *Principal) AnalyzedFiles() []string {
	out := make([]string, 0, len(p.analyzed))
	for path := range p.analyzed {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// FindUnusedMembers returns the members of an exported enum or class
// that no importer touches.
func (p *Principal) FindUnusedMembers(path, exportName string, members []string) []string {
	used := p.memberUses[modspec.Normalize(path)][exportName]
	var out []string
	for _, member := range members {
		if !used[member] {
			out = append(out, member)
		}
	}
	return out
}

func (p *Principal) IsPublicExport(exp *parser.Export) bool {
	return exp != nil && exp.IsPublic
}

// HasExternalReferences reports whether a file is consumed as a whole
// module, which keeps every export alive.
func (p *Principal) HasExternalReferences(path string) bool {
	return p.wholeModule[modspec.Normalize(path)]
}
