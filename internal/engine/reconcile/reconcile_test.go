package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cruft/internal/core/errors"
	"cruft/internal/engine/issues"
	"cruft/internal/engine/parser"
	"cruft/internal/engine/principal"
)

type fakeParser struct {
	results map[string]*parser.FileResult
}

func (f *fakeParser) ParseFile(path string) (*parser.FileResult, error) {
	if result, ok := f.results[path]; ok {
		return result, nil
	}
	return nil, errors.New(errors.CodeParseError, "no fixture for "+path)
}

func (f *fakeParser) Supports(string) bool { return true }

func analyzeAll(t *testing.T, p *principal.Principal, paths ...string) {
	t.Helper()
	for _, path := range paths {
		if _, err := p.AnalyzeSourceFile(path); err != nil {
			t.Fatal(err)
		}
	}
}

func defaultOpts() Options {
	return Options{EnumMembers: true, ClassMembers: true}
}

func TestUnusedExportFlagged(t *testing.T) {
	lib := parser.NewFileResult("/p/lib.ts")
	lib.Exports["used"] = &parser.Export{Name: "used", Kind: parser.KindValue}
	lib.Exports["unused"] = &parser.Export{Name: "unused", Kind: parser.KindValue}
	lib.Exports["UnusedShape"] = &parser.Export{Name: "UnusedShape", Kind: parser.KindInterface}

	main := parser.NewFileResult("/p/main.ts")
	items := parser.NewImportItems("./lib")
	items.Identifiers["used"] = true
	main.Internal["/p/lib.ts"] = items

	p := principal.New("t", &fakeParser{results: map[string]*parser.FileResult{
		"/p/main.ts": main, "/p/lib.ts": lib,
	}})
	p.AddEntryPath("/p/main.ts")
	analyzeAll(t, p, "/p/main.ts", "/p/lib.ts")

	c := issues.NewCollector()
	Run(p, c, defaultOpts())

	got := c.Issues()
	require.Len(t, got[issues.Exports], 1)
	require.Equal(t, "unused", got[issues.Exports][0].Symbol)
	require.Len(t, got[issues.Types], 1)
	require.Equal(t, "UnusedShape", got[issues.Types][0].Symbol)
}

func TestEntryFileExportsNeverFlagged(t *testing.T) {
	entry := parser.NewFileResult("/p/index.ts")
	entry.Exports["api"] = &parser.Export{Name: "api", Kind: parser.KindValue}

	p := principal.New("t", &fakeParser{results: map[string]*parser.FileResult{
		"/p/index.ts": entry,
	}})
	p.AddEntryPath("/p/index.ts")
	analyzeAll(t, p, "/p/index.ts")

	c := issues.NewCollector()
	Run(p, c, defaultOpts())
	require.Zero(t, c.Count(issues.Exports))
}

func TestPublicExportSuppressed(t *testing.T) {
	lib := parser.NewFileResult("/p/lib.ts")
	lib.Exports["api"] = &parser.Export{Name: "api", Kind: parser.KindValue, IsPublic: true}

	p := principal.New("t", &fakeParser{results: map[string]*parser.FileResult{
		"/p/lib.ts": lib,
	}})
	analyzeAll(t, p, "/p/lib.ts")

	c := issues.NewCollector()
	Run(p, c, defaultOpts())
	for _, issueType := range []issues.Type{issues.Exports, issues.Types, issues.NSExports, issues.NSTypes} {
		require.Zero(t, c.Count(issueType), "public export must never appear in %s", issueType)
	}
}

func TestReExportChainEndingAtEntryIsUsed(t *testing.T) {
	inner := parser.NewFileResult("/p/inner.ts")
	inner.Exports["bar"] = &parser.Export{Name: "bar", Kind: parser.KindValue}

	deep := parser.NewFileResult("/p/deep.ts")
	reexp := parser.NewImportItems("./inner")
	reexp.IsReExported = true
	reexp.IsStar = true
	reexp.IsReExportedBy["/p/deep.ts"] = true
	deep.Internal["/p/inner.ts"] = reexp

	entry := parser.NewFileResult("/p/index.ts")
	star := parser.NewImportItems("./deep")
	star.IsReExported = true
	star.IsStar = true
	star.IsReExportedBy["/p/index.ts"] = true
	entry.Internal["/p/deep.ts"] = star

	p := principal.New("t", &fakeParser{results: map[string]*parser.FileResult{
		"/p/index.ts": entry, "/p/deep.ts": deep, "/p/inner.ts": inner,
	}})
	p.AddEntryPath("/p/index.ts")
	analyzeAll(t, p, "/p/index.ts", "/p/deep.ts", "/p/inner.ts")

	c := issues.NewCollector()
	Run(p, c, defaultOpts())
	require.Zero(t, c.Count(issues.Exports))
	require.Zero(t, c.Count(issues.NSExports))
}

func TestDanglingStarReExportFlaggedAsNamespace(t *testing.T) {
	inner := parser.NewFileResult("/p/inner.ts")
	inner.Exports["gone"] = &parser.Export{Name: "gone", Kind: parser.KindValue}
	inner.Exports["GoneType"] = &parser.Export{Name: "GoneType", Kind: parser.KindType}

	mid := parser.NewFileResult("/p/mid.ts")
	reexp := parser.NewImportItems("./inner")
	reexp.IsReExported = true
	reexp.IsStar = true
	reexp.IsReExportedBy["/p/mid.ts"] = true
	mid.Internal["/p/inner.ts"] = reexp

	p := principal.New("t", &fakeParser{results: map[string]*parser.FileResult{
		"/p/mid.ts": mid, "/p/inner.ts": inner,
	}})
	analyzeAll(t, p, "/p/mid.ts", "/p/inner.ts")

	c := issues.NewCollector()
	Run(p, c, defaultOpts())
	got := c.Issues()
	require.Len(t, got[issues.NSExports], 1)
	require.Equal(t, "gone", got[issues.NSExports][0].Symbol)
	require.Len(t, got[issues.NSTypes], 1)
	require.Equal(t, "GoneType", got[issues.NSTypes][0].Symbol)
}

func TestReExportCycleTerminates(t *testing.T) {
	a := parser.NewFileResult("/p/a.ts")
	a.Exports["x"] = &parser.Export{Name: "x", Kind: parser.KindValue}
	itemsB := parser.NewImportItems("./b")
	itemsB.IsReExported = true
	itemsB.IsStar = true
	itemsB.IsReExportedBy["/p/a.ts"] = true
	a.Internal["/p/b.ts"] = itemsB

	b := parser.NewFileResult("/p/b.ts")
	itemsA := parser.NewImportItems("./a")
	itemsA.IsReExported = true
	itemsA.IsStar = true
	itemsA.IsReExportedBy["/p/b.ts"] = true
	b.Internal["/p/a.ts"] = itemsA

	p := principal.New("t", &fakeParser{results: map[string]*parser.FileResult{
		"/p/a.ts": a, "/p/b.ts": b,
	}})
	analyzeAll(t, p, "/p/a.ts", "/p/b.ts")

	c := issues.NewCollector()
	Run(p, c, defaultOpts())
	// Mutual re-export with no outside consumer: flagged, not hung.
	require.Equal(t, 1, c.Count(issues.NSExports))
}

func TestEnumMemberFindings(t *testing.T) {
	colors := parser.NewFileResult("/p/colors.ts")
	colors.Exports["Color"] = &parser.Export{
		Name:    "Color",
		Kind:    parser.KindEnum,
		Members: []string{"Red", "Green", "Blue"},
	}

	main := parser.NewFileResult("/p/main.ts")
	items := parser.NewImportItems("./colors")
	items.Identifiers["Color"] = true
	main.Internal["/p/colors.ts"] = items
	main.Accesses["Color"] = map[string]bool{"Red": true}

	p := principal.New("t", &fakeParser{results: map[string]*parser.FileResult{
		"/p/main.ts": main, "/p/colors.ts": colors,
	}})
	p.AddEntryPath("/p/main.ts")
	analyzeAll(t, p, "/p/main.ts", "/p/colors.ts")

	c := issues.NewCollector()
	Run(p, c, defaultOpts())

	got := c.Issues()[issues.EnumMembers]
	require.Len(t, got, 2)
	for _, issue := range got {
		require.Equal(t, "Color", issue.ParentSymbol)
		require.NotEqual(t, "Red", issue.Symbol)
	}
	// The enum itself is imported, so no exports issue.
	require.Zero(t, c.Count(issues.Exports))
	require.Zero(t, c.Count(issues.Types))
}

func TestMemberReportsDisabled(t *testing.T) {
	colors := parser.NewFileResult("/p/colors.ts")
	colors.Exports["Color"] = &parser.Export{
		Name:    "Color",
		Kind:    parser.KindEnum,
		Members: []string{"Red"},
	}

	p := principal.New("t", &fakeParser{results: map[string]*parser.FileResult{
		"/p/colors.ts": colors,
	}})
	analyzeAll(t, p, "/p/colors.ts")

	c := issues.NewCollector()
	Run(p, c, Options{})
	require.Zero(t, c.Count(issues.EnumMembers))
}

func TestDynamicImportKeepsExportsAlive(t *testing.T) {
	lib := parser.NewFileResult("/p/lib.ts")
	lib.Exports["lazy"] = &parser.Export{Name: "lazy", Kind: parser.KindValue}

	main := parser.NewFileResult("/p/main.ts")
	items := parser.NewImportItems("./lib")
	items.IsStar = true
	main.Internal["/p/lib.ts"] = items

	p := principal.New("t", &fakeParser{results: map[string]*parser.FileResult{
		"/p/main.ts": main, "/p/lib.ts": lib,
	}})
	p.AddEntryPath("/p/main.ts")
	analyzeAll(t, p, "/p/main.ts", "/p/lib.ts")

	c := issues.NewCollector()
	Run(p, c, defaultOpts())
	require.Zero(t, c.Count(issues.Exports))
	require.Zero(t, c.Count(issues.NSExports))
}
