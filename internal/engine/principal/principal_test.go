package principal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cruft/internal/core/errors"
	"cruft/internal/engine/parser"
)

// fakeParser serves canned parse results keyed by path.
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

func resultWithImports(path string, targets ...string) *parser.FileResult {
	result := parser.NewFileResult(path)
	for _, target := range targets {
		result.Internal[target] = parser.NewImportItems("./" + target)
	}
	return result
}

func TestReachabilityCountsUnanalyzedTargets(t *testing.T) {
	fp := &fakeParser{results: map[string]*parser.FileResult{
		"/p/a.ts": resultWithImports("/p/a.ts", "/p/b.ts"),
	}}
	p := New("test", fp)
	p.AddEntryPath("/p/a.ts")
	p.AddProjectPath("/p/a.ts")
	p.AddProjectPath("/p/b.ts")
	p.AddProjectPath("/p/orphan.ts")

	_, err := p.AnalyzeSourceFile("/p/a.ts")
	require.NoError(t, err)

	used := p.GetUsedResolvedFiles()
	require.Contains(t, used, "/p/a.ts")
	require.Contains(t, used, "/p/b.ts", "unanalysed target still reachable")
	require.Equal(t, []string{"/p/orphan.ts"}, p.GetUnreferencedFiles())
}

func TestEntryPathReclassifiesProjectPath(t *testing.T) {
	p := New("test", &fakeParser{results: map[string]*parser.FileResult{}})
	p.AddProjectPath("/p/x.ts")
	require.Equal(t, []string{"/p/x.ts"}, p.GetUnreferencedFiles())

	p.AddEntryPath("/p/x.ts")
	require.Empty(t, p.GetUnreferencedFiles())
}

func TestAnalyzeFailureStillCountsFile(t *testing.T) {
	p := New("test", &fakeParser{results: map[string]*parser.FileResult{}})
	p.AddEntryPath("/p/broken.ts")

	_, err := p.AnalyzeSourceFile("/p/broken.ts")
	require.Error(t, err)
	require.True(t, p.IsAnalyzed("/p/broken.ts"))
	require.Equal(t, 1, p.AnalyzedCount())
}

func TestImportAggregationAcrossFiles(t *testing.T) {
	ra := resultWithImports("/p/a.ts", "/p/shared.ts")
	ra.Internal["/p/shared.ts"].Identifiers["alpha"] = true
	rb := resultWithImports("/p/b.ts", "/p/shared.ts")
	rb.Internal["/p/shared.ts"].Identifiers["beta"] = true
	rb.Internal["/p/shared.ts"].IsStar = true

	p := New("test", &fakeParser{results: map[string]*parser.FileResult{
		"/p/a.ts": ra,
		"/p/b.ts": rb,
	}})
	for _, path := range []string{"/p/a.ts", "/p/b.ts"} {
		_, err := p.AnalyzeSourceFile(path)
		require.NoError(t, err)
	}

	agg := p.ImportsInto("/p/shared.ts")
	require.NotNil(t, agg)
	require.True(t, agg.Identifiers["alpha"])
	require.True(t, agg.Identifiers["beta"])
	require.True(t, agg.IsStar)
}

func TestFindUnusedMembers(t *testing.T) {
	result := resultWithImports("/p/main.ts", "/p/color.ts")
	result.Internal["/p/color.ts"].Identifiers["Color"] = true
	result.Accesses = map[string]map[string]bool{
		"Color": {"Red": true},
	}

	p := New("test", &fakeParser{results: map[string]*parser.FileResult{
		"/p/main.ts": result,
	}})
	_, err := p.AnalyzeSourceFile("/p/main.ts")
	require.NoError(t, err)

	unused := p.FindUnusedMembers("/p/color.ts", "Color", []string{"Red", "Green", "Blue"})
	require.Equal(t, []string{"Green", "Blue"}, unused)
}

func TestWholeModuleConsumption(t *testing.T) {
	result := resultWithImports("/p/main.ts", "/p/lazy.ts")
	result.Internal["/p/lazy.ts"].IsStar = true

	p := New("test", &fakeParser{results: map[string]*parser.FileResult{
		"/p/main.ts": result,
	}})
	_, err := p.AnalyzeSourceFile("/p/main.ts")
	require.NoError(t, err)

	require.True(t, p.HasExternalReferences("/p/lazy.ts"))
	require.False(t, p.HasExternalReferences("/p/main.ts"))
}

func TestFactoryDeduplicatesByCanonicalOptions(t *testing.T) {
	factory := NewFactory(func(parser.CompilerOptions) parser.SourceParser {
		return &fakeParser{}
	})

	a := factory.GetPrincipal(parser.CompilerOptions{
		BaseURL: "/x",
		Paths:   map[string][]string{"@a/*": []string{"b", "a"}},
	})
	b := factory.GetPrincipal(parser.CompilerOptions{
		BaseURL: "/x",
		Paths:   map[string][]string{"@a/*": []string{"a", "b"}},
	})
	c := factory.GetPrincipal(parser.CompilerOptions{BaseURL: "/y"})

	require.Same(t, a, b)
	require.NotSame(t, a, c)
	require.Len(t, factory.Principals(), 2)
}
