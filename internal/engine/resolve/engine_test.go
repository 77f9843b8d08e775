package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cruft/internal/core/config"
	"cruft/internal/core/errors"
	"cruft/internal/engine/issues"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func runEngine(t *testing.T, root string, cfg *config.Config, opts config.Options) *issues.Report {
	t.Helper()
	opts.Cwd = root
	report, err := Run(cfg, opts)
	require.NoError(t, err)
	return report
}

func selfReferenceTree(t *testing.T) string {
	return writeTree(t, map[string]string{
		"package.json": `{"name":"self"}`,
		"a.ts":         `import { v } from "self/b";` + "\n" + `console.log(v);`,
		"b.ts":         `export { v } from "./c";`,
		"c.ts":         `export { v } from "./d";`,
		"d.ts":         `export const v = 1;`,
	})
}

func selfReferenceConfig() *config.Config {
	cfg := config.Default()
	cfg.Entry = []string{"a.ts!"}
	cfg.Project = []string{"**/*.ts"}
	return cfg
}

func assertSelfReferenceClean(t *testing.T, report *issues.Report) {
	t.Helper()
	require.Equal(t, 4, report.Counters.Processed)
	require.Equal(t, 4, report.Counters.Total)
	require.Empty(t, report.Issues[issues.Unlisted])
	require.Empty(t, report.Issues[issues.Unresolved])
	require.Empty(t, report.Issues[issues.Exports])
	require.Empty(t, report.Issues[issues.Files])
}

func TestSelfReferenceNonProduction(t *testing.T) {
	report := runEngine(t, selfReferenceTree(t), selfReferenceConfig(), config.Options{})
	assertSelfReferenceClean(t, report)
}

func TestSelfReferenceProduction(t *testing.T) {
	report := runEngine(t, selfReferenceTree(t), selfReferenceConfig(), config.Options{IsProduction: true})
	assertSelfReferenceClean(t, report)
}

func TestSelfReferenceStrictProduction(t *testing.T) {
	report := runEngine(t, selfReferenceTree(t), selfReferenceConfig(), config.Options{
		IsProduction: true,
		IsStrict:     true,
	})
	assertSelfReferenceClean(t, report)
	require.Zero(t, report.TotalIssues())
}

func TestUnusedFile(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json": `{"name":"app"}`,
		"index.ts":     `const x = 1;` + "\n" + `console.log(x);`,
		"orphan.ts":    `export const o = 1;`,
	})
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}

	report := runEngine(t, root, cfg, config.Options{})

	require.Len(t, report.Issues[issues.Files], 1)
	require.Equal(t, filepath.ToSlash(filepath.Join(root, "orphan.ts")), report.Issues[issues.Files][0].FilePath)
	require.Equal(t, 1, report.Counters.Processed)
	require.Equal(t, 2, report.Counters.Total)
	// Unreached files contribute no export findings.
	require.Empty(t, report.Issues[issues.Exports])
}

func TestDuplicateExport(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json": `{"name":"app"}`,
		"index.ts": `export const foo = 1;
const foo2 = 2;
export { foo2 as foo };`,
	})
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}

	report := runEngine(t, root, cfg, config.Options{})

	require.Len(t, report.Issues[issues.Duplicates], 1)
	require.Equal(t, "foo|foo", report.Issues[issues.Duplicates][0].Symbol)
}

func TestCrossWorkspaceSubpath(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json":            `{"name":"root","workspaces":["packages/*"]}`,
		"packages/a/package.json": `{"name":"@a/pkg","dependencies":{"@b/pkg":"1.0.0"}}`,
		"packages/a/index.ts":     `import { bar } from "@b/pkg/deep.ts";` + "\n" + `console.log(bar);`,
		"packages/b/package.json": `{"name":"@b/pkg"}`,
		"packages/b/deep.ts":      `export { bar } from "./inner";`,
		"packages/b/inner.ts":     `export const bar = 1;`,
	})
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}

	report := runEngine(t, root, cfg, config.Options{})

	// inner.ts became reachable through the fixed point.
	require.Empty(t, report.Issues[issues.Files])
	require.Empty(t, report.Issues[issues.Exports])
	require.Empty(t, report.Issues[issues.NSExports])
	require.Empty(t, report.Issues[issues.Unresolved])
	require.Empty(t, report.Issues[issues.Unlisted])
	require.Equal(t, 3, report.Counters.Processed)
}

func TestUnlistedDependency(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json": `{"name":"app","dependencies":{"declared":"1.0.0"}}`,
		"index.ts":     `import g from "ghost-pkg";` + "\n" + `g();`,
	})
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}

	report := runEngine(t, root, cfg, config.Options{})

	require.Len(t, report.Issues[issues.Unlisted], 1)
	require.Equal(t, "ghost-pkg", report.Issues[issues.Unlisted][0].Symbol)
	// declared is never imported.
	require.Len(t, report.Issues[issues.Dependencies], 1)
	require.Equal(t, "declared", report.Issues[issues.Dependencies][0].Symbol)
}

func TestUnusedExportAppearsWhenImportRemoved(t *testing.T) {
	files := map[string]string{
		"package.json": `{"name":"app"}`,
		"lib.ts":       `export const used = 1;` + "\n" + `export const maybe = 2;`,
	}

	files["index.ts"] = `import { used, maybe } from "./lib";` + "\n" + `console.log(used, maybe);`
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}
	report := runEngine(t, writeTree(t, files), cfg, config.Options{})
	require.Empty(t, report.Issues[issues.Exports])

	files["index.ts"] = `import { used } from "./lib";` + "\n" + `console.log(used);`
	report = runEngine(t, writeTree(t, files), cfg, config.Options{})
	require.Len(t, report.Issues[issues.Exports], 1)
	require.Equal(t, "maybe", report.Issues[issues.Exports][0].Symbol)
}

func TestCountersIdentity(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json": `{"name":"app"}`,
		"index.ts":     `import "./used";`,
		"used.ts":      `export {};`,
		"dead1.ts":     ``,
		"dead2.ts":     ``,
	})
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}

	report := runEngine(t, root, cfg, config.Options{})
	require.Equal(t, report.Counters.Total,
		report.Counters.Processed+len(report.Issues[issues.Files]))
	require.Len(t, report.Issues[issues.Files], 2)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	root := selfReferenceTree(t)
	cfg := selfReferenceConfig()

	first := runEngine(t, root, cfg, config.Options{})
	second := runEngine(t, root, cfg, config.Options{})

	require.Equal(t, first.Counters, second.Counters)
	require.Equal(t, first.Issues, second.Issues)
	require.Equal(t, first.Selectors, second.Selectors)
}

func TestStrictUnlistedIsSuperset(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json":            `{"name":"root","workspaces":["packages/*"],"dependencies":{"from-root":"1.0.0"}}`,
		"packages/a/package.json": `{"name":"@acme/a"}`,
		"packages/a/index.ts":     `import f from "from-root";` + "\n" + `f();`,
	})
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}

	loose := runEngine(t, root, cfg, config.Options{})
	strict := runEngine(t, root, cfg, config.Options{IsStrict: true})

	looseSet := make(map[string]bool)
	for _, issue := range loose.Issues[issues.Unlisted] {
		looseSet[issue.FilePath+"|"+issue.Symbol] = true
	}
	for key := range looseSet {
		found := false
		for _, issue := range strict.Issues[issues.Unlisted] {
			if issue.FilePath+"|"+issue.Symbol == key {
				found = true
				break
			}
		}
		require.True(t, found, "strict must contain loose unlisted issue %s", key)
	}
	// The ancestor-satisfied reference is rejected only under strict.
	require.Empty(t, loose.Issues[issues.Unlisted])
	require.Len(t, strict.Issues[issues.Unlisted], 1)
}

func TestAddingOrphanGrowsTotalByOne(t *testing.T) {
	files := map[string]string{
		"package.json": `{"name":"app"}`,
		"index.ts":     `const x = 1;` + "\n" + `console.log(x);`,
	}
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}

	before := runEngine(t, writeTree(t, files), cfg, config.Options{})

	files["extra.ts"] = `const y = 2;`
	after := runEngine(t, writeTree(t, files), cfg, config.Options{})

	require.Equal(t, before.Counters.Total+1, after.Counters.Total)
	require.Equal(t, len(before.Issues[issues.Files])+1, len(after.Issues[issues.Files]))
	require.Equal(t, before.Counters.Processed, after.Counters.Processed)
}

func TestMissingManifestIsFatal(t *testing.T) {
	root := t.TempDir()
	_, err := Run(config.Default(), config.Options{Cwd: root})
	require.Error(t, err)
	require.True(t, errors.IsFatal(err))
}

func TestUnsupportedImportStaysReachableButUnanalyzed(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json": `{"name":"app"}`,
		"index.ts":     `import "./good";` + "\n" + `import "./data.json";`,
		"good.ts":      `export {};`,
		"data.json":    `{"k": 1}`,
	})
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}

	report := runEngine(t, root, cfg, config.Options{})
	// The JSON file is reachable but unsupported; the TS files analyse.
	require.Equal(t, 2, report.Counters.Processed)
	require.Empty(t, report.Issues[issues.Files])
}

func TestReportSelectorsFilterIssues(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json": `{"name":"app"}`,
		"index.ts":     ``,
		"orphan.ts":    ``,
	})
	cfg := config.Default()
	cfg.Entry = []string{"index.ts"}
	cfg.Project = []string{"**/*.ts"}
	cfg.Report.Exclude = []string{"files"}

	report := runEngine(t, root, cfg, config.Options{})
	require.NotContains(t, report.Selectors, issues.Files)
	require.Empty(t, report.Issues[issues.Files])
	// Counters are computed before filtering.
	require.Equal(t, 2, report.Counters.Total)
}
