// Package report renders a completed run for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cruft/internal/data/history"
	"cruft/internal/engine/issues"
)

var headerTitles = map[issues.Type]string{
	issues.Files:           "Unused files",
	issues.Duplicates:      "Duplicate exports",
	issues.Exports:         "Unused exports",
	issues.NSExports:       "Unused exports in namespaces",
	issues.Types:           "Unused exported types",
	issues.NSTypes:         "Unused exported types in namespaces",
	issues.EnumMembers:     "Unused enum members",
	issues.ClassMembers:    "Unused class members",
	issues.Unlisted:        "Unlisted dependencies",
	issues.Unresolved:      "Unresolved imports",
	issues.Dependencies:    "Unused dependencies",
	issues.DevDependencies: "Unused devDependencies",
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	symbolStyle  = lipgloss.NewStyle().Bold(true)
	pathStyle    = lipgloss.NewStyle().Faint(true)
	summaryStyle = lipgloss.NewStyle().Faint(true)
	deltaUpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	deltaDnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// Text writes the human-readable report. Paths are shown relative to
// cwd when possible.
func Text(w io.Writer, report *issues.Report, cwd string) error {
	total := 0
	for _, issueType := range report.Selectors {
		list := report.Issues[issueType]
		if len(list) == 0 {
			continue
		}
		total += len(list)

		fmt.Fprintf(w, "%s (%d)\n", headerStyle.Render(headerTitles[issueType]), len(list))
		for _, issue := range list {
			fmt.Fprintln(w, formatIssue(issue, cwd))
		}
		fmt.Fprintln(w)
	}

	if total == 0 {
		fmt.Fprintln(w, "No issues found.")
	}
	fmt.Fprintln(w, summaryStyle.Render(fmt.Sprintf(
		"%d issues, %d files processed, %d total",
		total, report.Counters.Processed, report.Counters.Total,
	)))
	return nil
}

func formatIssue(issue issues.Issue, cwd string) string {
	path := relPath(issue.FilePath, cwd)
	switch {
	case issue.Symbol == "":
		return "  " + path
	case issue.ParentSymbol != "":
		return fmt.Sprintf("  %s  %s",
			symbolStyle.Render(issue.ParentSymbol+"."+issue.Symbol),
			pathStyle.Render(path))
	default:
		line := fmt.Sprintf("  %s  %s", symbolStyle.Render(issue.Symbol), pathStyle.Render(path))
		if issue.SymbolType != "" {
			line += pathStyle.Render(" (" + issue.SymbolType + ")")
		}
		return line
	}
}

func relPath(path, cwd string) string {
	if cwd == "" {
		return path
	}
	rel, err := filepath.Rel(cwd, filepath.FromSlash(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// Trend appends a delta line against the previous recorded run.
func Trend(w io.Writer, report *issues.Report, previous *history.Run) {
	if previous == nil {
		return
	}
	delta := report.TotalIssues() - previous.TotalIssues()
	switch {
	case delta > 0:
		fmt.Fprintln(w, deltaUpStyle.Render(fmt.Sprintf("+%d issues since last run", delta)))
	case delta < 0:
		fmt.Fprintln(w, deltaDnStyle.Render(fmt.Sprintf("%d issues since last run", delta)))
	default:
		fmt.Fprintln(w, summaryStyle.Render("no change since last run"))
	}
}

// JSON writes the machine-readable report.
func JSON(w io.Writer, report *issues.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(report)
}
