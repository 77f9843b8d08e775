// Package issues accumulates linter findings by type and file.
package issues

import (
	"sort"
	"strings"
)

type Type string

const (
	Files           Type = "files"
	Duplicates      Type = "duplicates"
	Exports         Type = "exports"
	NSExports       Type = "nsExports"
	Types           Type = "types"
	NSTypes         Type = "nsTypes"
	EnumMembers     Type = "enumMembers"
	ClassMembers    Type = "classMembers"
	Unlisted        Type = "unlisted"
	Unresolved      Type = "unresolved"
	Dependencies    Type = "dependencies"
	DevDependencies Type = "devDependencies"
)

// AllTypes lists every wire-visible issue kind in report order.
var AllTypes = []Type{
	Files, Duplicates, Exports, NSExports, Types, NSTypes,
	EnumMembers, ClassMembers, Unlisted, Unresolved,
	Dependencies, DevDependencies,
}

func IsValidType(t Type) bool {
	for _, known := range AllTypes {
		if known == t {
			return true
		}
	}
	return false
}

type Issue struct {
	Type         Type     `json:"type"`
	FilePath     string   `json:"filePath"`
	Symbol       string   `json:"symbol,omitempty"`
	Symbols      []string `json:"symbols,omitempty"`
	SymbolType   string   `json:"symbolType,omitempty"`
	ParentSymbol string   `json:"parentSymbol,omitempty"`
}

type Counters struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Collector accumulates issues during a run. It dedupes on
// (type, file, symbol, parent) and hands out deterministic sorted
// slices once the run completes.
type Collector struct {
	byType   map[Type][]Issue
	seen     map[string]bool
	counters Counters
}

func NewCollector() *Collector {
	return &Collector{
		byType: make(map[Type][]Issue),
		seen:   make(map[string]bool),
	}
}

func (c *Collector) Add(issue Issue) {
	key := string(issue.Type) + "|" + issue.FilePath + "|" + issue.Symbol + "|" + issue.ParentSymbol
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.byType[issue.Type] = append(c.byType[issue.Type], issue)
}

func (c *Collector) Count(t Type) int {
	return len(c.byType[t])
}

func (c *Collector) SetCounters(processed, total int) {
	c.counters.Processed = processed
	c.counters.Total = total
}

func (c *Collector) Counters() Counters {
	return c.counters
}

// Issues returns all accumulated findings keyed by type, each slice
// sorted by file path then symbol so identical inputs produce
// identical reports.
func (c *Collector) Issues() map[Type][]Issue {
	out := make(map[Type][]Issue, len(c.byType))
	for t, list := range c.byType {
		sorted := make([]Issue, len(list))
		copy(sorted, list)
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].FilePath != sorted[j].FilePath {
				return sorted[i].FilePath < sorted[j].FilePath
			}
			if sorted[i].Symbol != sorted[j].Symbol {
				return sorted[i].Symbol < sorted[j].Symbol
			}
			return sorted[i].ParentSymbol < sorted[j].ParentSymbol
		})
		out[t] = sorted
	}
	return out
}

// Report is the read-only result of a completed run.
type Report struct {
	RunID     string           `json:"runId"`
	Selectors []Type           `json:"selectors"`
	Issues    map[Type][]Issue `json:"issues"`
	Counters  Counters         `json:"counters"`
}

// Finalize snapshots the collector into a report, filtered down to the
// selected issue types. Counters are computed before filtering.
func (c *Collector) Finalize(runID string, selectors []Type) *Report {
	if len(selectors) == 0 {
		selectors = AllTypes
	}
	selected := make(map[Type]bool, len(selectors))
	ordered := make([]Type, 0, len(selectors))
	for _, t := range AllTypes {
		for _, s := range selectors {
			if s == t {
				selected[t] = true
				ordered = append(ordered, t)
				break
			}
		}
	}

	all := c.Issues()
	filtered := make(map[Type][]Issue, len(ordered))
	for t, list := range all {
		if selected[t] {
			filtered[t] = list
		}
	}

	return &Report{
		RunID:     runID,
		Selectors: ordered,
		Issues:    filtered,
		Counters:  c.counters,
	}
}

// TotalIssues counts findings across all selected types.
func (r *Report) TotalIssues() int {
	n := 0
	for _, list := range r.Issues {
		n += len(list)
	}
	return n
}

// CountsByType returns per-type totals for the history store and the
// text reporter summary line.
func (r *Report) CountsByType() map[string]int {
	out := make(map[string]int, len(r.Issues))
	for t, list := range r.Issues {
		if len(list) > 0 {
			out[string(t)] = len(list)
		}
	}
	return out
}

// ParseSelectors converts config strings into issue types, rejecting
// unknown names.
func ParseSelectors(names []string) ([]Type, error) {
	out := make([]Type, 0, len(names))
	for _, name := range names {
		t := Type(strings.TrimSpace(name))
		if t == "" {
			continue
		}
		if !IsValidType(t) {
			return nil, &unknownTypeError{name: string(t)}
		}
		out = append(out, t)
	}
	return out, nil
}

type unknownTypeError struct{ name string }

func (e *unknownTypeError) Error() string {
	return "unknown issue type: " + e.name
}
