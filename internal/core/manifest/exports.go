package manifest

import (
	"encoding/json"
	"sort"
	"strings"

	"cruft/internal/core/errors"
)

// Condition resolution order for conditional exports. The first
// matching condition wins.
var conditionOrder = []string{"import", "default", "require", "node", "types"}

// ResolveExport maps a subpath (without leading "./", empty for the
// package root) to a file path relative to the manifest directory,
// following the exports field. Falls back to main/module when exports
// is absent.
func (m *Manifest) ResolveExport(subpath string) (string, error) {
	if len(m.Exports) == 0 {
		if subpath == "" {
			if m.Main != "" {
				return m.Main, nil
			}
			if m.Module != "" {
				return m.Module, nil
			}
			return "", errors.New(errors.CodeNotFound, "manifest has no entry for package root")
		}
		// Bare subpath import without an exports map addresses the file directly.
		return subpath, nil
	}

	key := "."
	if subpath != "" {
		key = "./" + subpath
	}

	// A string exports field only resolves the root.
	var single string
	if err := json.Unmarshal(m.Exports, &single); err == nil {
		if key == "." {
			return single, nil
		}
		return "", errors.New(errors.CodeNotFound, "subpath not exported: "+key)
	}

	var table map[string]json.RawMessage
	if err := json.Unmarshal(m.Exports, &table); err != nil {
		return "", errors.Wrap(err, errors.CodeManifestError, "parse exports field")
	}

	// Conditions-only object maps the root.
	if !hasSubpathKeys(table) {
		if key != "." {
			return "", errors.New(errors.CodeNotFound, "subpath not exported: "+key)
		}
		return resolveTarget(m.Exports)
	}

	if raw, ok := table[key]; ok {
		return resolveTarget(raw)
	}

	// Wildcard patterns, longest prefix first.
	patterns := make([]string, 0, len(table))
	for pattern := range table {
		if strings.Contains(pattern, "*") {
			patterns = append(patterns, pattern)
		}
	}
	sort.Slice(patterns, func(i, j int) bool { return len(patterns[i]) > len(patterns[j]) })
	for _, pattern := range patterns {
		prefix, suffix, _ := strings.Cut(pattern, "*")
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
			continue
		}
		star := key[len(prefix) : len(key)-len(suffix)]
		target, err := resolveTarget(table[pattern])
		if err != nil {
			return "", err
		}
		return strings.Replace(target, "*", star, 1), nil
	}

	return "", errors.New(errors.CodeNotFound, "subpath not exported: "+key)
}

// exportTargets flattens every concrete target in the exports field for
// entry seeding. Wildcard targets are skipped, so files reached only
// through a wildcard export are not seeded as entries.
func (m *Manifest) exportTargets() []string {
	if len(m.Exports) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(m.Exports, &single); err == nil {
		return []string{single}
	}

	var table map[string]json.RawMessage
	if err := json.Unmarshal(m.Exports, &table); err != nil {
		return nil
	}

	if !hasSubpathKeys(table) {
		if target, err := resolveTarget(m.Exports); err == nil {
			return []string{target}
		}
		return nil
	}

	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []string
	for _, key := range keys {
		target, err := resolveTarget(table[key])
		if err != nil || strings.Contains(target, "*") {
			continue
		}
		out = append(out, target)
	}
	return out
}

func hasSubpathKeys(table map[string]json.RawMessage) bool {
	for key := range table {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

func resolveTarget(raw json.RawMessage) (string, error) {
	var target string
	if err := json.Unmarshal(raw, &target); err == nil {
		return target, nil
	}

	var conditions map[string]json.RawMessage
	if err := json.Unmarshal(raw, &conditions); err != nil {
		return "", errors.Wrap(err, errors.CodeManifestError, "parse exports target")
	}
	for _, condition := range conditionOrder {
		if nested, ok := conditions[condition]; ok {
			return resolveTarget(nested)
		}
	}
	return "", errors.New(errors.CodeNotFound, "no matching export condition")
}
