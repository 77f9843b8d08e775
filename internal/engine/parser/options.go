package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"cruft/internal/core/errors"
)

type compilerConfigFile struct {
	CompilerOptions CompilerOptions `json:"compilerOptions"`
	Extends         string          `json:"extends"`
}

// LoadCompilerOptions reads a tsconfig-style JSON file. A single
// extends hop is followed; chains beyond that are rare enough to leave
// to the nearest file.
func LoadCompilerOptions(path string) (CompilerOptions, error) {
	var opts CompilerOptions
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrap(err, errors.CodeConfigError, "read compiler config")
	}
	var file compilerConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return opts, errors.Wrap(err, errors.CodeConfigError, "parse compiler config")
	}
	opts = file.CompilerOptions

	if file.Extends != "" {
		basePath := filepath.Join(filepath.Dir(path), file.Extends)
		if baseData, err := os.ReadFile(basePath); err == nil {
			var base compilerConfigFile
			if err := json.Unmarshal(baseData, &base); err == nil {
				if opts.BaseURL == "" {
					opts.BaseURL = base.CompilerOptions.BaseURL
				}
				if opts.Paths == nil {
					opts.Paths = base.CompilerOptions.Paths
				}
			}
		}
	}

	if opts.BaseURL != "" && !filepath.IsAbs(opts.BaseURL) {
		opts.BaseURL = filepath.Join(filepath.Dir(path), opts.BaseURL)
	}
	return opts, nil
}

// Canonical serializes options with sorted keys so semantically equal
// configurations produce identical fingerprints.
func (o CompilerOptions) Canonical() []byte {
	type kv struct {
		Key     string   `json:"key"`
		Targets []string `json:"targets"`
	}
	paths := make([]kv, 0, len(o.Paths))
	for key, targets := range o.Paths {
		sortedTargets := make([]string, len(targets))
		copy(sortedTargets, targets)
		sort.Strings(sortedTargets)
		paths = append(paths, kv{Key: key, Targets: sortedTargets})
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Key < paths[j].Key })

	compilers := make([]string, len(o.Compilers))
	copy(compilers, o.Compilers)
	sort.Strings(compilers)

	canonical := struct {
		BaseURL   string   `json:"baseUrl"`
		Paths     []kv     `json:"paths"`
		Compilers []string `json:"compilers"`
	}{
		BaseURL:   filepath.ToSlash(o.BaseURL),
		Paths:     paths,
		Compilers: compilers,
	}
	data, _ := json.Marshal(canonical)
	return data
}
