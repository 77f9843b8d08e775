// Package manifest loads and interprets package manifests.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"cruft/internal/core/errors"
)

const Filename = "package.json"

type Manifest struct {
	Name                 string            `json:"name"`
	Main                 string            `json:"main"`
	Module               string            `json:"module"`
	Bin                  json.RawMessage   `json:"bin"`
	Exports              json.RawMessage   `json:"exports"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	Workspaces           []string          `json:"workspaces"`
	Scripts              map[string]string `json:"scripts"`

	// Cruft is the plugin-owned configuration section.
	Cruft json.RawMessage `json:"cruft"`

	// Dir is the absolute directory the manifest was loaded from.
	Dir string `json:"-"`
}

const cacheSize = 256

var (
	cacheOnce sync.Once
	cache     *lru.Cache[string, *Manifest]
)

func manifestCache() *lru.Cache[string, *Manifest] {
	cacheOnce.Do(func() {
		cache, _ = lru.New[string, *Manifest](cacheSize)
	})
	return cache
}

// Load reads a manifest through the process-wide cache. The cache is
// safe because the filesystem is read-only during a run.
func Load(path string) (*Manifest, error) {
	path = filepath.Clean(path)
	if m, ok := manifestCache().Get(path); ok {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeManifestError, "read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.CodeManifestError, "parse manifest")
	}
	m.Dir = filepath.Dir(path)

	manifestCache().Add(path, &m)
	return &m, nil
}

// LoadDir reads the manifest of a workspace directory.
func LoadDir(dir string) (*Manifest, error) {
	return Load(filepath.Join(dir, Filename))
}

// BinEntries normalizes the bin field into name -> relative path. A
// bare string bin uses the package's unscoped name.
func (m *Manifest) BinEntries() map[string]string {
	if len(m.Bin) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(m.Bin, &single); err == nil {
		name := m.Name
		if idx := strings.LastIndex(name, "/"); idx != -1 {
			name = name[idx+1:]
		}
		if name == "" || single == "" {
			return nil
		}
		return map[string]string{name: single}
	}

	var many map[string]string
	if err := json.Unmarshal(m.Bin, &many); err == nil {
		return many
	}
	return nil
}

// EntryFiles yields the manifest-declared entry candidates: main,
// module, every bin target and every exports target, relative to the
// manifest directory. Order is deterministic.
func (m *Manifest) EntryFiles() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(rel string) {
		rel = strings.TrimSpace(rel)
		if rel == "" || seen[rel] {
			return
		}
		seen[rel] = true
		out = append(out, rel)
	}

	add(m.Main)
	add(m.Module)

	bins := m.BinEntries()
	binNames := make([]string, 0, len(bins))
	for name := range bins {
		binNames = append(binNames, name)
	}
	sort.Strings(binNames)
	for _, name := range binNames {
		add(bins[name])
	}

	for _, target := range m.exportTargets() {
		add(target)
	}
	return out
}
