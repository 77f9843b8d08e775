// Package plugin defines the boundary through which tool adapters
// contribute extra entry paths and referenced dependencies. Plugins
// never see the import graph.
package plugin

import (
	"cruft/internal/core/workspace"
)

// Context hands a plugin its workspace surroundings.
type Context struct {
	Workspace *workspace.Workspace
	Cwd       string
}

// Result is everything a plugin may inject. The engine replays
// referenced packages through the same classifier as source imports and
// routes binaries through the ledger.
type Result struct {
	// ReferencedPackages pairs a containing file with a specifier.
	ReferencedPackages []Reference
	ReferencedBinaries []Reference
	PeerDependencies   []string
	InstalledBinaries  map[string]string
	ExtraEntryPaths    []string
}

type Reference struct {
	ContainingFile string
	Specifier      string
}

type Plugin interface {
	Name() string
	// IsEnabled decides from the workspace's declared dependencies
	// whether the plugin applies.
	IsEnabled(dependencies map[string]string) bool
	// ConfigGlobs lists the config-file patterns to expand against the
	// workspace directory.
	ConfigGlobs() []string
	// Resolve inspects one config file and yields contributions.
	Resolve(configFile string, ctx Context) (Result, error)
}

// Builtin returns the plugins compiled into the binary.
func Builtin() []Plugin {
	return []Plugin{
		&scriptsPlugin{},
	}
}
