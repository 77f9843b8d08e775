package plugin

import (
	"sort"
	"strings"
)

// scriptsPlugin reads the manifest's scripts section and reports the
// binaries each command invokes.
type scriptsPlugin struct{}

func (p *scriptsPlugin) Name() string {
	return "scripts"
}

func (p *scriptsPlugin) IsEnabled(map[string]string) bool {
	return true
}

// The manifest itself is the config file.
func (p *scriptsPlugin) ConfigGlobs() []string {
	return []string{"package.json"}
}

func (p *scriptsPlugin) Resolve(configFile string, ctx Context) (Result, error) {
	var result Result
	if ctx.Workspace == nil || ctx.Workspace.Manifest == nil {
		return result, nil
	}

	scripts := ctx.Workspace.Manifest.Scripts
	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	for _, name := range names {
		for _, binary := range commandBinaries(scripts[name]) {
			if seen[binary] {
				continue
			}
			seen[binary] = true
			result.ReferencedBinaries = append(result.ReferencedBinaries, Reference{
				ContainingFile: configFile,
				Specifier:      binary,
			})
		}
	}
	return result, nil
}

// Shell builtins and runners that never map to a dependency.
var shellWords = map[string]bool{
	"cd": true, "echo": true, "exit": true, "test": true, "true": true,
	"false": true, "rm": true, "cp": true, "mv": true, "mkdir": true,
	"node": true, "npm": true, "yarn": true, "pnpm": true,
	"bun": true, "sh": true, "bash": true, "cat": true,
	"touch": true, "git": true,
}

// Wrappers whose next word is the real command.
var passThrough = map[string]bool{
	"npx": true, "env": true,
}

// commandBinaries tokenizes a script command and yields the first real
// word of each pipeline segment, skipping env assignments and wrappers.
// Shell builtins and paths yield nothing; a segment whose first real
// word is a flag or a $variable yields nothing either.
func commandBinaries(command string) []string {
	var out []string
	for _, segment := range splitSegments(command) {
		for _, field := range strings.Fields(segment) {
			if strings.Contains(field, "=") && !strings.HasPrefix(field, "-") {
				// Leading VAR=value assignment.
				continue
			}
			if passThrough[field] {
				continue
			}
			if strings.HasPrefix(field, "-") || strings.HasPrefix(field, "$") {
				break
			}
			if !shellWords[field] && !strings.HasPrefix(field, ".") && !strings.HasPrefix(field, "/") {
				out = append(out, field)
			}
			break
		}
	}
	return out
}

func splitSegments(command string) []string {
	replacer := strings.NewReplacer("&&", "\n", "||", "\n", ";", "\n", "|", "\n")
	return strings.Split(replacer.Replace(command), "\n")
}
