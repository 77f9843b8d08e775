package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	"cruft/internal/core/errors"
)

const DefaultFile = "cruft.toml"

// Config is the file-backed run configuration. Runtime switches that
// arrive on the command line live in Options.
type Config struct {
	Version            int                        `toml:"version"`
	Entry              []string                   `toml:"entry"`
	Project            []string                   `toml:"project"`
	Ignore             []string                   `toml:"ignore"`
	IgnoreDependencies []string                   `toml:"ignore_dependencies"`
	IgnoreBinaries     []string                   `toml:"ignore_binaries"`
	Workspaces         map[string]WorkspaceConfig `toml:"workspaces"`
	Report             Report                     `toml:"report"`
	History            History                    `toml:"history"`
	MemberReports      MemberReports              `toml:"member_reports"`
}

type WorkspaceConfig struct {
	Entry              []string `toml:"entry"`
	Project            []string `toml:"project"`
	Ignore             []string `toml:"ignore"`
	IgnoreDependencies []string `toml:"ignore_dependencies"`
}

type Report struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type MemberReports struct {
	EnumMembers  *bool `toml:"enum_members"`
	ClassMembers *bool `toml:"class_members"`
}

// Options is the invocation contract: working directory, optional
// compiler-config path and the run-mode flags.
type Options struct {
	Cwd          string
	ConfigPath   string
	TSConfigPath string
	Gitignore    bool
	IsStrict     bool
	IsProduction bool
	Progress     bool
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigError, "read config")
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigError, "parse config")
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validatePatterns(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file exists on
// disk. A missing config file is not fatal; a missing manifest is.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.Entry) == 0 {
		cfg.Entry = []string{"index.{js,ts,tsx}", "src/index.{js,ts,tsx}"}
	}
	if len(cfg.Project) == 0 {
		cfg.Project = []string{"**/*.{js,ts,tsx}"}
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = ".cruft/history.db"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return errors.New(errors.CodeConfigError, fmt.Sprintf("unsupported config version %d; supported version is 1", cfg.Version))
	}
	return nil
}

func validatePatterns(cfg *Config) error {
	check := func(ref string, patterns []string) error {
		for i, pattern := range patterns {
			if strings.TrimSpace(pattern) == "" {
				return errors.New(errors.CodeConfigError, fmt.Sprintf("%s[%d] must not be empty", ref, i))
			}
		}
		return nil
	}

	if err := check("entry", cfg.Entry); err != nil {
		return err
	}
	if err := check("project", cfg.Project); err != nil {
		return err
	}
	if err := check("ignore", cfg.Ignore); err != nil {
		return err
	}
	if err := check("ignore_dependencies", cfg.IgnoreDependencies); err != nil {
		return err
	}
	for name, ws := range cfg.Workspaces {
		if strings.TrimSpace(name) == "" {
			return errors.New(errors.CodeConfigError, "workspaces key must not be empty")
		}
		if _, err := glob.Compile(name, '/'); err != nil {
			return errors.Wrap(err, errors.CodeConfigError, fmt.Sprintf("invalid workspaces pattern %q", name))
		}
		if err := check(fmt.Sprintf("workspaces.%q.entry", name), ws.Entry); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("workspaces.%q.project", name), ws.Project); err != nil {
			return err
		}
	}
	return nil
}

// ForWorkspace returns the effective entry/project/ignore patterns for
// a workspace name. The most specific matching workspaces block wins;
// the root falls back to the top-level patterns.
func (c *Config) ForWorkspace(name string) WorkspaceConfig {
	base := WorkspaceConfig{
		Entry:              c.Entry,
		Project:            c.Project,
		Ignore:             c.Ignore,
		IgnoreDependencies: c.IgnoreDependencies,
	}
	if name == "." || name == "" {
		if ws, ok := c.Workspaces["."]; ok {
			return mergeWorkspace(base, ws)
		}
		return base
	}

	bestLen := -1
	var best WorkspaceConfig
	for pattern, ws := range c.Workspaces {
		g, err := glob.Compile(pattern, '/')
		if err != nil || !g.Match(name) {
			continue
		}
		if len(pattern) > bestLen {
			bestLen = len(pattern)
			best = ws
		}
	}
	if bestLen == -1 {
		return base
	}
	return mergeWorkspace(base, best)
}

func mergeWorkspace(base, override WorkspaceConfig) WorkspaceConfig {
	out := base
	if len(override.Entry) > 0 {
		out.Entry = override.Entry
	}
	if len(override.Project) > 0 {
		out.Project = override.Project
	}
	if len(override.Ignore) > 0 {
		out.Ignore = append(append([]string{}, base.Ignore...), override.Ignore...)
	}
	if len(override.IgnoreDependencies) > 0 {
		out.IgnoreDependencies = append(append([]string{}, base.IgnoreDependencies...), override.IgnoreDependencies...)
	}
	return out
}

// ReportEnumMembers defaults to on; member-level findings are part of
// the standard report unless switched off.
func (c *Config) ReportEnumMembers() bool {
	if c.MemberReports.EnumMembers == nil {
		return true
	}
	return *c.MemberReports.EnumMembers
}

func (c *Config) ReportClassMembers() bool {
	if c.MemberReports.ClassMembers == nil {
		return true
	}
	return *c.MemberReports.ClassMembers
}

// ProductionPattern reports whether an entry pattern is flagged for
// production runs (trailing "!") and returns it with the flag stripped.
func ProductionPattern(pattern string) (string, bool) {
	if strings.HasSuffix(pattern, "!") {
		return strings.TrimSuffix(pattern, "!"), true
	}
	return pattern, false
}
