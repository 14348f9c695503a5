package typewiz

// FailOnPolicy governs when the boundary CLI should exit non-zero purely
// because of what the audit found (spec §6 "fail_on").
type FailOnPolicy string

const (
	FailOnNever    FailOnPolicy = "never"
	FailOnErrors   FailOnPolicy = "errors"
	FailOnWarnings FailOnPolicy = "warnings"
	FailOnAny      FailOnPolicy = "any"
)

// AuditConfig is the shape of the `[audit]` TOML table (spec §6). It is
// populated by an external TOML loader; this package only defines and
// consumes the resulting struct.
type AuditConfig struct {
	IncludePaths []string
	MaxDepth     int
	SkipCurrent  bool
	SkipTarget   bool
	FailOn       FailOnPolicy
	HashWorkers  string // "auto" or a non-negative integer, parsed by effectiveWorkers
	Runners      []EngineName
	PluginArgs   map[EngineName][]string
}

// EngineConfig is the shape of one `[audit.engines.<engine>]` table.
type EngineConfig struct {
	PluginArgs     []string
	ConfigFile     string
	Include        []string
	Exclude        []string
	DefaultProfile string
	Profiles       map[string]ProfileConfig
}

// ProfileConfig is the shape of one
// `[audit.engines.<engine>.profiles.<profile>]` table. Inherit names
// another profile within the same engine whose fields are merged in first;
// resolving Inherit is the external loader's responsibility, not this
// package's.
type ProfileConfig struct {
	Inherit    string
	PluginArgs []string
	ConfigFile string
	Include    []string
	Exclude    []string
}

// RatchetConfig is the shape of the `[ratchet]` TOML table.
type RatchetConfig struct {
	Severities  []string
	Signature   SignaturePolicy
	Targets     map[string]int
	Runs        []RunId
	SummaryOnly bool
	Limit       int
}

// PathsConfig is the shape of the `[paths]` TOML table, consumed by
// ResolvePaths as a ConfigPaths source.
type PathsConfig struct {
	RatchetrDir  string
	ManifestPath string
	CacheDir     string
	LogDir       string
}

// Config is the fully-loaded external configuration: the union of a
// standalone ratchetr.toml/.ratchetr.toml (or a `[tool.ratchetr]` table in
// pyproject.toml, which takes lower precedence per spec §6) plus any
// per-directory override files. This package treats it as a plain data
// bag; parsing TOML into it is an external concern.
type Config struct {
	Audit          AuditConfig
	Engines        map[EngineName]EngineConfig
	ActiveProfiles map[EngineName]string
	Ratchet        RatchetConfig
	Paths          PathsConfig
}

// ToConfigPaths projects a Config's [paths] table into the ConfigPaths
// shape ResolvePaths expects.
func (c Config) ToConfigPaths() ConfigPaths {
	return ConfigPaths{
		ToolHome:     c.Paths.RatchetrDir,
		CacheDir:     c.Paths.CacheDir,
		LogDir:       c.Paths.LogDir,
		ManifestPath: c.Paths.ManifestPath,
	}
}

// ToAuditSettings projects engine/profile/override configuration into the
// AuditSettings shape BuildPlan expects. The CLI's active-profile selections
// and the config's own are both passed through; BuildPlan prefers the CLI
// one.
func (c Config) ToAuditSettings(repoRoot string, cliActiveProfiles map[EngineName]string, pathOverrides map[EngineName][]OverrideRecord) AuditSettings {
	engineSettings := make(map[EngineName]EngineOptions, len(c.Engines))
	profiles := make(map[EngineName]map[string]EngineOptions, len(c.Engines))
	defaultProfile := make(map[EngineName]string, len(c.Engines))

	for name, cfg := range c.Engines {
		engineSettings[name] = EngineOptions{
			PluginArgs: cfg.PluginArgs,
			ConfigFile: cfg.ConfigFile,
			Include:    cfg.Include,
			Exclude:    cfg.Exclude,
		}
		defaultProfile[name] = cfg.DefaultProfile

		profileOpts := make(map[string]EngineOptions, len(cfg.Profiles))
		for profileName, p := range cfg.Profiles {
			profileOpts[profileName] = EngineOptions{
				PluginArgs: p.PluginArgs,
				ConfigFile: p.ConfigFile,
				Include:    p.Include,
				Exclude:    p.Exclude,
			}
		}
		profiles[name] = profileOpts
	}

	return AuditSettings{
		PluginArgs:           c.Audit.PluginArgs,
		EngineSettings:       engineSettings,
		Profiles:             profiles,
		DefaultProfile:       defaultProfile,
		ActiveProfilesCLI:    cliActiveProfiles,
		ActiveProfilesConfig: c.ActiveProfiles,
		PathOverrides:        pathOverrides,
		RepoRoot:             repoRoot,
	}
}
