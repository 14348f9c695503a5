package typewiz

import (
	"github.com/ratchetr/typewiz/pkg/errcat"
	"github.com/ratchetr/typewiz/pkg/logger"
)

var planBuilderLog = logger.New("typewiz:planbuilder")

// AuditSettings is the audit-level configuration that feeds plan building
// (spec §4.C, §6 `[audit]` / `[audit.engines.<engine>]` / `[audit.engines.<engine>.profiles.<profile>]`).
type AuditSettings struct {
	PluginArgs       map[EngineName][]string // top-level plugin_args.<engine>
	EngineSettings   map[EngineName]EngineOptions
	Profiles         map[EngineName]map[string]EngineOptions
	DefaultProfile   map[EngineName]string
	ActiveProfilesCLI    map[EngineName]string
	ActiveProfilesConfig map[EngineName]string
	PathOverrides    map[EngineName][]OverrideRecord
	RepoRoot         string
}

// BuildPlan runs the seven-step plan-building pipeline of spec §4.C for one
// engine, given the paths already scanned for fingerprinting so path
// overrides can match against them.
func BuildPlan(engine EngineName, mode Mode, settings AuditSettings, scannedPaths []string) (EnginePlan, error) {
	// Step 1: audit-level plugin_args[engine], deduped first-seen order.
	opts := EngineOptions{
		PluginArgs: dedupPreserveOrder(settings.PluginArgs[engine]),
	}

	// Step 2: engine settings.
	engineSettings := settings.EngineSettings[engine]
	opts = mergeEngineOptions(opts, engineSettings, EngineOptions{})

	// Step 3: select active profile.
	profileName := settings.ActiveProfilesCLI[engine]
	if profileName == "" {
		profileName = settings.ActiveProfilesConfig[engine]
	}
	if profileName == "" {
		profileName = settings.DefaultProfile[engine]
	}

	var profileOpts EngineOptions
	if profileName != "" {
		profiles := settings.Profiles[engine]
		chosen, ok := profiles[profileName]
		if !ok {
			planBuilderLog.Printf("engine %q requested unknown profile %q", engine, profileName)
			return EnginePlan{}, errcat.New(errcat.KindUnknownEngineProfile, "planbuilder", "active profile does not exist").
				WithContext("engine", string(engine)).
				WithContext("profile", profileName)
		}
		profileOpts = chosen
	}

	// Step 4: append profile's plugin_args; union include/exclude; override config_file.
	opts = mergeEngineOptions(opts, EngineOptions{}, profileOpts)
	opts.Profile = profileName

	// Step 5: apply path overrides whose path prefix matches a scanned path.
	finalOpts, activeProfile := applyPathOverrides(opts, settings.PathOverrides[engine], scannedPaths)
	if activeProfile != "" {
		finalOpts.Profile = activeProfile
	}

	// Step 6: normalise include/exclude relative to repo_root; apply include then exclude.
	normalised := func(paths []string) []string {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			out = append(out, ToRepoRelativePOSIX(settings.RepoRoot, p))
		}
		return sortedUnique(out)
	}
	finalOpts.Include = normalised(finalOpts.Include)
	finalOpts.Exclude = normalised(finalOpts.Exclude)
	resolvedScope := applyIncludeExclude(scannedPaths, finalOpts.Include, finalOpts.Exclude)

	// Step 7: produce the frozen, content-addressable plan.
	plan := EnginePlan{
		EngineName:      engine,
		Mode:            mode,
		ResolvedScope:   resolvedScope,
		PluginArgs:      finalOpts.PluginArgs,
		Profile:         finalOpts.Profile,
		ConfigFile:      finalOpts.ConfigFile,
		Include:         finalOpts.Include,
		Exclude:         finalOpts.Exclude,
		Overrides:       CanonicalOverrides(finalOpts.Overrides),
		CategoryMapping: CanonicalCategoryMapping(finalOpts.CategoryMapping),
	}
	return plan, nil
}
