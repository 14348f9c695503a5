package typewiz

import (
	"sort"
	"strings"
)

// applyPathOverrides applies the overrides whose Path prefixes match any of
// scannedPaths in ascending order of prefix length, so the longest (most
// specific) prefix is applied last and takes precedence, folding each
// match's plugin_args/include/exclude into base and returning the resulting
// options plus the active profile name the last matching override
// requested (empty if none did).
//
// Applying broader overrides before more specific (longer/deeper) ones lets
// the more specific deltas win ties on duplicate plugin_args.
func applyPathOverrides(base EngineOptions, overrides []OverrideRecord, scannedPaths []string) (EngineOptions, string) {
	matching := make([]OverrideRecord, 0, len(overrides))
	for _, o := range overrides {
		if matchesAnyPrefix(o.Path, scannedPaths) {
			matching = append(matching, o)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return len(matching[i].Path) < len(matching[j].Path)
	})

	result := base
	activeProfile := ""
	for _, o := range matching {
		result.PluginArgs = dedupPreserveOrder(append(result.PluginArgs, o.PluginArgs...))
		result.Include = sortedUnique(append(result.Include, o.Include...))
		result.Exclude = sortedUnique(append(result.Exclude, o.Exclude...))
		if o.ConfigFile != "" {
			result.ConfigFile = o.ConfigFile
		}
		if o.ActiveProfile != "" {
			activeProfile = o.ActiveProfile
		}
	}
	return result, activeProfile
}

func matchesAnyPrefix(overridePath string, scannedPaths []string) bool {
	prefix := strings.TrimSuffix(overridePath, "/")
	for _, p := range scannedPaths {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

// applyIncludeExclude resolves an engine's final scanned-path set: include
// then subtract exclude by path-prefix matching (spec §4.C step 6).
func applyIncludeExclude(allPaths []string, include, exclude []string) []string {
	included := allPaths
	if len(include) > 0 {
		included = make([]string, 0, len(allPaths))
		for _, p := range allPaths {
			if matchesAnyPrefix2(p, include) {
				included = append(included, p)
			}
		}
	}
	if len(exclude) == 0 {
		return included
	}
	out := make([]string, 0, len(included))
	for _, p := range included {
		if !matchesAnyPrefix2(p, exclude) {
			out = append(out, p)
		}
	}
	return out
}

// matchesAnyPrefix2 reports whether p equals or is nested under any prefix
// in prefixes (each prefix is repo-relative POSIX, possibly a file path).
func matchesAnyPrefix2(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		clean := strings.TrimSuffix(prefix, "/")
		if p == clean || strings.HasPrefix(p, clean+"/") {
			return true
		}
	}
	return false
}
