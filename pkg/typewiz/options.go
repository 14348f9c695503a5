package typewiz

import (
	"sort"
	"strings"
)

// OverrideRecord is one normalised path override: it carries exactly what
// PathOverride in spec §9's design note says — plugin_args/include/exclude
// deltas plus an optional active-profile switch, scoped to the directory at
// Path.
type OverrideRecord struct {
	Path          string
	PluginArgs    []string
	Include       []string
	Exclude       []string
	ConfigFile    string
	ActiveProfile string
}

// EngineOptions is the merge result of (defaults) <- (engine settings) <-
// (active profile) <- (path override), per spec §3/§4.C.
type EngineOptions struct {
	PluginArgs      []string
	ConfigFile      string
	Include         []string
	Exclude         []string
	Profile         string
	Overrides       []OverrideRecord
	CategoryMapping map[string][]string
}

// dedupPreserveOrder returns items with duplicates removed, keeping the
// first occurrence's position (spec §3 "deduped preserving first
// occurrence").
func dedupPreserveOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// sortedUnique returns a sorted copy of items with duplicates removed; used
// wherever spec §3/§4.E says a field participates in equivalence/hashing as
// a sorted set (include/exclude) rather than an ordered list.
func sortedUnique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// CanonicalOverrides returns overrides sorted by path then by a stable
// sub-field order, per spec §9's open question: two option sets expressed
// with differently-ordered override records must canonicalise to the same
// hash input.
func CanonicalOverrides(overrides []OverrideRecord) []OverrideRecord {
	out := make([]OverrideRecord, len(overrides))
	for i, o := range overrides {
		out[i] = OverrideRecord{
			Path:          o.Path,
			PluginArgs:    append([]string(nil), o.PluginArgs...),
			Include:       sortedUnique(o.Include),
			Exclude:       sortedUnique(o.Exclude),
			ConfigFile:    o.ConfigFile,
			ActiveProfile: o.ActiveProfile,
		}
	}
	joined := func(items []string) string { return strings.Join(items, "\x00") }
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].ActiveProfile != out[j].ActiveProfile {
			return out[i].ActiveProfile < out[j].ActiveProfile
		}
		if out[i].ConfigFile != out[j].ConfigFile {
			return out[i].ConfigFile < out[j].ConfigFile
		}
		if a, b := joined(out[i].PluginArgs), joined(out[j].PluginArgs); a != b {
			return a < b
		}
		if a, b := joined(out[i].Include), joined(out[j].Include); a != b {
			return a < b
		}
		return joined(out[i].Exclude) < joined(out[j].Exclude)
	})
	return out
}

// CanonicalCategoryMapping returns a deterministic (sorted-key, sorted-value)
// copy of a category mapping, so two logically-equal mappings hash equal.
func CanonicalCategoryMapping(mapping map[string][]string) map[string][]string {
	if mapping == nil {
		return nil
	}
	out := make(map[string][]string, len(mapping))
	for k, v := range mapping {
		out[k] = sortedUnique(v)
	}
	return out
}

// mergeEngineOptions folds four option layers in precedence order:
// defaults <- engineSettings <- profile <- pathOverride. Only the first
// three layers participate here; path overrides are applied separately by
// applyPathOverrides since they are scope-dependent (spec §4.C step 5).
func mergeEngineOptions(defaults, engineSettings, profile EngineOptions) EngineOptions {
	merged := EngineOptions{
		PluginArgs:      dedupPreserveOrder(append(append([]string{}, defaults.PluginArgs...), engineSettings.PluginArgs...)),
		ConfigFile:      defaults.ConfigFile,
		Include:         sortedUnique(append(append([]string{}, defaults.Include...), engineSettings.Include...)),
		Exclude:         sortedUnique(append(append([]string{}, defaults.Exclude...), engineSettings.Exclude...)),
		Profile:         defaults.Profile,
		Overrides:       append([]OverrideRecord{}, defaults.Overrides...),
		CategoryMapping: mergeCategoryMapping(defaults.CategoryMapping, engineSettings.CategoryMapping),
	}
	if engineSettings.ConfigFile != "" {
		merged.ConfigFile = engineSettings.ConfigFile
	}

	merged.PluginArgs = dedupPreserveOrder(append(merged.PluginArgs, profile.PluginArgs...))
	merged.Include = sortedUnique(append(merged.Include, profile.Include...))
	merged.Exclude = sortedUnique(append(merged.Exclude, profile.Exclude...))
	merged.CategoryMapping = mergeCategoryMapping(merged.CategoryMapping, profile.CategoryMapping)
	if profile.ConfigFile != "" {
		merged.ConfigFile = profile.ConfigFile
	}
	merged.Profile = profile.Profile

	return merged
}

func mergeCategoryMapping(a, b map[string][]string) map[string][]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string][]string, len(a)+len(b))
	for k, v := range a {
		out[k] = append([]string{}, v...)
	}
	for k, v := range b {
		out[k] = dedupPreserveOrder(append(out[k], v...))
	}
	return out
}
