package typewiz

import (
	"reflect"
	"testing"
)

func TestApplyPathOverridesLongestPrefixWins(t *testing.T) {
	base := EngineOptions{PluginArgs: []string{"--base"}}
	overrides := []OverrideRecord{
		{Path: "apps", PluginArgs: []string{"--apps"}, ActiveProfile: "lenient"},
		{Path: "apps/billing", PluginArgs: []string{"--billing"}, ActiveProfile: "strict"},
	}

	merged, profile := applyPathOverrides(base, overrides, []string{"apps/billing/invoice.py"})

	if !reflect.DeepEqual(merged.PluginArgs, []string{"--base", "--apps", "--billing"}) {
		t.Errorf("PluginArgs = %v", merged.PluginArgs)
	}
	if profile != "strict" {
		t.Errorf("active profile = %q, want %q (the deeper override should win)", profile, "strict")
	}
}

func TestApplyPathOverridesSkipsNonMatching(t *testing.T) {
	base := EngineOptions{PluginArgs: []string{"--base"}}
	overrides := []OverrideRecord{
		{Path: "packages/other", PluginArgs: []string{"--other"}},
	}
	merged, profile := applyPathOverrides(base, overrides, []string{"apps/billing/invoice.py"})

	if !reflect.DeepEqual(merged.PluginArgs, []string{"--base"}) {
		t.Errorf("PluginArgs = %v, want unchanged", merged.PluginArgs)
	}
	if profile != "" {
		t.Errorf("active profile = %q, want empty", profile)
	}
}

func TestApplyIncludeExcludeIncludeThenExclude(t *testing.T) {
	all := []string{"apps/a.py", "apps/b.py", "packages/c.py"}
	got := applyIncludeExclude(all, []string{"apps"}, []string{"apps/b.py"})
	want := []string{"apps/a.py"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("applyIncludeExclude() = %v, want %v", got, want)
	}
}

func TestApplyIncludeExcludeNoIncludeMeansAll(t *testing.T) {
	all := []string{"apps/a.py", "packages/c.py"}
	got := applyIncludeExclude(all, nil, nil)
	if !reflect.DeepEqual(got, all) {
		t.Errorf("applyIncludeExclude() = %v, want %v", got, all)
	}
}
