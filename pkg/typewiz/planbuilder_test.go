package typewiz

import (
	"testing"

	"github.com/ratchetr/typewiz/pkg/errcat"
)

func TestBuildPlanMergesAllLayers(t *testing.T) {
	settings := AuditSettings{
		PluginArgs: map[EngineName][]string{"pyright": {"--lib"}},
		EngineSettings: map[EngineName]EngineOptions{
			"pyright": {PluginArgs: []string{"--verbose"}},
		},
		Profiles: map[EngineName]map[string]EngineOptions{
			"pyright": {"strict": {PluginArgs: []string{"--strict"}}},
		},
		DefaultProfile: map[EngineName]string{"pyright": "strict"},
	}

	plan, err := BuildPlan("pyright", ModeCurrent, settings, []string{"src", "tests"})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Profile != "strict" {
		t.Errorf("expected default profile to be selected, got %q", plan.Profile)
	}
	want := []string{"--lib", "--verbose", "--strict"}
	if len(plan.PluginArgs) != len(want) {
		t.Fatalf("expected %v, got %v", want, plan.PluginArgs)
	}
	for i, w := range want {
		if plan.PluginArgs[i] != w {
			t.Errorf("plugin_args[%d]: expected %q, got %q", i, w, plan.PluginArgs[i])
		}
	}
}

func TestBuildPlanUnknownProfileFails(t *testing.T) {
	settings := AuditSettings{
		ActiveProfilesCLI: map[EngineName]string{"pyright": "nonexistent"},
		Profiles:          map[EngineName]map[string]EngineOptions{"pyright": {}},
	}
	_, err := BuildPlan("pyright", ModeCurrent, settings, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
	if !errcat.Is(err, errcat.KindUnknownEngineProfile) {
		t.Errorf("expected KindUnknownEngineProfile, got %v", err)
	}
}

func TestBuildPlanCLIProfileOverridesConfigAndDefault(t *testing.T) {
	settings := AuditSettings{
		Profiles: map[EngineName]map[string]EngineOptions{
			"mypy": {
				"cli-profile":    {},
				"config-profile": {},
				"default":        {},
			},
		},
		ActiveProfilesCLI:    map[EngineName]string{"mypy": "cli-profile"},
		ActiveProfilesConfig: map[EngineName]string{"mypy": "config-profile"},
		DefaultProfile:       map[EngineName]string{"mypy": "default"},
	}
	plan, err := BuildPlan("mypy", ModeTarget, settings, nil)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if plan.Profile != "cli-profile" {
		t.Errorf("expected CLI profile to win, got %q", plan.Profile)
	}
}

func TestBuildPlanAppliesIncludeExcludeToScope(t *testing.T) {
	settings := AuditSettings{
		EngineSettings: map[EngineName]EngineOptions{
			"pyright": {Include: []string{"src"}, Exclude: []string{"src/generated"}},
		},
	}
	plan, err := BuildPlan("pyright", ModeCurrent, settings, []string{"src/a.py", "src/generated/b.py", "docs/c.py"})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	if len(plan.ResolvedScope) != 1 || plan.ResolvedScope[0] != "src/a.py" {
		t.Errorf("expected only src/a.py in scope, got %v", plan.ResolvedScope)
	}
}

func TestBuildPlanAppliesMatchingPathOverride(t *testing.T) {
	settings := AuditSettings{
		PathOverrides: map[EngineName][]OverrideRecord{
			"pyright": {{Path: "src/legacy", PluginArgs: []string{"--lenient"}}},
		},
	}
	plan, err := BuildPlan("pyright", ModeCurrent, settings, []string{"src/legacy/a.py", "src/new/b.py"})
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	found := false
	for _, a := range plan.PluginArgs {
		if a == "--lenient" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected --lenient from matching path override, got %v", plan.PluginArgs)
	}
}
