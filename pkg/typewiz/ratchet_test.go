package typewiz

import "testing"

func sampleManifest() Manifest {
	return Manifest{
		Runs: []Run{
			{
				Tool: "pyright",
				Mode: ModeCurrent,
				PerFile: []FileRecord{
					{Path: "src/a.py", Counts: SeverityCounts{Errors: 2, Warnings: 1}},
					{Path: "src/b.py", Counts: SeverityCounts{Errors: 0}},
				},
				EngineOptions: EngineOptions{PluginArgs: []string{"--strict"}},
			},
		},
	}
}

func TestInitRatchetRecordsCurrentCounts(t *testing.T) {
	model := InitRatchet(sampleManifest(), nil, nil, nil)
	budget := model.Runs["pyright:current"]
	if budget.Paths["src/a.py"].Severities[SeverityError] != 2 {
		t.Errorf("expected 2 errors recorded for src/a.py, got %+v", budget.Paths["src/a.py"])
	}
	if budget.EngineSignature == nil || budget.EngineSignature.Hash == "" {
		t.Error("expected a non-empty engine signature hash")
	}
}

func TestInitRatchetDefaultsSeveritiesToErrorAndWarning(t *testing.T) {
	model := InitRatchet(sampleManifest(), nil, nil, nil)
	budget := model.Runs["pyright:current"]
	if len(budget.Severities) != 2 {
		t.Errorf("expected default severities [error warning], got %v", budget.Severities)
	}
}

func TestCheckRatchetDetectsViolation(t *testing.T) {
	manifest := sampleManifest()
	model := InitRatchet(manifest, nil, nil, nil)

	// The manifest now regresses: src/a.py gains an extra error.
	manifest.Runs[0].PerFile[0].Counts.Errors = 3

	report := CheckRatchet(manifest, model, SignatureWarn)
	if len(report.Runs) != 1 {
		t.Fatalf("expected 1 run result, got %d", len(report.Runs))
	}
	violations := report.Runs[0].Violations
	if len(violations) != 1 || violations[0].Path != "src/a.py" || violations[0].Actual != 3 {
		t.Errorf("expected a violation for src/a.py with actual=3, got %+v", violations)
	}
	if report.ExitCode(SignatureWarn) != 1 {
		t.Error("expected non-zero exit code when a violation exists")
	}
}

func TestCheckRatchetDetectsImprovement(t *testing.T) {
	manifest := sampleManifest()
	model := InitRatchet(manifest, nil, nil, nil)

	manifest.Runs[0].PerFile[0].Counts.Errors = 0

	report := CheckRatchet(manifest, model, SignatureWarn)
	improvements := report.Runs[0].Improvements
	if len(improvements) != 1 || improvements[0].Path != "src/a.py" {
		t.Errorf("expected an improvement for src/a.py, got %+v", improvements)
	}
}

func TestCheckRatchetSignatureMismatchUnderFailPolicy(t *testing.T) {
	manifest := sampleManifest()
	model := InitRatchet(manifest, nil, nil, nil)

	manifest.Runs[0].EngineOptions.PluginArgs = []string{"--lenient"}

	report := CheckRatchet(manifest, model, SignatureFail)
	if report.Runs[0].SignatureMatches {
		t.Error("expected signature mismatch after engine options changed")
	}
	if report.ExitCode(SignatureFail) != 1 {
		t.Error("expected non-zero exit under fail policy with a signature mismatch")
	}
	if report.ExitCode(SignatureIgnore) != 0 {
		t.Error("expected zero exit under ignore policy despite the mismatch")
	}
}

func TestUpdateRatchetTightensMonotonically(t *testing.T) {
	manifest := sampleManifest()
	model := InitRatchet(manifest, nil, map[Severity]int{SeverityError: 5}, nil)

	// Actual improves below the target; the target is a floor, so allowed
	// rises from the prior 2 to the target 5 rather than dropping to 1.
	manifest.Runs[0].PerFile[0].Counts.Errors = 1
	updated := UpdateRatchet(manifest, model)
	allowed := updated.Runs["pyright:current"].Paths["src/a.py"].Severities[SeverityError]
	if allowed != 5 {
		t.Errorf("expected allowed to stay at target 5 despite lower actual, got %d", allowed)
	}

	// Actual regresses above both the target and the prior allowed value;
	// allowed must never loosen, so it stays capped at the prior allowed (5)
	// rather than rising to the regressed actual (8).
	manifest.Runs[0].PerFile[0].Counts.Errors = 8
	updated2 := UpdateRatchet(manifest, updated)
	allowed2 := updated2.Runs["pyright:current"].Paths["src/a.py"].Severities[SeverityError]
	if allowed2 != 5 {
		t.Errorf("expected allowed to stay capped at the prior allowed 5 despite regressed actual 8, got %d", allowed2)
	}
}

func TestRebaselineRatchetLeavesBudgetsUntouched(t *testing.T) {
	manifest := sampleManifest()
	model := InitRatchet(manifest, nil, nil, nil)
	originalAllowed := model.Runs["pyright:current"].Paths["src/a.py"].Severities[SeverityError]

	manifest.Runs[0].PerFile[0].Counts.Errors = 99
	manifest.Runs[0].EngineOptions.PluginArgs = []string{"--new-flag"}

	rebaselined := RebaselineRatchet(manifest, model)
	allowed := rebaselined.Runs["pyright:current"].Paths["src/a.py"].Severities[SeverityError]
	if allowed != originalAllowed {
		t.Errorf("rebaseline should not touch budgets, got %d want %d", allowed, originalAllowed)
	}
	if rebaselined.Runs["pyright:current"].EngineSignature.Hash == model.Runs["pyright:current"].EngineSignature.Hash {
		t.Error("rebaseline should refresh the engine signature hash")
	}
}

func TestParseTargetsGlobalAndPerRun(t *testing.T) {
	global, perRun, err := ParseTargets([]string{"error=3", "pyright:current.warning=5"})
	if err != nil {
		t.Fatalf("ParseTargets: %v", err)
	}
	if global[SeverityError] != 3 {
		t.Errorf("expected global error target 3, got %d", global[SeverityError])
	}
	if perRun["pyright:current"][SeverityWarning] != 5 {
		t.Errorf("expected per-run warning target 5, got %v", perRun)
	}
}

func TestParseTargetsRejectsBlankKey(t *testing.T) {
	_, _, err := ParseTargets([]string{"=5"})
	if err == nil {
		t.Fatal("expected an error for a blank target key")
	}
}

func TestParseTargetsClampsNegativeToZero(t *testing.T) {
	global, _, err := ParseTargets([]string{"error=-5"})
	if err != nil {
		t.Fatalf("ParseTargets: %v", err)
	}
	if global[SeverityError] != 0 {
		t.Errorf("expected negative target clamped to 0, got %d", global[SeverityError])
	}
}
