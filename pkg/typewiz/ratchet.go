package typewiz

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/ratchetr/typewiz/pkg/errcat"
	"github.com/ratchetr/typewiz/pkg/logger"
)

var ratchetLog = logger.New("typewiz:ratchet")

// SignaturePolicy governs how check reacts to an engine_signature mismatch
// (spec §4.H check).
type SignaturePolicy string

const (
	SignatureFail   SignaturePolicy = "fail"
	SignatureWarn   SignaturePolicy = "warn"
	SignatureIgnore SignaturePolicy = "ignore"
)

// EngineSignature records the engine configuration a budget was generated
// against, so check/update can detect configuration drift.
type EngineSignature struct {
	Tool            ToolName      `json:"tool"`
	Mode            Mode          `json:"mode"`
	EngineOptions   EngineOptions `json:"engineOptions"`
	Hash            string        `json:"hash"`
}

// PathBudget is the per-severity allowance for one repo-relative path.
type PathBudget struct {
	Severities map[Severity]int `json:"severities"`
}

// RatchetRunBudget is one run's budget inside a RatchetModel.
type RatchetRunBudget struct {
	Severities      []Severity            `json:"severities"`
	Paths           map[string]PathBudget `json:"paths"`
	Targets         map[Severity]int      `json:"targets"`
	EngineSignature *EngineSignature      `json:"engine_signature,omitempty"`
}

// RatchetModel is the persisted budget file spec §3/§4.H reads and writes.
type RatchetModel struct {
	GeneratedAt  string                      `json:"generatedAt"`
	ManifestPath string                      `json:"manifestPath,omitempty"`
	ProjectRoot  string                      `json:"projectRoot,omitempty"`
	Runs         map[RunId]RatchetRunBudget `json:"runs"`
}

// Violation is a path/severity pair where the manifest's actual count
// exceeds the budget's allowed count.
type Violation struct {
	Path     string
	Severity Severity
	Allowed  int
	Actual   int
}

// Improvement is a path/severity pair where the manifest's actual count is
// strictly below the budget's allowed count.
type Improvement struct {
	Path     string
	Severity Severity
	Allowed  int
	Actual   int
}

// RunCheckResult is one run's outcome inside a RatchetReport.
type RunCheckResult struct {
	RunId             RunId
	Severities        []Severity
	Violations        []Violation
	Improvements      []Improvement
	SignatureMatches  bool
}

// RatchetReport is the output of check (spec §3).
type RatchetReport struct {
	Runs []RunCheckResult
}

// defaultSeverities is the fallback severity list when neither CLI nor
// config specifies one (spec §4.H init).
var defaultSeverities = []Severity{SeverityError, SeverityWarning}

func clamp0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// computeEngineSignature builds the stable digest of a run's engine options
// (spec §4.H "engine_signature = {..., hash=stable_digest_of_payload}").
func computeEngineSignature(tool ToolName, mode Mode, opts EngineOptions) EngineSignature {
	canonicalOpts := EngineOptions{
		PluginArgs:      append([]string(nil), opts.PluginArgs...),
		ConfigFile:      opts.ConfigFile,
		Include:         sortedUnique(opts.Include),
		Exclude:         sortedUnique(opts.Exclude),
		Profile:         opts.Profile,
		Overrides:       CanonicalOverrides(opts.Overrides),
		CategoryMapping: CanonicalCategoryMapping(opts.CategoryMapping),
	}
	payload, _ := json.Marshal(struct {
		Tool    ToolName
		Mode    Mode
		Options EngineOptions
	}{tool, mode, canonicalOpts})
	sum := sha256.Sum256(payload)
	return EngineSignature{Tool: tool, Mode: mode, EngineOptions: canonicalOpts, Hash: hex.EncodeToString(sum[:])}
}

// severityCountsFromFileRecord derives actual per-severity counts for one
// file record, from explicit diagnostics when present, else from Counts
// (spec §4.H check: "derived from explicit diagnostics when present, else
// from the totals fields").
func severityCountsFromFileRecord(fr FileRecord) map[Severity]int {
	if len(fr.Diagnostics) > 0 {
		counts := map[Severity]int{}
		for _, d := range fr.Diagnostics {
			counts[d.Severity]++
		}
		return counts
	}
	return map[Severity]int{
		SeverityError:       fr.Counts.Errors,
		SeverityWarning:     fr.Counts.Warnings,
		SeverityInformation: fr.Counts.Information,
	}
}

// InitRatchet builds a fresh RatchetModel from a manifest (spec §4.H init).
// Every manifest run participates; there is no run filter. severities
// defaults to the built-in list when empty. globalTargets applies to every
// run and perRunTargets[runID] overrides it per severity; targets are
// clamped at zero.
func InitRatchet(manifest Manifest, severities []Severity, globalTargets map[Severity]int, perRunTargets map[RunId]map[Severity]int) RatchetModel {
	if len(severities) == 0 {
		severities = defaultSeverities
	}

	runs := make(map[RunId]RatchetRunBudget, len(manifest.Runs))
	for _, run := range manifest.Runs {
		runID := NewRunId(run.Tool, run.Mode)

		paths := make(map[string]PathBudget, len(run.PerFile))
		for _, fr := range run.PerFile {
			actual := severityCountsFromFileRecord(fr)
			sevMap := make(map[Severity]int, len(severities))
			for _, sev := range severities {
				sevMap[sev] = clamp0(actual[sev])
			}
			paths[fr.Path] = PathBudget{Severities: sevMap}
		}

		targets := make(map[Severity]int, len(severities))
		for sev, n := range globalTargets {
			targets[sev] = clamp0(n)
		}
		for sev, n := range perRunTargets[runID] {
			targets[sev] = clamp0(n)
		}

		sig := computeEngineSignature(run.Tool, run.Mode, run.EngineOptions)
		runs[runID] = RatchetRunBudget{
			Severities:      append([]Severity(nil), severities...),
			Paths:           paths,
			Targets:         targets,
			EngineSignature: &sig,
		}
	}

	return RatchetModel{Runs: runs}
}

// CheckRatchet compares manifest to model, producing a RatchetReport (spec
// §4.H check).
func CheckRatchet(manifest Manifest, model RatchetModel, policy SignaturePolicy) RatchetReport {
	runsByID := make(map[RunId]Run, len(manifest.Runs))
	for _, r := range manifest.Runs {
		runsByID[NewRunId(r.Tool, r.Mode)] = r
	}

	var report RatchetReport
	runIDs := make([]RunId, 0, len(model.Runs))
	for id := range model.Runs {
		runIDs = append(runIDs, id)
	}
	sort.Slice(runIDs, func(i, j int) bool { return runIDs[i] < runIDs[j] })

	for _, runID := range runIDs {
		budget := model.Runs[runID]
		run, ok := runsByID[runID]

		sigMatches := true
		if ok && budget.EngineSignature != nil {
			current := computeEngineSignature(run.Tool, run.Mode, run.EngineOptions)
			sigMatches = current.Hash == budget.EngineSignature.Hash
			if !sigMatches {
				switch policy {
				case SignatureFail:
					ratchetLog.Printf("engine signature mismatch for %s (policy=fail)", runID)
				case SignatureWarn:
					ratchetLog.Printf("engine signature mismatch for %s (policy=warn)", runID)
				}
			}
		}

		result := RunCheckResult{RunId: runID, Severities: budget.Severities, SignatureMatches: sigMatches}
		if !ok {
			report.Runs = append(report.Runs, result)
			continue
		}

		actualByPath := make(map[string]map[Severity]int, len(run.PerFile))
		for _, fr := range run.PerFile {
			actualByPath[fr.Path] = severityCountsFromFileRecord(fr)
		}

		paths := make([]string, 0, len(budget.Paths))
		for p := range budget.Paths {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		for _, path := range paths {
			pathBudget := budget.Paths[path]
			actual := actualByPath[path]
			for _, sev := range budget.Severities {
				allowed := pathBudget.Severities[sev]
				got := actual[sev]
				switch {
				case got > allowed:
					result.Violations = append(result.Violations, Violation{Path: path, Severity: sev, Allowed: allowed, Actual: got})
				case got < allowed:
					result.Improvements = append(result.Improvements, Improvement{Path: path, Severity: sev, Allowed: allowed, Actual: got})
				}
			}
		}

		report.Runs = append(report.Runs, result)
	}

	return report
}

// ExitCode reports the non-zero exit spec §4.H check names: any violation,
// or a signature mismatch under a "fail" policy.
func (r RatchetReport) ExitCode(policy SignaturePolicy) int {
	for _, run := range r.Runs {
		if len(run.Violations) > 0 {
			return 1
		}
		if policy == SignatureFail && !run.SignatureMatches {
			return 1
		}
	}
	return 0
}

// UpdateRatchet moves model to the manifest's current state:
// allowed = max(target, min(actual, old_allowed)) per path/severity, so a
// regression (actual rising above the old allowed value) is clamped back
// down to the old allowed value, while a target above the old allowed value
// raises allowed to the target, since the target is a floor. It also
// refreshes every run's engine_signature (spec §4.H update).
func UpdateRatchet(manifest Manifest, model RatchetModel) RatchetModel {
	updated := RatchetModel{GeneratedAt: model.GeneratedAt, ManifestPath: model.ManifestPath, ProjectRoot: model.ProjectRoot, Runs: map[RunId]RatchetRunBudget{}}

	runsByID := make(map[RunId]Run, len(manifest.Runs))
	for _, r := range manifest.Runs {
		runsByID[NewRunId(r.Tool, r.Mode)] = r
	}

	for runID, budget := range model.Runs {
		run, ok := runsByID[runID]
		newBudget := RatchetRunBudget{Severities: budget.Severities, Targets: budget.Targets, Paths: map[string]PathBudget{}}

		if !ok {
			newBudget.Paths = budget.Paths
			newBudget.EngineSignature = budget.EngineSignature
			updated.Runs[runID] = newBudget
			continue
		}

		actualByPath := make(map[string]map[Severity]int, len(run.PerFile))
		for _, fr := range run.PerFile {
			actualByPath[fr.Path] = severityCountsFromFileRecord(fr)
		}

		allPaths := map[string]struct{}{}
		for p := range budget.Paths {
			allPaths[p] = struct{}{}
		}
		for p := range actualByPath {
			allPaths[p] = struct{}{}
		}

		for path := range allPaths {
			sevMap := map[Severity]int{}
			oldAllowed := budget.Paths[path].Severities
			for _, sev := range budget.Severities {
				target := budget.Targets[sev]
				actual := actualByPath[path][sev]
				capped := actual
				if old, hadOld := oldAllowed[sev]; hadOld && old < capped {
					capped = old
				}
				sevMap[sev] = max(target, capped)
			}
			newBudget.Paths[path] = PathBudget{Severities: sevMap}
		}

		sig := computeEngineSignature(run.Tool, run.Mode, run.EngineOptions)
		newBudget.EngineSignature = &sig
		updated.Runs[runID] = newBudget
	}

	return updated
}

// RebaselineRatchet recomputes only engine_signature from the manifest,
// leaving every budget untouched (spec §4.H rebaseline).
func RebaselineRatchet(manifest Manifest, model RatchetModel) RatchetModel {
	runsByID := make(map[RunId]Run, len(manifest.Runs))
	for _, r := range manifest.Runs {
		runsByID[NewRunId(r.Tool, r.Mode)] = r
	}

	updated := RatchetModel{GeneratedAt: model.GeneratedAt, ManifestPath: model.ManifestPath, ProjectRoot: model.ProjectRoot, Runs: map[RunId]RatchetRunBudget{}}
	for runID, budget := range model.Runs {
		newBudget := budget
		if run, ok := runsByID[runID]; ok {
			sig := computeEngineSignature(run.Tool, run.Mode, run.EngineOptions)
			newBudget.EngineSignature = &sig
		}
		updated.Runs[runID] = newBudget
	}
	return updated
}

// ParseTargets parses target entries of the form "severity=N" (global) and
// "tool:mode.severity=N" (per-run), per spec §4.H "Target parsing". Blank
// keys are rejected.
func ParseTargets(entries []string) (global map[Severity]int, perRun map[RunId]map[Severity]int, err error) {
	global = map[Severity]int{}
	perRun = map[RunId]map[Severity]int{}

	for _, entry := range entries {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, nil, errcat.New(errcat.KindRatchetModelValidation, "ratchet", "blank or malformed target key").
				WithContext("entry", entry)
		}
		key := strings.TrimSpace(parts[0])
		n, convErr := strconv.Atoi(strings.TrimSpace(parts[1]))
		if convErr != nil {
			return nil, nil, errcat.Wrap(errcat.KindRatchetModelValidation, "ratchet", "target value is not an integer", convErr).
				WithContext("entry", entry)
		}
		n = clamp0(n)

		if idx := strings.Index(key, "."); idx >= 0 && strings.Contains(key[:idx], ":") {
			runPart := key[:idx]
			sev := ParseSeverity(key[idx+1:])
			if perRun[RunId(runPart)] == nil {
				perRun[RunId(runPart)] = map[Severity]int{}
			}
			perRun[RunId(runPart)][sev] = n
			continue
		}
		global[ParseSeverity(key)] = n
	}
	return global, perRun, nil
}

