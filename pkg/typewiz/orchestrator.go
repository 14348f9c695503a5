package typewiz

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ratchetr/typewiz/pkg/logger"
)

var orchestratorLog = logger.New("typewiz:orchestrator")

// repoMarkerFiles are checked for existence and, when present, folded into
// every engine's fingerprint targets (spec §4.D step 3 "repo marker files
// that exist").
var repoMarkerFiles = []string{"pyrightconfig.json", "mypy.ini", "setup.cfg", "pyproject.toml"}

// Orchestrator runs each active (engine, mode) pair sequentially to
// completion (spec §4.D, §5 "single-threaded cooperative dispatcher").
type Orchestrator struct {
	Registry *Registry
	Cache    *Cache
	Versions *versionCache
}

// NewOrchestrator wires a registry and cache into a ready-to-use
// Orchestrator, using the process-wide tool version cache.
func NewOrchestrator(registry *Registry, cache *Cache) *Orchestrator {
	return &Orchestrator{Registry: registry, Cache: cache, Versions: globalVersionCache}
}

// RunRequest is one (engine, mode) unit of work for the orchestrator.
type RunRequest struct {
	Engine       EngineName
	Mode         Mode
	Settings     AuditSettings
	ScannedPaths []string // already-fingerprinted current-mode scope
	FullScope    []string // normalised full include set, used for target mode
	Fingerprints map[string]FileFingerprint
}

// Run resolves req's EnginePlan, checks the cache, and on a miss invokes the
// engine's subprocess and stores the result (spec §4.D steps 1-8).
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (EngineResult, error) {
	engine, ok := o.Registry.Get(req.Engine)
	if !ok {
		orchestratorLog.Printf("engine %q is not registered, skipping", req.Engine)
		return EngineResult{}, nil
	}

	scanned := req.ScannedPaths
	if req.Mode == ModeTarget {
		scanned = req.FullScope
	}

	plan, err := BuildPlan(req.Engine, req.Mode, req.Settings, scanned)
	if err != nil {
		return EngineResult{}, err
	}

	rc := RunContext{Ctx: ctx, RepoRoot: req.Settings.RepoRoot, Mode: req.Mode, Options: EngineOptions{
		PluginArgs:      plan.PluginArgs,
		ConfigFile:      plan.ConfigFile,
		Include:         plan.Include,
		Exclude:         plan.Exclude,
		Profile:         plan.Profile,
		Overrides:       plan.Overrides,
		CategoryMapping: plan.CategoryMapping,
	}}

	fingerprintTargets := o.fingerprintTargets(rc, engine, plan.ResolvedScope)

	version, verErr := o.Versions.ToolVersion(ctx, req.Engine)
	if verErr != nil {
		orchestratorLog.Printf("could not detect version for %s, proceeding without it: %v", req.Engine, verErr)
	}

	cacheKey := BuildCacheKey(plan, version, fingerprintTargets)

	if o.Cache != nil {
		if hit, ok := o.Cache.Lookup(ctx, cacheKey, req.Fingerprints); ok {
			orchestratorLog.Printf("cache hit for %s:%s", req.Engine, req.Mode)
			return hit, nil
		}
	}

	result, err := engine.Run(rc, plan.ResolvedScope)
	if err != nil {
		return EngineResult{}, err
	}

	if warnings := result.Validate(); len(warnings) > 0 {
		orchestratorLog.Printf("engine %s:%s produced invariant warnings: %v", req.Engine, req.Mode, warnings)
	}

	if o.Cache != nil {
		storeErr := o.Cache.Store(ctx, cacheKey, CacheEntry{
			Command:         result.Argv,
			ExitCode:        result.ExitCode,
			DurationMs:      result.DurationMs,
			Diagnostics:     result.Diagnostics,
			FileHashes:      req.Fingerprints,
			ToolSummary:     result.ToolSummary,
			Profile:         plan.Profile,
			ConfigFile:      plan.ConfigFile,
			PluginArgs:      plan.PluginArgs,
			Include:         plan.Include,
			Exclude:         plan.Exclude,
			Overrides:       plan.Overrides,
			CategoryMapping: plan.CategoryMapping,
		})
		if storeErr != nil {
			orchestratorLog.Printf("failed to store cache entry for %s:%s: %v", req.Engine, req.Mode, storeErr)
		}
	}

	return result, nil
}

// fingerprintTargets unions the scanned fingerprinted files with whatever
// the engine declares as extra targets and any existing repo marker files
// (spec §4.D step 3).
func (o *Orchestrator) fingerprintTargets(rc RunContext, engine BaseEngine, scope []string) []string {
	targets := append([]string(nil), scope...)
	targets = append(targets, engine.FingerprintTargets(rc, scope)...)
	for _, marker := range repoMarkerFiles {
		if _, err := os.Stat(filepath.Join(rc.RepoRoot, marker)); err == nil {
			targets = append(targets, marker)
		}
	}
	return sortedUnique(targets)
}
