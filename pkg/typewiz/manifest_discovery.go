package typewiz

import (
	"os"
	"path/filepath"

	"github.com/ratchetr/typewiz/pkg/errcat"
	"github.com/ratchetr/typewiz/pkg/logger"
)

var manifestDiscoveryLog = logger.New("typewiz:manifest_discovery")

// conventionalManifestNames are probed, in order, under repo_root when no
// CLI/env/config path is supplied (spec §4.A manifest discovery).
var conventionalManifestNames = []string{
	"manifest.json",
	".ratchetr/manifest.json",
	"ratchetr-manifest.json",
}

// ManifestDiscoveryResult reports how a manifest path was (or was not)
// resolved, keeping every attempted candidate for diagnostics.
type ManifestDiscoveryResult struct {
	ChosenPath      string
	Attempted       []string
	ConventionMatches []string
	Ambiguity       string
}

// DiscoverManifest probes the CLI path, env path, config path, then the
// conventional names under repoRoot, in that order (spec §4.A). Returns a
// *errcat.Error with kind ManifestNotFound or AmbiguousManifest on failure.
func DiscoverManifest(repoRoot, cliPath, envPath, configPath string) (ManifestDiscoveryResult, error) {
	var attempted []string

	for _, candidate := range []string{cliPath, envPath, configPath} {
		if candidate == "" {
			continue
		}
		attempted = append(attempted, candidate)
		if _, err := os.Stat(candidate); err == nil {
			return ManifestDiscoveryResult{ChosenPath: candidate, Attempted: attempted}, nil
		}
	}

	var conventionMatches []string
	for _, name := range conventionalManifestNames {
		candidate := filepath.Join(repoRoot, filepath.FromSlash(name))
		attempted = append(attempted, candidate)
		if _, err := os.Stat(candidate); err == nil {
			conventionMatches = append(conventionMatches, candidate)
		}
	}

	if len(conventionMatches) > 1 {
		manifestDiscoveryLog.Printf("ambiguous manifest: %d conventional candidates found", len(conventionMatches))
		return ManifestDiscoveryResult{Attempted: attempted, ConventionMatches: conventionMatches, Ambiguity: "multiple conventional manifest paths exist"},
			errcat.New(errcat.KindAmbiguousManifest, "manifest_discovery", "multiple conventional manifest candidates found").
				WithContext("candidates", fmtJoin(conventionMatches))
	}

	if len(conventionMatches) == 1 {
		return ManifestDiscoveryResult{ChosenPath: conventionMatches[0], Attempted: attempted, ConventionMatches: conventionMatches}, nil
	}

	manifestDiscoveryLog.Printf("no manifest found after probing %d candidates", len(attempted))
	return ManifestDiscoveryResult{Attempted: attempted},
		errcat.New(errcat.KindManifestNotFound, "manifest_discovery", "no manifest found at any candidate path")
}

func fmtJoin(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}
