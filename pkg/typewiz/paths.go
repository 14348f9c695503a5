package typewiz

import (
	"os"
	"path/filepath"

	"github.com/ratchetr/typewiz/pkg/logger"
)

var pathsLog = logger.New("typewiz:paths")

// projectMarkers are the files whose presence in a directory identifies it
// as a repo root candidate, checked in this order (spec §4.A).
var projectMarkers = []string{"ratchetr.toml", ".ratchetr.toml", "pyproject.toml"}

// PathOverrides carries the CLI-supplied values for the fields ResolvePaths
// resolves. A zero value means "not supplied on the CLI".
type PathOverrides struct {
	RepoRoot     string
	ToolHome     string
	CacheDir     string
	LogDir       string
	ManifestPath string
	DashboardPath string
	ConfigPath   string
}

// ConfigPaths carries the values an external TOML config supplied for the
// same fields, populated before ResolvePaths is called.
type ConfigPaths struct {
	ToolHome      string
	CacheDir      string
	LogDir        string
	ManifestPath  string
	DashboardPath string
	ConfigPath    string
}

// ResolvedPaths is the output of the Path & Project Resolver (component A).
type ResolvedPaths struct {
	RepoRoot        string
	ToolHome        string
	CacheDir        string
	LogDir          string
	ManifestPath    string
	DashboardPath   string
	ConfigPath      string
	RootWasFallback bool
}

// FindRepoRoot walks upward from startDir looking for a directory containing
// one of projectMarkers. When none is found, it falls back to startDir
// itself (logged) per spec §4.A.
func FindRepoRoot(startDir string) (root string, wasFallback bool) {
	dir := startDir
	for {
		for _, marker := range projectMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, false
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	pathsLog.Printf("no project marker found above %s, falling back to current directory", startDir)
	return startDir, true
}

func resolveOne(cliValue, envVar, configValue, def string) string {
	if cliValue != "" {
		return cliValue
	}
	if env := os.Getenv(envVar); env != "" {
		return env
	}
	if configValue != "" {
		return configValue
	}
	return def
}

// ResolvePaths applies the CLI > env > config > default precedence to every
// path field (spec §4.A), rooted at the resolved repo_root.
func ResolvePaths(startDir string, cli PathOverrides, cfg ConfigPaths) ResolvedPaths {
	repoRoot := cli.RepoRoot
	wasFallback := false
	if repoRoot == "" {
		if env := os.Getenv("RATCHETR_ROOT"); env != "" {
			repoRoot = env
		} else {
			repoRoot, wasFallback = FindRepoRoot(startDir)
		}
	}

	toolHome := resolveOne(cli.ToolHome, "RATCHETR_DIR", cfg.ToolHome, filepath.Join(repoRoot, ".ratchetr"))
	cacheDir := resolveOne(cli.CacheDir, "RATCHETR_CACHE_DIR", cfg.CacheDir, filepath.Join(toolHome, ".cache"))
	logDir := resolveOne(cli.LogDir, "RATCHETR_LOG_DIR", cfg.LogDir, filepath.Join(toolHome, "logs"))
	manifestPath := resolveOne(cli.ManifestPath, "RATCHETR_MANIFEST", cfg.ManifestPath, filepath.Join(toolHome, "manifest.json"))
	dashboardPath := resolveOne(cli.DashboardPath, "RATCHETR_DASHBOARD_PATH", cfg.DashboardPath, filepath.Join(toolHome, "dashboard.html"))
	configPath := resolveOne(cli.ConfigPath, "RATCHETR_CONFIG", cfg.ConfigPath, "")

	return ResolvedPaths{
		RepoRoot:        repoRoot,
		ToolHome:        toolHome,
		CacheDir:        cacheDir,
		LogDir:          logDir,
		ManifestPath:    manifestPath,
		DashboardPath:   dashboardPath,
		ConfigPath:      configPath,
		RootWasFallback: wasFallback,
	}
}

// ToRepoRelativePOSIX normalises an absolute or relative path to a
// repo-relative, forward-slash path. Paths outside repoRoot are returned
// as their cleaned absolute form (spec §4.D step 6 fallback).
func ToRepoRelativePOSIX(repoRoot, path string) string {
	abs := path
	if !filepath.IsAbs(path) {
		abs = filepath.Join(repoRoot, path)
	}
	rel, err := filepath.Rel(repoRoot, abs)
	if err != nil || rel == ".." || (len(rel) >= 3 && rel[:3] == "../") {
		return filepath.ToSlash(filepath.Clean(abs))
	}
	return filepath.ToSlash(rel)
}
