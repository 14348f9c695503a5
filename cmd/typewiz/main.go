// Command typewiz is a thin wiring layer over pkg/typewiz: CLI argument
// parsing, TOML config loading, and manifest/dashboard rendering remain
// external concerns (spec's core boundary) — this entry point only
// resolves paths, builds a registry, and dispatches to the ratchet
// operations.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ratchetr/typewiz/pkg/gitutil"
	"github.com/ratchetr/typewiz/pkg/logger"
	"github.com/ratchetr/typewiz/pkg/typewiz"
	"github.com/spf13/cobra"
)

var version = "dev"

var mainLog = logger.New("typewiz:cmd")

// pluginCandidates is the extension point for entry-point-style third-party
// engines (spec §4.C): a plugin package registers its constructor here from
// an init() in a blank import, the way database/sql drivers register
// themselves against a driver name. Empty by default since this module
// ships no third-party engine plugins of its own.
var pluginCandidates = map[string]func() typewiz.BaseEngine{}

// RegisterPlugin is called by a plugin package's init() to add itself to
// pluginCandidates before main() runs.
func RegisterPlugin(module string, construct func() typewiz.BaseEngine) {
	pluginCandidates[module] = construct
}

var rootCmd = &cobra.Command{
	Use:     "typewiz",
	Short:   "Typing-audit orchestrator for Python codebases",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().String("repo-root", "", "override the discovered repository root")
	rootCmd.PersistentFlags().String("manifest", "", "path to the manifest file")
	rootCmd.PersistentFlags().String("ratchet", "", "path to the ratchet budget file")

	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newRatchetInitCmd())
	rootCmd.AddCommand(newRatchetCheckCmd())
	rootCmd.AddCommand(newRatchetUpdateCmd())
	rootCmd.AddCommand(newRatchetRebaselineCmd())
}

// resolvedPaths mirrors spec §4.A's CLI > env > config > default precedence,
// with one CLI-only refinement: when no marker file is found anywhere above
// the working directory, prefer the enclosing git worktree's top level (if
// any) over the working directory itself, the way a developer expects "run
// from any subdirectory of the checkout" to behave.
func resolvedPaths(cmd *cobra.Command) typewiz.ResolvedPaths {
	repoRootFlag, _ := cmd.Flags().GetString("repo-root")
	manifestFlag, _ := cmd.Flags().GetString("manifest")
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	resolved := typewiz.ResolvePaths(wd, typewiz.PathOverrides{RepoRoot: repoRootFlag, ManifestPath: manifestFlag}, typewiz.ConfigPaths{})
	if repoRootFlag == "" && resolved.RootWasFallback && gitutil.IsRepo() {
		if gitRoot, err := gitutil.FindRoot(); err == nil && gitRoot != "" && gitRoot != resolved.RepoRoot {
			mainLog.Printf("no project marker found, using git root %s instead of %s", gitRoot, resolved.RepoRoot)
			resolved = typewiz.ResolvePaths(wd, typewiz.PathOverrides{RepoRoot: gitRoot, ManifestPath: manifestFlag}, typewiz.ConfigPaths{})
		}
	}
	return resolved
}

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Run registered engines and write a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resolvedPaths(cmd)

			registry := typewiz.NewRegistry()
			typewiz.RegisterBuiltins(registry)
			typewiz.DiscoverPlugins(registry, pluginCandidates)
			cache := typewiz.NewCache(paths.CacheDir)
			orch := typewiz.NewOrchestrator(registry, cache)

			fpResult, err := typewiz.Fingerprint(typewiz.FingerprintOptions{
				RepoRoot:     paths.RepoRoot,
				IncludeRoots: []string{"."},
			})
			if err != nil {
				return fmt.Errorf("fingerprinting failed: %w", err)
			}

			var runs []typewiz.Run
			for _, name := range registry.Order() {
				engine, _ := registry.Get(name)
				for _, mode := range []typewiz.Mode{typewiz.ModeCurrent, typewiz.ModeTarget} {
					result, err := orch.Run(cmd.Context(), typewiz.RunRequest{
						Engine:       name,
						Mode:         mode,
						Settings:     typewiz.AuditSettings{RepoRoot: paths.RepoRoot},
						ScannedPaths: []string{"."},
						FullScope:    fingerprintPaths(fpResult),
						Fingerprints: fpResult.Fingerprints,
					})
					if err != nil {
						mainLog.Printf("engine %s:%s failed: %v", name, mode, err)
						continue
					}
					runs = append(runs, typewiz.FoldRun(result, typewiz.EngineOptions{}, engine.CategoryMapping(), typewiz.DefaultMaxFolderDepth))
				}
			}

			manifest := typewiz.BuildManifest(paths.RepoRoot, time.Now().UTC().Format(time.RFC3339), map[string]string{}, fpResult.Truncated, runs)
			return writeManifest(paths.ManifestPath, manifest)
		},
	}
}

func fingerprintPaths(r typewiz.FingerprintResult) []string {
	paths := make([]string, 0, len(r.Fingerprints))
	for p := range r.Fingerprints {
		paths = append(paths, p)
	}
	return paths
}

func writeManifest(path string, manifest typewiz.Manifest) error {
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(parentDir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	return os.WriteFile(path, payload, 0o644)
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func loadManifest(path string) (typewiz.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return typewiz.Manifest{}, err
	}
	var m typewiz.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return typewiz.Manifest{}, err
	}
	return m, nil
}

func newRatchetInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "ratchet-init",
		Short: "Create a fresh ratchet budget from a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resolvedPaths(cmd)
			manifest, err := loadManifest(paths.ManifestPath)
			if err != nil {
				return err
			}
			model := typewiz.InitRatchet(manifest, nil, nil, nil)
			model.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
			model.ManifestPath = paths.ManifestPath
			model.ProjectRoot = paths.RepoRoot

			ratchetPath, _ := cmd.Flags().GetString("ratchet")
			if ratchetPath == "" {
				ratchetPath = paths.ToolHome + "/ratchet.json"
			}
			store := typewiz.NewRatchetStore(ratchetPath)
			return store.SaveInit(context.Background(), model, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing ratchet file")
	return cmd
}

func newRatchetCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratchet-check",
		Short: "Compare a manifest against the ratchet budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resolvedPaths(cmd)
			manifest, err := loadManifest(paths.ManifestPath)
			if err != nil {
				return err
			}
			ratchetPath, _ := cmd.Flags().GetString("ratchet")
			store := typewiz.NewRatchetStore(ratchetPath)
			model, err := store.Load()
			if err != nil {
				return err
			}
			report := typewiz.CheckRatchet(manifest, model, typewiz.SignatureWarn)
			payload, _ := json.MarshalIndent(report, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			if code := report.ExitCode(typewiz.SignatureWarn); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	return cmd
}

func newRatchetUpdateCmd() *cobra.Command {
	var force, dryRun bool
	var output string
	cmd := &cobra.Command{
		Use:   "ratchet-update",
		Short: "Tighten the ratchet budget to the current manifest state",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resolvedPaths(cmd)
			manifest, err := loadManifest(paths.ManifestPath)
			if err != nil {
				return err
			}
			ratchetPath, _ := cmd.Flags().GetString("ratchet")
			store := typewiz.NewRatchetStore(ratchetPath)
			model, err := store.Load()
			if err != nil {
				return err
			}
			updated := typewiz.UpdateRatchet(manifest, model)
			updated.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
			return store.SaveUpdate(context.Background(), updated, force, dryRun, output)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing ratchet file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute but do not persist the update")
	cmd.Flags().StringVar(&output, "output", "", "write to a different path than the input ratchet file")
	return cmd
}

func newRatchetRebaselineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ratchet-rebaseline",
		Short: "Recompute engine signatures without touching budgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := resolvedPaths(cmd)
			manifest, err := loadManifest(paths.ManifestPath)
			if err != nil {
				return err
			}
			ratchetPath, _ := cmd.Flags().GetString("ratchet")
			store := typewiz.NewRatchetStore(ratchetPath)
			model, err := store.Load()
			if err != nil {
				return err
			}
			rebaselined := typewiz.RebaselineRatchet(manifest, model)
			rebaselined.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
			return store.SaveRebaseline(context.Background(), rebaselined)
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
