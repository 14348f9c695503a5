package typewiz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ratchetr/typewiz/pkg/logger"
)

var aggregatorLog = logger.New("typewiz:aggregator")

// Readiness is a folder's or category's strictness bucket (spec §4.F).
type Readiness string

const (
	ReadinessReady   Readiness = "ready"
	ReadinessClose   Readiness = "close"
	ReadinessBlocked Readiness = "blocked"
)

// categoryThresholds are the per-category "close" ceilings from spec §4.F.
// A count above its threshold is "blocked"; zero is always "ready".
var categoryThresholds = map[string]int{
	"unknownChecks":  2,
	"optionalChecks": 2,
	"unusedSymbols":  4,
	"general":        5,
}

const uncodedRuleKey = "<uncoded>"

// DefaultMaxFolderDepth is the default ancestor-folder depth the aggregator
// emits perFolder records for (spec §4.F).
const DefaultMaxFolderDepth = 3

// FoldRun builds one manifest Run from an EngineResult and the category
// mapping its originating engine declared (spec §4.F "per-run folding").
func FoldRun(result EngineResult, opts EngineOptions, categoryMapping map[string][]string, maxDepth int) Run {
	diags := append([]Diagnostic(nil), result.Diagnostics...)
	SortDiagnostics(diags)

	var severity SeverityCounts
	ruleCounts := map[string]int{}
	categoryCounts := map[string]int{}
	perFile := map[string]*FileRecord{}
	perFolder := map[string]*FolderRecord{}

	for _, d := range diags {
		severity.Add(d.Severity)

		rule := d.Rule
		if rule == "" {
			rule = uncodedRuleKey
		}
		ruleCounts[rule]++

		matched := false
		for category, substrings := range categoryMapping {
			for _, sub := range substrings {
				if sub != "" && strings.Contains(d.Rule, sub) {
					categoryCounts[category]++
					matched = true
					break
				}
			}
		}
		if !matched {
			categoryCounts["general"]++
		}

		fr, ok := perFile[d.Path]
		if !ok {
			fr = &FileRecord{Path: d.Path}
			perFile[d.Path] = fr
		}
		fr.Counts.Add(d.Severity)
		fr.Diagnostics = append(fr.Diagnostics, d)

		for _, folder := range ancestorFolders(d.Path, maxDepth) {
			fol, ok := perFolder[folder]
			if !ok {
				fol = &FolderRecord{Path: folder, RuleCounts: map[string]int{}, CategoryCounts: map[string]int{}}
				perFolder[folder] = fol
			}
			fol.Counts.Add(d.Severity)
			fol.RuleCounts[rule]++
			if matched {
				for category, substrings := range categoryMapping {
					for _, sub := range substrings {
						if sub != "" && strings.Contains(d.Rule, sub) {
							fol.CategoryCounts[category]++
							break
						}
					}
				}
			} else {
				fol.CategoryCounts["general"]++
			}
		}
	}

	fileList := make([]FileRecord, 0, len(perFile))
	for _, fr := range perFile {
		fileList = append(fileList, *fr)
	}
	sortFileRecords(fileList)

	folderList := make([]FolderRecord, 0, len(perFolder))
	for _, fol := range perFolder {
		fol.Readiness = classifyFolderReadiness(fol.Counts, fol.CategoryCounts)
		fol.Recommendations = buildRecommendations(fol.Counts, fol.CategoryCounts)
		folderList = append(folderList, *fol)
	}
	sortFolderRecords(folderList)

	aggregatorLog.Printf("folded run %s:%s into %d files, %d folders", result.Engine, result.Mode, len(fileList), len(folderList))

	return Run{
		Tool:       ToolName(result.Engine),
		Mode:       result.Mode,
		Command:    result.Argv,
		ExitCode:   result.ExitCode,
		DurationMs: result.DurationMs,
		Summary: RunSummary{
			Total:             severity.Total(),
			SeverityBreakdown: severity,
			RuleCounts:        ruleCounts,
			CategoryCounts:    categoryCounts,
		},
		PerFile:       fileList,
		PerFolder:     folderList,
		EngineOptions: opts,
		ToolSummary:   result.ToolSummary,
	}
}

// ancestorFolders returns "." plus every ancestor directory of path, up to
// maxDepth levels deep, repo-relative POSIX.
func ancestorFolders(path string, maxDepth int) []string {
	parts := strings.Split(path, "/")
	if len(parts) <= 1 {
		return []string{"."}
	}
	dirs := parts[:len(parts)-1]
	if maxDepth > 0 && len(dirs) > maxDepth {
		dirs = dirs[:maxDepth]
	}
	out := make([]string, 0, len(dirs)+1)
	for i := range dirs {
		out = append(out, strings.Join(dirs[:i+1], "/"))
	}
	out = append(out, ".")
	return out
}

func sortFileRecords(records []FileRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Counts.Errors != b.Counts.Errors {
			return a.Counts.Errors > b.Counts.Errors
		}
		if a.Counts.Warnings != b.Counts.Warnings {
			return a.Counts.Warnings > b.Counts.Warnings
		}
		return a.Path < b.Path
	})
}

func sortFolderRecords(records []FolderRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Counts.Errors != b.Counts.Errors {
			return a.Counts.Errors > b.Counts.Errors
		}
		if a.Counts.Warnings != b.Counts.Warnings {
			return a.Counts.Warnings > b.Counts.Warnings
		}
		return a.Path < b.Path
	})
}

// classifyCategoryReadiness buckets one category's count per spec §4.F.
func classifyCategoryReadiness(category string, count int) Readiness {
	if count == 0 {
		return ReadinessReady
	}
	threshold, ok := categoryThresholds[category]
	if !ok {
		threshold = categoryThresholds["general"]
	}
	if count <= threshold {
		return ReadinessClose
	}
	return ReadinessBlocked
}

// classifyFolderReadiness applies the strict folder rule: ready when total
// diagnostics are zero; close when total <=3 and no non-general category is
// blocked; else blocked (spec §4.F).
func classifyFolderReadiness(counts SeverityCounts, categoryCounts map[string]int) Readiness {
	total := counts.Total()
	if total == 0 {
		return ReadinessReady
	}
	anyBlocked := false
	for category, count := range categoryCounts {
		if category == "general" {
			continue
		}
		if classifyCategoryReadiness(category, count) == ReadinessBlocked {
			anyBlocked = true
			break
		}
	}
	if total <= 3 && !anyBlocked {
		return ReadinessClose
	}
	return ReadinessBlocked
}

// buildRecommendations derives a short actionable list for a folder (spec
// §4.F "derived recommendations list").
func buildRecommendations(counts SeverityCounts, categoryCounts map[string]int) []string {
	if counts.Total() == 0 {
		return []string{"strict-ready"}
	}
	var recs []string
	categories := make([]string, 0, len(categoryCounts))
	for c := range categoryCounts {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, category := range categories {
		count := categoryCounts[category]
		if classifyCategoryReadiness(category, count) == ReadinessBlocked {
			recs = append(recs, fmt.Sprintf("resolve %d %s issues", count, category))
		}
	}
	return recs
}

// BuildManifest assembles the versioned Manifest root from already-folded
// runs, in the insertion order the orchestrator produced them (spec §4.F
// "Output manifest ordering: runs in insertion order").
func BuildManifest(projectRoot, generatedAt string, toolVersions map[string]string, truncated bool, runs []Run) Manifest {
	return Manifest{
		SchemaVersion:        CurrentSchemaVersion,
		GeneratedAt:          generatedAt,
		ProjectRoot:          projectRoot,
		FingerprintTruncated: truncated,
		ToolVersions:         toolVersions,
		Runs:                 runs,
	}
}
