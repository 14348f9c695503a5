package typewiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/ratchetr/typewiz/pkg/errcat"
	"github.com/ratchetr/typewiz/pkg/logger"
)

var pyrightLog = logger.New("typewiz:engine:pyright")

// pyrightAllowedExecutables is the subprocess allow-list for this engine
// (spec §4.D "Subprocess contract": first argv element must be allow-listed).
var pyrightAllowedExecutables = map[string]struct{}{
	"pyright": {},
}

// pyrightOutput mirrors pyright's `--outputjson` top-level shape.
type pyrightOutput struct {
	Version            string              `json:"version"`
	GeneralDiagnostics []pyrightDiagnostic `json:"generalDiagnostics"`
	Summary            pyrightSummary      `json:"summary"`
}

type pyrightDiagnostic struct {
	File     string `json:"file"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Rule     string `json:"rule"`
	Range    struct {
		Start struct {
			Line      int `json:"line"`
			Character int `json:"character"`
		} `json:"start"`
	} `json:"range"`
}

type pyrightSummary struct {
	ErrorCount       int `json:"errorCount"`
	WarningCount     int `json:"warningCount"`
	InformationCount int `json:"informationCount"`
}

type pyrightEngine struct{}

// NewPyrightEngine returns the builtin pyright BaseEngine.
func NewPyrightEngine() BaseEngine {
	return pyrightEngine{}
}

func (pyrightEngine) Name() EngineName { return "pyright" }

func (pyrightEngine) CategoryMapping() map[string][]string {
	return map[string][]string{
		"unknownChecks":  {"reportUnknown", "reportMissingTypeStubs"},
		"optionalChecks": {"reportOptionalMemberAccess", "reportOptionalSubscript", "reportOptionalOperand"},
		"unusedSymbols":  {"reportUnusedImport", "reportUnusedVariable", "reportUnusedClass", "reportUnusedFunction"},
	}
}

func (pyrightEngine) FingerprintTargets(rc RunContext, paths []string) []string {
	var extra []string
	if rc.Options.ConfigFile != "" {
		extra = append(extra, rc.Options.ConfigFile)
	}
	return extra
}

func (e pyrightEngine) Run(rc RunContext, paths []string) (EngineResult, error) {
	argv := e.buildArgv(rc, paths)
	if len(argv) == 0 {
		return EngineResult{}, errcat.New(errcat.KindSubprocessInvocation, "engine:pyright", "refusing to build an empty argv")
	}
	if _, ok := pyrightAllowedExecutables[argv[0]]; !ok {
		return EngineResult{}, errcat.New(errcat.KindSubprocessInvocation, "engine:pyright", "executable is not in the allow-list").
			WithContext("executable", argv[0])
	}

	pyrightLog.Printf("invoking pyright: %v", argv)
	cmd := exec.CommandContext(rc.Ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return EngineResult{}, errcat.Wrap(errcat.KindSubprocessInvocation, "engine:pyright", "failed to execute pyright", runErr)
		}
	}

	diags, summary, parseErr := parsePyrightOutput(stdout.Bytes())
	if parseErr != nil {
		return EngineResult{}, errcat.Wrap(errcat.KindEngineOutputParse, "engine:pyright", "failed to parse pyright JSON output", parseErr)
	}

	for i := range diags {
		diags[i].Path = ToRepoRelativePOSIX(rc.RepoRoot, diags[i].Path)
	}
	SortDiagnostics(diags)

	if summary != nil {
		var counts SeverityCounts
		for _, d := range diags {
			counts.Add(d.Severity)
		}
		if counts.Errors != summary.Errors || counts.Warnings != summary.Warnings || counts.Information != summary.Information {
			pyrightLog.Printw(logger.LevelWarning, "parsed severity totals disagree with tool-reported summary", logger.Fields{
				Component: "engine:pyright",
				Tool:      "pyright",
				Mode:      string(rc.Mode),
				Details:   fmt.Sprintf("parsed=%+v reported=%+v", counts, summary),
			})
		}
	}

	return EngineResult{
		Engine:      "pyright",
		Mode:        rc.Mode,
		Argv:        argv,
		ExitCode:    exitCode,
		DurationMs:  duration.Milliseconds(),
		Diagnostics: diags,
		ToolSummary: summary,
	}, nil
}

func (pyrightEngine) buildArgv(rc RunContext, paths []string) []string {
	argv := []string{"pyright", "--outputjson"}
	if rc.Options.ConfigFile != "" {
		argv = append(argv, "--project", rc.Options.ConfigFile)
	}
	argv = append(argv, rc.Options.PluginArgs...)
	argv = append(argv, paths...)
	return argv
}

func parsePyrightOutput(raw []byte) ([]Diagnostic, *ToolSummary, error) {
	var parsed pyrightOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, nil, err
	}

	diags := make([]Diagnostic, 0, len(parsed.GeneralDiagnostics))
	for _, d := range parsed.GeneralDiagnostics {
		diags = append(diags, Diagnostic{
			Tool:     "pyright",
			Severity: ParseSeverity(d.Severity),
			Path:     d.File,
			Line:     d.Range.Start.Line + 1,
			Column:   d.Range.Start.Character + 1,
			Rule:     d.Rule,
			Message:  d.Message,
			RawPayload: d,
		})
	}

	summary := &ToolSummary{
		Errors:      parsed.Summary.ErrorCount,
		Warnings:    parsed.Summary.WarningCount,
		Information: parsed.Summary.InformationCount,
		Total:       parsed.Summary.ErrorCount + parsed.Summary.WarningCount + parsed.Summary.InformationCount,
	}
	return diags, summary, nil
}
