package typewiz

import (
	"bufio"
	"bytes"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ratchetr/typewiz/pkg/errcat"
	"github.com/ratchetr/typewiz/pkg/logger"
)

var mypyLog = logger.New("typewiz:engine:mypy")

var mypyAllowedExecutables = map[string]struct{}{
	"mypy": {},
}

// mypyLineRe implements the fixed regex from spec §4.D step 6:
// ^(path):(line):(col)?: (severity): (message)( \[code\])?$
var mypyLineRe = regexp.MustCompile(`^(.+?):(\d+):(\d+)?:?\s*(error|warning|note):\s*(.*?)(?:\s*\[([a-zA-Z0-9_-]+)\])?$`)

type mypyEngine struct{}

// NewMypyEngine returns the builtin mypy BaseEngine.
func NewMypyEngine() BaseEngine {
	return mypyEngine{}
}

func (mypyEngine) Name() EngineName { return "mypy" }

func (mypyEngine) CategoryMapping() map[string][]string {
	return map[string][]string{
		"unknownChecks":  {"no-any-return", "no-untyped-def", "type-arg"},
		"optionalChecks": {"union-attr", "optional"},
		"general":        {"assignment", "arg-type", "call-arg"},
	}
}

func (mypyEngine) FingerprintTargets(rc RunContext, paths []string) []string {
	var extra []string
	if rc.Options.ConfigFile != "" {
		extra = append(extra, rc.Options.ConfigFile)
	}
	return extra
}

func (e mypyEngine) Run(rc RunContext, paths []string) (EngineResult, error) {
	argv := e.buildArgv(rc, paths)
	if len(argv) == 0 {
		return EngineResult{}, errcat.New(errcat.KindSubprocessInvocation, "engine:mypy", "refusing to build an empty argv")
	}
	if _, ok := mypyAllowedExecutables[argv[0]]; !ok {
		return EngineResult{}, errcat.New(errcat.KindSubprocessInvocation, "engine:mypy", "executable is not in the allow-list").
			WithContext("executable", argv[0])
	}

	mypyLog.Printf("invoking mypy: %v", argv)
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
			return EngineResult{}, errcat.Wrap(errcat.KindSubprocessInvocation, "engine:mypy", "failed to execute mypy", runErr)
		}
	}

	diags := parseMypyOutput(stdout.String())
	if stderr.Len() > 0 {
		diags = append(diags, Diagnostic{
			Tool:     "mypy",
			Severity: SeverityError,
			Path:     "<stderr>",
			Message:  strings.TrimSpace(stderr.String()),
		})
	}

	for i := range diags {
		if diags[i].Path != "<parse-error>" && diags[i].Path != "<stderr>" {
			diags[i].Path = ToRepoRelativePOSIX(rc.RepoRoot, diags[i].Path)
		}
	}
	SortDiagnostics(diags)

	return EngineResult{
		Engine:      "mypy",
		Mode:        rc.Mode,
		Argv:        argv,
		ExitCode:    exitCode,
		DurationMs:  duration.Milliseconds(),
		Diagnostics: diags,
	}, nil
}

func (mypyEngine) buildArgv(rc RunContext, paths []string) []string {
	argv := []string{"mypy"}
	if rc.Options.ConfigFile != "" {
		argv = append(argv, "--config-file", rc.Options.ConfigFile)
	}
	argv = append(argv, rc.Options.PluginArgs...)
	argv = append(argv, paths...)
	return argv
}

// parseMypyOutput parses mypy's line-oriented text output per spec §4.D
// step 6. Unmatched non-blank lines become pseudo-diagnostics with
// severity=error and path=<parse-error> rather than being dropped.
func parseMypyOutput(output string) []Diagnostic {
	var diags []Diagnostic
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "Found ") || strings.HasPrefix(strings.TrimSpace(line), "Success:") {
			continue
		}
		match := mypyLineRe.FindStringSubmatch(line)
		if match == nil {
			diags = append(diags, Diagnostic{
				Tool:     "mypy",
				Severity: SeverityError,
				Path:     "<parse-error>",
				Message:  line,
			})
			continue
		}
		lineNum, _ := strconv.Atoi(match[2])
		col := 0
		if match[3] != "" {
			col, _ = strconv.Atoi(match[3])
		}
		diags = append(diags, Diagnostic{
			Tool:     "mypy",
			Severity: ParseSeverity(match[4]),
			Path:     match[1],
			Line:     lineNum,
			Column:   col,
			Rule:     match[6],
			Message:  strings.TrimSpace(match[5]),
		})
	}
	return diags
}
