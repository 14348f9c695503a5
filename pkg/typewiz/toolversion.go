package typewiz

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/ratchetr/typewiz/pkg/errcat"
	"github.com/ratchetr/typewiz/pkg/logger"
)

var toolVersionLog = logger.New("typewiz:toolversion")

// versionCommand is the argv each engine uses to report its own version,
// keyed by engine name. Grounded on the teacher's per-tool version probe
// (getActionlintVersion in pkg/cli/actionlint.go), generalised to a table
// instead of one function per tool.
var versionCommand = map[EngineName][]string{
	"pyright": {"pyright", "--version"},
	"mypy":    {"mypy", "--version"},
}

// versionCache memoizes one detected version string per engine for the
// lifetime of the process, avoiding a subprocess spawn per (engine, mode)
// pair when only the cache key needs it.
type versionCache struct {
	mu     sync.Mutex
	values map[EngineName]string
}

func newVersionCache() *versionCache {
	return &versionCache{values: make(map[EngineName]string)}
}

// ToolVersion returns the detected version string for engine, invoking its
// version command at most once per process.
func (c *versionCache) ToolVersion(ctx context.Context, engine EngineName) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.values[engine]; ok {
		return v, nil
	}

	argv, ok := versionCommand[engine]
	if !ok || len(argv) == 0 {
		return "", errcat.New(errcat.KindSubprocessInvocation, "toolversion", "no version command registered for engine").
			WithContext("engine", string(engine))
	}

	toolVersionLog.Printf("detecting version for %s", engine)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return "", errcat.Wrap(errcat.KindSubprocessInvocation, "toolversion", "failed to detect tool version", err).
			WithContext("engine", string(engine))
	}

	version := firstNonEmptyLine(string(out))
	c.values[engine] = version
	toolVersionLog.Printf("cached %s version: %s", engine, version)
	return version, nil
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// globalVersionCache is the process-wide memoization table the orchestrator
// shares across all (engine, mode) invocations in one audit.
var globalVersionCache = newVersionCache()
