// Package gitutil provides small helpers for interrogating the VCS state of
// a working tree: locating its root and listing the files it tracks.
package gitutil

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/ratchetr/typewiz/pkg/logger"
)

var log = logger.New("gitutil")

// IsRepo reports whether the current working directory is inside a git
// worktree.
func IsRepo() bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

// FindRoot returns the absolute top-level directory of the git repository
// containing the current working directory.
func FindRoot() (string, error) {
	log.Print("finding git root directory")
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		log.Printf("failed to find git root: %v", err)
		return "", fmt.Errorf("not in a git repository or git command failed: %w", err)
	}
	root := strings.TrimSpace(string(output))
	log.Printf("found git root: %s", root)
	return root, nil
}

// TrackedFiles returns the set of repo-relative, forward-slash paths that
// git tracks under root, used to intersect candidate files against VCS
// ignore rules without reimplementing .gitignore matching.
func TrackedFiles(root string) (map[string]struct{}, error) {
	cmd := exec.Command("git", "-C", root, "ls-files", "-z")
	output, err := cmd.Output()
	if err != nil {
		log.Printf("failed to list tracked files: %v", err)
		return nil, fmt.Errorf("git ls-files failed: %w", err)
	}
	set := make(map[string]struct{})
	for _, entry := range strings.Split(string(output), "\x00") {
		if entry == "" {
			continue
		}
		set[strings.ReplaceAll(entry, "\\", "/")] = struct{}{}
	}
	return set, nil
}

// IsHexString reports whether s contains only hexadecimal characters; used
// to sanity-check content hashes read back from the engine cache.
func IsHexString(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
