package typewiz

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/ratchetr/typewiz/pkg/gitutil"
	"github.com/ratchetr/typewiz/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var fingerprintLog = logger.New("typewiz:fingerprinter")

var fingerprintedExtensions = map[string]struct{}{
	".py":  {},
	".pyi": {},
}

// FingerprintOptions configures one Fingerprint call (component B inputs).
type FingerprintOptions struct {
	RepoRoot          string
	IncludeRoots      []string // repo-relative
	MaxFiles          int      // 0 = unlimited
	MaxBytes          int64    // 0 = unlimited
	RespectGitignore  bool
	Baseline          map[string]FileFingerprint
	HashWorkers       int // explicit override; 0 = unset
	HashWorkersEnvRaw string
}

// FingerprintResult is the output of the File Fingerprinter.
type FingerprintResult struct {
	Fingerprints map[string]FileFingerprint
	Truncated    bool
}

// effectiveWorkers resolves hash_workers per spec §4.B step 4:
// explicit override > RATCHETR_HASH_WORKERS env > default 1. "auto" means
// number of CPUs (minimum 1); invalid specs fall back to 1.
func effectiveWorkers(explicit int, envRaw string) int {
	if explicit > 0 {
		return explicit
	}
	raw := strings.TrimSpace(envRaw)
	if raw == "" {
		return 1
	}
	if strings.EqualFold(raw, "auto") {
		n := runtime.NumCPU()
		if n < 1 {
			return 1
		}
		return n
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 1
	}
	if n == 0 {
		return 1
	}
	return n
}

// Fingerprint enumerates candidate files under opts.IncludeRoots, hashes
// them with a bounded worker pool, and enforces the max_files/max_bytes
// budgets. Output is deterministic given identical filesystem state.
func Fingerprint(opts FingerprintOptions) (FingerprintResult, error) {
	candidates, err := enumerateCandidates(opts.RepoRoot, opts.IncludeRoots)
	if err != nil {
		return FingerprintResult{}, err
	}

	if opts.RespectGitignore {
		if tracked, err := gitutil.TrackedFiles(opts.RepoRoot); err == nil {
			filtered := candidates[:0]
			for _, c := range candidates {
				if _, ok := tracked[c]; ok {
					filtered = append(filtered, c)
				}
			}
			candidates = filtered
		} else {
			fingerprintLog.Printf("respect_gitignore requested but no VCS root detected: %v", err)
		}
	}

	sort.Strings(candidates)

	result := make(map[string]FileFingerprint, len(candidates))
	var toHash []string
	var acceptedBytes int64
	truncated := false

	for _, rel := range candidates {
		if opts.MaxFiles > 0 && len(result)+len(toHash) >= opts.MaxFiles {
			truncated = true
			break
		}

		abs := filepath.Join(opts.RepoRoot, filepath.FromSlash(rel))
		info, statErr := os.Stat(abs)
		if statErr != nil {
			result[rel] = FileFingerprint{Missing: true}
			continue
		}

		if baseline, ok := opts.Baseline[rel]; ok && !baseline.Missing && !baseline.Unreadable &&
			baseline.Size == info.Size() && baseline.Mtime == info.ModTime().Unix() {
			if opts.MaxBytes > 0 && acceptedBytes+info.Size() > opts.MaxBytes {
				truncated = true
				break
			}
			acceptedBytes += info.Size()
			result[rel] = baseline
			continue
		}

		if opts.MaxBytes > 0 && acceptedBytes+info.Size() > opts.MaxBytes {
			truncated = true
			break
		}
		acceptedBytes += info.Size()
		toHash = append(toHash, rel)
	}

	workers := effectiveWorkers(opts.HashWorkers, opts.HashWorkersEnvRaw)
	hashed, err := hashFiles(opts.RepoRoot, toHash, workers)
	if err != nil {
		return FingerprintResult{}, err
	}
	for rel, fp := range hashed {
		result[rel] = fp
	}

	fingerprintLog.Printf("fingerprinted %d files (%d hashed, truncated=%v)", len(result), len(toHash), truncated)
	return FingerprintResult{Fingerprints: result, Truncated: truncated}, nil
}

// enumerateCandidates walks each include root collecting regular files with
// a fingerprinted extension, returning repo-relative POSIX paths.
func enumerateCandidates(repoRoot string, includeRoots []string) ([]string, error) {
	var out []string
	for _, root := range includeRoots {
		absRoot := filepath.Join(repoRoot, filepath.FromSlash(root))
		err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := filepath.Ext(path)
			if _, ok := fingerprintedExtensions[ext]; !ok {
				return nil
			}
			rel, relErr := filepath.Rel(repoRoot, path)
			if relErr != nil {
				return nil
			}
			out = append(out, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// hashFiles hashes files with a worker pool of the given size, returning a
// map of repo-relative path to fingerprint. Unreadable files produce the
// {unreadable: true} sentinel instead of failing the group.
func hashFiles(repoRoot string, relPaths []string, workers int) (map[string]FileFingerprint, error) {
	results := make(map[string]FileFingerprint, len(relPaths))
	if len(relPaths) == 0 {
		return results, nil
	}

	type entry struct {
		rel string
		fp  FileFingerprint
	}
	entries := make([]entry, len(relPaths))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, rel := range relPaths {
		i, rel := i, rel
		g.Go(func() error {
			entries[i] = entry{rel: rel, fp: hashOneFile(repoRoot, rel)}
			return nil
		})
	}
	_ = g.Wait() // hashOneFile never returns an error; failures become sentinels

	for _, e := range entries {
		results[e.rel] = e.fp
	}
	return results, nil
}

func hashOneFile(repoRoot, rel string) FileFingerprint {
	abs := filepath.Join(repoRoot, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return FileFingerprint{Missing: true}
		}
		return FileFingerprint{Unreadable: true}
	}

	f, err := os.Open(abs)
	if err != nil {
		return FileFingerprint{Unreadable: true}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return FileFingerprint{Unreadable: true}
	}

	return FileFingerprint{
		Hash:  hex.EncodeToString(h.Sum(nil)),
		Mtime: info.ModTime().Unix(),
		Size:  info.Size(),
	}
}
