package typewiz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/ratchetr/typewiz/pkg/errcat"
	"github.com/ratchetr/typewiz/pkg/gitutil"
	"github.com/ratchetr/typewiz/pkg/logger"
)

var cacheLog = logger.New("typewiz:cache")

// CacheKey is everything spec §4.E says contributes to the content hash
// that identifies one cacheable engine invocation.
type CacheKey struct {
	Engine             EngineName
	Mode               Mode
	PluginArgs         []string // ordered, canonicalised
	ConfigFile         string   // normalised absolute path
	Include            []string // sorted
	Exclude            []string // sorted
	ToolVersion        string
	FingerprintTargets []string // sorted
}

// Digest returns the stable hash identifying this key, used as the on-disk
// map key and as a cheap equality shortcut.
func (k CacheKey) Digest() string {
	canonical := CacheKey{
		Engine:             k.Engine,
		Mode:               k.Mode,
		PluginArgs:         append([]string(nil), k.PluginArgs...),
		ConfigFile:         k.ConfigFile,
		Include:            sortedUnique(k.Include),
		Exclude:            sortedUnique(k.Exclude),
		ToolVersion:        k.ToolVersion,
		FingerprintTargets: sortedUnique(k.FingerprintTargets),
	}
	payload, _ := json.Marshal(canonical)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// CacheEntry is the stored tuple for one CacheKey (spec §4.E).
type CacheEntry struct {
	Key             CacheKey
	Command         []string
	ExitCode        int
	DurationMs      int64
	Diagnostics     []Diagnostic
	FileHashes      map[string]FileFingerprint
	ToolSummary     *ToolSummary
	Profile         string
	ConfigFile      string
	PluginArgs      []string
	Include         []string
	Exclude         []string
	Overrides       []OverrideRecord
	CategoryMapping map[string][]string
}

// cacheFile is the on-disk shape of cache_dir/engine_cache.json: a flat map
// keyed by CacheKey.Digest().
type cacheFile struct {
	Entries map[string]CacheEntry `json:"entries"`
}

// Cache is a file-backed, lock-guarded store for CacheEntry records (spec
// §4.E). One Cache instance is safe to share within a process; the file
// lock additionally serialises concurrent processes.
type Cache struct {
	path     string
	lockPath string
}

// NewCache returns a Cache rooted at cacheDir/engine_cache.json.
func NewCache(cacheDir string) *Cache {
	return &Cache{
		path:     filepath.Join(cacheDir, "engine_cache.json"),
		lockPath: filepath.Join(cacheDir, "engine_cache.json.lock"),
	}
}

func (c *Cache) load() (cacheFile, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return cacheFile{Entries: map[string]CacheEntry{}}, nil
		}
		return cacheFile{}, err
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		// A torn or corrupt file degrades to an empty cache rather than a
		// crash (spec §4.E "any recovery path must degrade to a miss").
		cacheLog.Printf("cache file failed to parse, treating as empty: %v", err)
		return cacheFile{Entries: map[string]CacheEntry{}}, nil
	}
	if cf.Entries == nil {
		cf.Entries = map[string]CacheEntry{}
	}
	return cf, nil
}

// Lookup returns the stored EngineResult for key if present and its stored
// file_hashes equal freshHashes element-for-element (spec §4.E lookup
// protocol). The second return reports whether it was a hit.
func (c *Cache) Lookup(ctx context.Context, key CacheKey, freshHashes map[string]FileFingerprint) (EngineResult, bool) {
	cf, err := c.load()
	if err != nil {
		cacheLog.Printf("cache lookup failed to read cache file: %v", err)
		return EngineResult{}, false
	}

	entry, ok := cf.Entries[key.Digest()]
	if !ok {
		return EngineResult{}, false
	}
	if !storedHashesAreSane(entry.FileHashes) {
		cacheLog.Printf("cache entry for %s:%s has a malformed content hash, treating as a miss", key.Engine, key.Mode)
		return EngineResult{}, false
	}
	if !FingerprintMapEqual(entry.FileHashes, freshHashes) {
		return EngineResult{}, false
	}

	return EngineResult{
		Engine:      entry.Key.Engine,
		Mode:        entry.Key.Mode,
		Argv:        entry.Command,
		ExitCode:    entry.ExitCode,
		DurationMs:  entry.DurationMs,
		Diagnostics: entry.Diagnostics,
		ToolSummary: entry.ToolSummary,
		Cached:      true,
	}, true
}

// Store writes entry under key, atomically (write-temp-then-rename) while
// holding an exclusive lock on the cache file (spec §4.E store protocol).
func (c *Cache) Store(ctx context.Context, key CacheKey, entry CacheEntry) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return errcat.Wrap(errcat.KindCacheIO, "cache", "failed to create cache directory", err)
	}

	lock := flock.New(c.lockPath)
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		if err == nil {
			err = context.DeadlineExceeded
		}
		return errcat.Wrap(errcat.KindCacheIO, "cache", "failed to acquire cache file lock", err)
	}
	defer lock.Unlock()

	cf, err := c.load()
	if err != nil {
		return errcat.Wrap(errcat.KindCacheIO, "cache", "failed to read cache file under lock", err)
	}
	entry.Key = key
	cf.Entries[key.Digest()] = entry

	payload, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return errcat.Wrap(errcat.KindCacheIO, "cache", "failed to marshal cache file", err)
	}

	tmpPath := filepath.Join(filepath.Dir(c.path), ".engine_cache."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return errcat.Wrap(errcat.KindCacheIO, "cache", "failed to write temp cache file", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return errcat.Wrap(errcat.KindCacheIO, "cache", "failed to rename temp cache file into place", err)
	}
	cacheLog.Printf("stored cache entry for %s:%s", key.Engine, key.Mode)
	return nil
}

// storedHashesAreSane reports whether every non-sentinel hash read back from
// the cache file is well-formed hex, guarding against a torn write that
// survived JSON parsing but left a truncated/corrupt hash behind.
func storedHashesAreSane(hashes map[string]FileFingerprint) bool {
	for _, fp := range hashes {
		if fp.Missing || fp.Unreadable {
			continue
		}
		if !gitutil.IsHexString(fp.Hash) {
			return false
		}
	}
	return true
}

// BuildCacheKey assembles a CacheKey from a frozen EnginePlan plus the
// runtime values that are not part of the plan itself (spec §4.D step 4).
func BuildCacheKey(plan EnginePlan, toolVersion string, fingerprintTargets []string) CacheKey {
	targets := append([]string(nil), fingerprintTargets...)
	sort.Strings(targets)
	return CacheKey{
		Engine:             plan.EngineName,
		Mode:               plan.Mode,
		PluginArgs:         append([]string(nil), plan.PluginArgs...),
		ConfigFile:         plan.ConfigFile,
		Include:            sortedUnique(plan.Include),
		Exclude:            sortedUnique(plan.Exclude),
		ToolVersion:        toolVersion,
		FingerprintTargets: targets,
	}
}
