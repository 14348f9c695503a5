package typewiz

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/ratchetr/typewiz/pkg/errcat"
	"github.com/ratchetr/typewiz/pkg/logger"
)

var ratchetStoreLog = logger.New("typewiz:ratchet_store")

// RatchetStore persists a RatchetModel to a single JSON file under an
// exclusive file lock during read-modify-write (spec §5 "Ratchet file:
// exclusive lock on read-modify-write").
type RatchetStore struct {
	path     string
	lockPath string
}

// NewRatchetStore returns a store backed by the file at path.
func NewRatchetStore(path string) *RatchetStore {
	return &RatchetStore{path: path, lockPath: path + ".lock"}
}

// Exists reports whether a ratchet file already exists at the store's path.
func (s *RatchetStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and decodes the ratchet file.
func (s *RatchetStore) Load() (RatchetModel, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return RatchetModel{}, errcat.Wrap(errcat.KindRatchetModelValidation, "ratchet_store", "failed to read ratchet file", err)
	}
	var model RatchetModel
	if err := json.Unmarshal(data, &model); err != nil {
		return RatchetModel{}, errcat.Wrap(errcat.KindRatchetModelValidation, "ratchet_store", "failed to parse ratchet file", err)
	}
	return model, nil
}

// writeAtomic writes model to outputPath via temp-file-then-rename, holding
// an exclusive lock on the store's lock file for the duration.
func (s *RatchetStore) writeAtomic(ctx context.Context, outputPath string, model RatchetModel) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return errcat.Wrap(errcat.KindCacheIO, "ratchet_store", "failed to create ratchet directory", err)
	}

	lock := flock.New(s.lockPath)
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		if err == nil {
			err = context.DeadlineExceeded
		}
		return errcat.Wrap(errcat.KindCacheIO, "ratchet_store", "failed to acquire ratchet file lock", err)
	}
	defer lock.Unlock()

	payload, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return errcat.Wrap(errcat.KindCacheIO, "ratchet_store", "failed to marshal ratchet model", err)
	}

	tmpPath := filepath.Join(filepath.Dir(outputPath), ".ratchet."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return errcat.Wrap(errcat.KindCacheIO, "ratchet_store", "failed to write temp ratchet file", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return errcat.Wrap(errcat.KindCacheIO, "ratchet_store", "failed to rename temp ratchet file into place", err)
	}
	ratchetStoreLog.Printf("wrote ratchet file to %s", outputPath)
	return nil
}

// SaveInit writes model as a brand-new ratchet file, refusing to overwrite
// an existing one unless force is set (spec §4.H init "Refuse to overwrite
// an existing file unless force").
func (s *RatchetStore) SaveInit(ctx context.Context, model RatchetModel, force bool) error {
	if s.Exists() && !force {
		return errcat.New(errcat.KindRatchetFileExists, "ratchet_store", "ratchet file already exists, pass force to overwrite").
			WithContext("path", s.path)
	}
	return s.writeAtomic(ctx, s.path, model)
}

// SaveUpdate writes model after an update operation. dryRun suppresses the
// write entirely; otherwise the same overwrite-protection as SaveInit
// applies unless outputPath differs from the store's own path (spec §4.H
// update: "Refuse overwrite without force unless an explicit output_path is
// given").
func (s *RatchetStore) SaveUpdate(ctx context.Context, model RatchetModel, force bool, dryRun bool, outputPath string) error {
	if dryRun {
		ratchetStoreLog.Print("dry_run set, suppressing ratchet write")
		return nil
	}
	target := outputPath
	if target == "" {
		target = s.path
	}
	if target == s.path {
		if s.Exists() && !force {
			return errcat.New(errcat.KindRatchetFileExists, "ratchet_store", "ratchet file already exists, pass force to overwrite").
				WithContext("path", s.path)
		}
	}
	return s.writeAtomic(ctx, target, model)
}

// SaveRebaseline writes model after a rebaseline operation. Requires an
// existing path (spec §4.H rebaseline "Requires an existing path").
func (s *RatchetStore) SaveRebaseline(ctx context.Context, model RatchetModel) error {
	if !s.Exists() {
		return errcat.New(errcat.KindRatchetPathRequired, "ratchet_store", "rebaseline requires an existing ratchet file").
			WithContext("path", s.path)
	}
	return s.writeAtomic(ctx, s.path, model)
}
