package typewiz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ratchetr/typewiz/pkg/errcat"
)

func TestDiscoverManifestPrefersCLIPath(t *testing.T) {
	root := t.TempDir()
	cliPath := filepath.Join(root, "custom.json")
	if err := os.WriteFile(cliPath, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := DiscoverManifest(root, cliPath, "", "")
	if err != nil {
		t.Fatalf("DiscoverManifest: %v", err)
	}
	if result.ChosenPath != cliPath {
		t.Errorf("expected CLI path chosen, got %s", result.ChosenPath)
	}
}

func TestDiscoverManifestFallsBackToConventionalName(t *testing.T) {
	root := t.TempDir()
	conventional := filepath.Join(root, "manifest.json")
	if err := os.WriteFile(conventional, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := DiscoverManifest(root, "", "", "")
	if err != nil {
		t.Fatalf("DiscoverManifest: %v", err)
	}
	if result.ChosenPath != conventional {
		t.Errorf("expected conventional manifest.json, got %s", result.ChosenPath)
	}
}

func TestDiscoverManifestNotFound(t *testing.T) {
	root := t.TempDir()
	_, err := DiscoverManifest(root, "", "", "")
	if err == nil {
		t.Fatal("expected ManifestNotFound error")
	}
	if !errcat.Is(err, errcat.KindManifestNotFound) {
		t.Errorf("expected KindManifestNotFound, got %v", err)
	}
}

func TestDiscoverManifestAmbiguous(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "manifest.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "ratchetr-manifest.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := DiscoverManifest(root, "", "", "")
	if err == nil {
		t.Fatal("expected AmbiguousManifest error")
	}
	if !errcat.Is(err, errcat.KindAmbiguousManifest) {
		t.Errorf("expected KindAmbiguousManifest, got %v", err)
	}
}
