package errcat

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorMessageIncludesCodeAndComponent(t *testing.T) {
	err := New(KindCacheIO, "cache", "failed to rename temp file")
	msg := err.Error()
	if want := "TW008"; !contains(msg, want) {
		t.Errorf("Error() = %q, want it to contain %q", msg, want)
	}
	if !contains(msg, "cache") || !contains(msg, "failed to rename temp file") {
		t.Errorf("Error() = %q, missing component or message", msg)
	}
}

func TestWithContextAppendsKeyValue(t *testing.T) {
	err := New(KindManifestNotFound, "resolver", "no manifest found").WithContext("path", "/tmp/x")
	if !contains(err.Error(), `path="/tmp/x"`) {
		t.Errorf("Error() = %q, want context rendered", err.Error())
	}
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindEngineOutputParse, "orchestrator", "could not parse pyright output", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !contains(err.Error(), "boom") {
		t.Errorf("Error() = %q, want cause rendered", err.Error())
	}
}

func TestIsChecksKind(t *testing.T) {
	err := New(KindRatchetFileExists, "ratchet", "refusing to overwrite")
	if !Is(err, KindRatchetFileExists) {
		t.Error("Is() = false, want true for matching kind")
	}
	if Is(err, KindCacheIO) {
		t.Error("Is() = true, want false for mismatched kind")
	}
	if Is(errors.New("plain error"), KindCacheIO) {
		t.Error("Is() = true for a non-*Error value, want false")
	}
}

func TestCodeForPanicsOnUnmappedKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("codeFor did not panic for an unmapped kind")
		}
	}()
	codeFor(Kind(9999))
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
