package typewiz

import (
	"context"
	"testing"
)

type fakeEngine struct {
	name    EngineName
	calls   int
	results EngineResult
}

func (f *fakeEngine) Name() EngineName                   { return f.name }
func (f *fakeEngine) CategoryMapping() map[string][]string { return nil }
func (f *fakeEngine) FingerprintTargets(rc RunContext, paths []string) []string { return nil }
func (f *fakeEngine) Run(rc RunContext, paths []string) (EngineResult, error) {
	f.calls++
	r := f.results
	r.Mode = rc.Mode
	return r, nil
}

func TestOrchestratorRunInvokesEngineOnMiss(t *testing.T) {
	registry := NewRegistry()
	fake := &fakeEngine{name: "stub", results: EngineResult{Engine: "stub", Argv: []string{"stub"}}}
	registry.Register(EngineDescriptor{Name: "stub", Origin: OriginBuiltin}, fake)

	orch := NewOrchestrator(registry, NewCache(t.TempDir()))
	orch.Versions = newVersionCache()
	orch.Versions.values["stub"] = "0.0.0"

	result, err := orch.Run(context.Background(), RunRequest{
		Engine:       "stub",
		Mode:         ModeCurrent,
		Settings:     AuditSettings{},
		ScannedPaths: []string{"a.py"},
		Fingerprints: map[string]FileFingerprint{"a.py": {Hash: "1"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Cached {
		t.Error("first run should not be cached")
	}
	if fake.calls != 1 {
		t.Errorf("expected engine to be invoked once, got %d", fake.calls)
	}
}

func TestOrchestratorRunSkipsUnregisteredEngine(t *testing.T) {
	registry := NewRegistry()
	orch := NewOrchestrator(registry, NewCache(t.TempDir()))

	result, err := orch.Run(context.Background(), RunRequest{Engine: "missing", Mode: ModeCurrent})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Engine != "" {
		t.Errorf("expected a zero-value result for an unregistered engine, got %+v", result)
	}
}

func TestOrchestratorRunUsesCacheOnSecondCall(t *testing.T) {
	registry := NewRegistry()
	fake := &fakeEngine{name: "stub", results: EngineResult{Engine: "stub", Argv: []string{"stub"}}}
	registry.Register(EngineDescriptor{Name: "stub", Origin: OriginBuiltin}, fake)

	cache := NewCache(t.TempDir())
	orch := NewOrchestrator(registry, cache)
	orch.Versions = newVersionCache()
	orch.Versions.values["stub"] = "0.0.0"

	req := RunRequest{
		Engine:       "stub",
		Mode:         ModeCurrent,
		ScannedPaths: []string{"a.py"},
		Fingerprints: map[string]FileFingerprint{"a.py": {Hash: "1"}},
	}

	if _, err := orch.Run(context.Background(), req); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	result, err := orch.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !result.Cached {
		t.Error("expected second identical run to be served from cache")
	}
	if fake.calls != 1 {
		t.Errorf("expected engine invoked exactly once across both runs, got %d", fake.calls)
	}
}
