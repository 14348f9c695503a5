package typewiz

import "testing"

type stubEngine struct {
	name EngineName
}

func (s stubEngine) Name() EngineName { return s.name }
func (s stubEngine) Run(rc RunContext, paths []string) (EngineResult, error) {
	return EngineResult{Engine: s.name}, nil
}
func (s stubEngine) CategoryMapping() map[string][]string           { return nil }
func (s stubEngine) FingerprintTargets(rc RunContext, p []string) []string { return nil }

func TestRegistryOrderPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(EngineDescriptor{Name: "b"}, stubEngine{name: "b"})
	r.Register(EngineDescriptor{Name: "a"}, stubEngine{name: "a"})

	order := r.Order()
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Errorf("expected registration order [b a], got %v", order)
	}
}

func TestRegistryReRegisterKeepsOriginalPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(EngineDescriptor{Name: "a"}, stubEngine{name: "a"})
	r.Register(EngineDescriptor{Name: "b"}, stubEngine{name: "b"})
	r.Register(EngineDescriptor{Name: "a", Origin: OriginPlugin}, stubEngine{name: "a"})

	order := r.Order()
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("expected re-registration to keep original position, got %v", order)
	}
	desc, ok := r.Descriptor("a")
	if !ok || desc.Origin != OriginPlugin {
		t.Errorf("expected re-registration to replace the descriptor, got %+v", desc)
	}
}

func TestDiscoverPluginsRegistersValidCandidates(t *testing.T) {
	r := NewRegistry()
	DiscoverPlugins(r, map[string]func() BaseEngine{
		"good-plugin": func() BaseEngine { return stubEngine{name: "ruff"} },
	})

	engine, ok := r.Get("ruff")
	if !ok {
		t.Fatal("expected the plugin engine to be registered under its own Name()")
	}
	desc, _ := r.Descriptor("ruff")
	if desc.Origin != OriginPlugin || desc.Module != "good-plugin" {
		t.Errorf("expected plugin origin/module recorded, got %+v", desc)
	}
	if engine.Name() != "ruff" {
		t.Errorf("expected registered engine to answer to its own name, got %q", engine.Name())
	}
}

func TestDiscoverPluginsIgnoresNilEngine(t *testing.T) {
	r := NewRegistry()
	DiscoverPlugins(r, map[string]func() BaseEngine{
		"nil-plugin": func() BaseEngine { return nil },
	})
	if len(r.Order()) != 0 {
		t.Errorf("expected a nil-returning candidate to register nothing, got %v", r.Order())
	}
}

func TestDiscoverPluginsRecoversFromPanickingCandidate(t *testing.T) {
	r := NewRegistry()
	DiscoverPlugins(r, map[string]func() BaseEngine{
		"bad-plugin": func() BaseEngine { panic("capability check failed") },
		"good-plugin": func() BaseEngine { return stubEngine{name: "ruff"} },
	})
	if len(r.Order()) != 1 || r.Order()[0] != "ruff" {
		t.Errorf("expected the panicking candidate to be skipped and the good one registered, got %v", r.Order())
	}
}
