package typewiz

import (
	"context"

	"github.com/ratchetr/typewiz/pkg/logger"
)

var registryLog = logger.New("typewiz:registry")

// EngineOrigin distinguishes a builtin engine from one discovered via a
// plugin mechanism (spec §4.C EngineDescriptor.origin).
type EngineOrigin string

const (
	OriginBuiltin EngineOrigin = "builtin"
	OriginPlugin  EngineOrigin = "plugin"
)

// EngineDescriptor identifies one registered engine without exposing its
// capability surface.
type EngineDescriptor struct {
	Name          EngineName
	Module        string
	QualifiedName string
	Origin        EngineOrigin
}

// RunContext carries the values an engine's Run needs that are not part of
// its own EngineOptions: the repo root, the mode being executed, and a
// cancellation context for the subprocess.
type RunContext struct {
	Ctx      context.Context
	RepoRoot string
	Mode     Mode
	Options  EngineOptions
}

// BaseEngine is the capability every registered engine must implement (spec
// §4.C "Engine capability"). CategoryMapping and FingerprintTargets are
// optional in the spec's sense: an engine with nothing to add returns nil.
type BaseEngine interface {
	Name() EngineName
	Run(rc RunContext, paths []string) (EngineResult, error)
	CategoryMapping() map[string][]string
	FingerprintTargets(rc RunContext, paths []string) []string
}

// Registry holds the active engine set in registration order, which is also
// the order the orchestrator iterates them in (spec §5 ordering guarantee).
type Registry struct {
	order   []EngineName
	engines map[EngineName]BaseEngine
	descs   map[EngineName]EngineDescriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[EngineName]BaseEngine),
		descs:   make(map[EngineName]EngineDescriptor),
	}
}

// Register adds an engine under the given descriptor. Re-registering a name
// replaces the prior entry but keeps its original position in Order().
func (r *Registry) Register(desc EngineDescriptor, engine BaseEngine) {
	if _, exists := r.engines[desc.Name]; !exists {
		r.order = append(r.order, desc.Name)
	}
	r.engines[desc.Name] = engine
	r.descs[desc.Name] = desc
	registryLog.Printf("registered engine %q (origin=%s)", desc.Name, desc.Origin)
}

// Get returns the engine registered under name, if any.
func (r *Registry) Get(name EngineName) (BaseEngine, bool) {
	e, ok := r.engines[name]
	return e, ok
}

// Descriptor returns the EngineDescriptor for name, if any.
func (r *Registry) Descriptor(name EngineName) (EngineDescriptor, bool) {
	d, ok := r.descs[name]
	return d, ok
}

// Order returns registered engine names in registration order.
func (r *Registry) Order() []EngineName {
	return append([]EngineName(nil), r.order...)
}

// RegisterBuiltins wires the builtin engine set (spec §4.C registry: "union
// of builtin engines and ... discovered engines").
func RegisterBuiltins(r *Registry) {
	r.Register(EngineDescriptor{Name: "pyright", Module: "pyright", QualifiedName: "typewiz.engines.pyright", Origin: OriginBuiltin}, NewPyrightEngine())
	r.Register(EngineDescriptor{Name: "mypy", Module: "mypy", QualifiedName: "typewiz.engines.mypy", Origin: OriginBuiltin}, NewMypyEngine())
}

// DiscoverPlugins attempts to register one BaseEngine per candidate using
// the supplied constructor map (spec §4.C "entry-point-style discovered
// engines"). A candidate whose constructor panics or returns nil is silently
// ignored and logged at debug level, matching "invalid entries ... are
// silently ignored."
func DiscoverPlugins(r *Registry, candidates map[string]func() BaseEngine) {
	for module, construct := range candidates {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					registryLog.Printf("plugin %q failed capability check: %v", module, rec)
				}
			}()
			engine := construct()
			if engine == nil {
				registryLog.Printf("plugin %q returned a nil engine, ignoring", module)
				return
			}
			r.Register(EngineDescriptor{
				Name:          engine.Name(),
				Module:        module,
				QualifiedName: module,
				Origin:        OriginPlugin,
			}, engine)
		}()
	}
}
