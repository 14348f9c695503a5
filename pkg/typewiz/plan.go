package typewiz

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// EnginePlan is the canonical, fingerprint-stable representation of one
// (engine, mode, resolved scope) execution. It is frozen once built by the
// plan builder (component C).
type EnginePlan struct {
	EngineName      EngineName
	Mode            Mode
	ResolvedScope   []string // repo-relative POSIX paths, canonical order is sorted
	PluginArgs      []string // ordered, first-seen-deduped
	Profile         string
	ConfigFile      string
	Include         []string
	Exclude         []string
	Overrides       []OverrideRecord
	CategoryMapping map[string][]string
}

// equivalenceView is the subset of an EnginePlan that participates in
// "equivalent plan" comparisons: engine name, resolved scope, plugin_args,
// profile, config_file, include, exclude, overrides, and category_mapping.
// Mode is deliberately excluded (spec §3, §8 "mode does NOT participate in
// equivalence").
type equivalenceView struct {
	EngineName      EngineName
	ResolvedScope   []string
	PluginArgs      []string
	Profile         string
	ConfigFile      string
	Include         []string
	Exclude         []string
	Overrides       []OverrideRecord
	CategoryMapping map[string][]string
}

func (p EnginePlan) equivalenceView() equivalenceView {
	scope := append([]string(nil), p.ResolvedScope...)
	sort.Strings(scope)
	return equivalenceView{
		EngineName:      p.EngineName,
		ResolvedScope:   scope,
		PluginArgs:      append([]string(nil), p.PluginArgs...),
		Profile:         p.Profile,
		ConfigFile:      p.ConfigFile,
		Include:         sortedUnique(p.Include),
		Exclude:         sortedUnique(p.Exclude),
		Overrides:       CanonicalOverrides(p.Overrides),
		CategoryMapping: CanonicalCategoryMapping(p.CategoryMapping),
	}
}

// IsEquivalentTo reports whether p and other describe the same execution
// modulo mode, per spec §3/§8.
func (p EnginePlan) IsEquivalentTo(other EnginePlan) bool {
	a, _ := json.Marshal(p.equivalenceView())
	b, _ := json.Marshal(other.equivalenceView())
	return string(a) == string(b)
}

// EngineSignatureHash returns a stable content hash of the plan's canonical
// options. It reuses the same canonicalisation as IsEquivalentTo so the
// hash and the equivalence check never disagree about what counts as "the
// same options." The ratchet engine does not call it: its engine_signature
// comes from computeEngineSignature in ratchet.go.
func (p EnginePlan) EngineSignatureHash() string {
	payload, _ := json.Marshal(p.equivalenceView())
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
