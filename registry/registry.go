// Package registry holds the canonical strategy-identity table: the
// single place mapping a strategy's canonical id to its display name,
// capital allocation fraction, and any aliases it is known by elsewhere
// (config files, AI prompts, legacy names). Every other package that
// needs to talk about "a strategy" does so by canonical id obtained
// here, never by raw string comparison.
package registry

import "strings"

// Entry is one row of the canonical strategy table.
type Entry struct {
	CanonicalID string
	HumanName   string
	Allocation  float64
	Aliases     []string
}

// Registry is an immutable, built-once lookup table. Safe for concurrent
// reads from any number of goroutines since it is never mutated after
// construction.
type Registry struct {
	byID    map[string]Entry
	byAlias map[string]string // normalised alias -> canonical id
}

// unknownID is the fallback canonical id for anything the registry does
// not recognise; it carries the lowest default allocation so an
// unrecognised strategy never dominates capital.
const unknownID = "unknown"

// New builds a Registry from the given entries, indexing every alias
// (and the canonical id and human name themselves) under their
// normalised form.
func New(entries []Entry) *Registry {
	r := &Registry{
		byID:    make(map[string]Entry, len(entries)+1),
		byAlias: make(map[string]string),
	}
	for _, e := range entries {
		r.byID[e.CanonicalID] = e
		r.index(e.CanonicalID, e.CanonicalID)
		r.index(e.HumanName, e.CanonicalID)
		for _, a := range e.Aliases {
			r.index(a, e.CanonicalID)
		}
	}
	if _, ok := r.byID[unknownID]; !ok {
		r.byID[unknownID] = Entry{CanonicalID: unknownID, HumanName: "Unknown", Allocation: 0.01}
	}
	return r
}

func (r *Registry) index(key, id string) {
	r.byAlias[normalise(key)] = id
}

// normalise folds a name to a comparison key: lowercase, spaces and
// hyphens collapsed to a single underscore, trimmed. Canonical ids are
// snake_case, so every alias folds to that same shape.
func normalise(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.Join(strings.Fields(s), "_")
	return s
}

// Canonicalize resolves any known name or alias to its canonical id,
// falling back to unknownID when nothing matches.
func (r *Registry) Canonicalize(name string) string {
	if id, ok := r.byAlias[normalise(name)]; ok {
		return id
	}
	return unknownID
}

// Display returns the human-readable name for a canonical id.
func (r *Registry) Display(id string) string {
	if e, ok := r.byID[id]; ok {
		return e.HumanName
	}
	return r.byID[unknownID].HumanName
}

// Allocation returns the capital-allocation fraction for a canonical id.
func (r *Registry) Allocation(id string) float64 {
	if e, ok := r.byID[id]; ok {
		return e.Allocation
	}
	return r.byID[unknownID].Allocation
}

// Known reports whether id names a registered (non-unknown) strategy.
func (r *Registry) Known(id string) bool {
	_, ok := r.byID[id]
	return ok && id != unknownID
}

// All returns every registered entry, including the synthetic unknown
// row, in no particular order.
func (r *Registry) All() []Entry {
	out := make([]Entry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	return out
}

// Default returns the registry pre-populated with the kernel's built-in
// strategy set and their default capital allocations — weights sum to
// under 1 so an unknown strategy's 0.01 still fits without
// renormalisation.
func Default() *Registry {
	return New([]Entry{
		{CanonicalID: "pcr_analysis", HumanName: "PCR Analysis", Allocation: 0.18, Aliases: []string{"PCR Analysis", "PCRStrategy", "pcr", "put-call-ratio"}},
		{CanonicalID: "oi_change_patterns", HumanName: "OI Change Patterns", Allocation: 0.18, Aliases: []string{"OI Change Patterns", "oi-buildup", "open-interest-buildup"}},
		{CanonicalID: "max_pain", HumanName: "Max Pain", Allocation: 0.14, Aliases: []string{"Max Pain", "max-pain-pull"}},
		{CanonicalID: "iv_skew", HumanName: "IV Skew", Allocation: 0.14, Aliases: []string{"IV Skew", "volatility-skew"}},
		{CanonicalID: "gamma_scalping", HumanName: "Gamma Scalping", Allocation: 0.14, Aliases: []string{"Gamma Scalping", "gamma-exposure", "gex"}},
		{CanonicalID: "support_resistance", HumanName: "Support/Resistance from OI", Allocation: 0.14, Aliases: []string{"Support Resistance", "oi-support-resistance", "oi-levels"}},
		{CanonicalID: "vwap_reversion", HumanName: "VWAP Reversion", Allocation: 0.07, Aliases: []string{"VWAP Reversion", "vwap"}},
	})
}
