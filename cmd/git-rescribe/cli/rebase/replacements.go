package rebase

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/descriptor"
)

// Replacements maps original commit hashes to what replaces them, in the
// order the originals were first recorded.
type Replacements struct {
	m *linkedhashmap.Map
}

// Replacement is one original → target pair.
type Replacement struct {
	Original string
	Target   Target
}

// NewReplacements returns an empty mapping.
func NewReplacements() *Replacements {
	return &Replacements{m: linkedhashmap.New()}
}

// Set records what replaces original. Re-setting keeps the first position.
func (r *Replacements) Set(original string, t Target) {
	r.m.Put(original, t)
}

// Get returns the target recorded for an exact original hash.
func (r *Replacements) Get(original string) (Target, bool) {
	v, ok := r.m.Get(original)
	if !ok {
		return Target{}, false
	}
	return v.(Target), true //nolint:forcetypeassert // only Targets are stored
}

// Lookup finds the originals matching a possibly-abbreviated hash.
func (r *Replacements) Lookup(hash string) []Replacement {
	var matches []Replacement
	it := r.m.Iterator()
	for it.Next() {
		original := it.Key().(string) //nolint:forcetypeassert // only strings are stored
		if descriptor.HashMatches(original, hash) {
			matches = append(matches, Replacement{Original: original, Target: it.Value().(Target)}) //nolint:forcetypeassert // only Targets are stored
		}
	}
	return matches
}

// All returns every pair in insertion order.
func (r *Replacements) All() []Replacement {
	out := make([]Replacement, 0, r.m.Size())
	it := r.m.Iterator()
	for it.Next() {
		out = append(out, Replacement{Original: it.Key().(string), Target: it.Value().(Target)}) //nolint:forcetypeassert // typed by Set
	}
	return out
}

// Changed returns the pairs whose original is actually replaced, that is
// every pair except an original mapped onto itself.
func (r *Replacements) Changed() []Replacement {
	var out []Replacement
	for _, rep := range r.All() {
		if !rep.Target.IsDeferred() && rep.Target.Hash == rep.Original {
			continue
		}
		out = append(out, rep)
	}
	return out
}

// Len returns the number of recorded originals.
func (r *Replacements) Len() int {
	return r.m.Size()
}
