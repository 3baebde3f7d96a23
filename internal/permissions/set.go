package permissions

import (
	"sort"
	"strings"
)

const totalBits = 128

// Set is an immutable bitmask over two 64-bit words encoding up to 128
// permission types. The zero value carries no permissions and doubles as
// "no grant recorded".
type Set struct {
	lo uint64
	hi uint64
}

// Of builds a set containing the supplied types.
func Of(types ...Type) Set {
	var s Set
	return s.With(types...)
}

// FromWords reconstructs a set from its persisted word pair.
func FromWords(lo, hi uint64) Set {
	return Set{lo: lo, hi: hi}
}

// Words returns the underlying word pair for persistence.
func (s Set) Words() (lo, hi uint64) {
	return s.lo, s.hi
}

// Has reports whether the set contains the given type.
func (s Set) Has(t Type) bool {
	pos := position(t)
	if pos < 64 {
		return s.lo&(1<<pos) != 0
	}
	return s.hi&(1<<(pos-64)) != 0
}

// With returns a copy of the set with the given types added.
func (s Set) With(types ...Type) Set {
	for _, t := range types {
		pos := position(t)
		if pos < 64 {
			s.lo |= 1 << pos
		} else {
			s.hi |= 1 << (pos - 64)
		}
	}
	return s
}

// Without returns a copy of the set with the given types cleared.
func (s Set) Without(types ...Type) Set {
	for _, t := range types {
		pos := position(t)
		if pos < 64 {
			s.lo &^= 1 << pos
		} else {
			s.hi &^= 1 << (pos - 64)
		}
	}
	return s
}

// Union returns the additive merge of both sets.
func (s Set) Union(other Set) Set {
	return Set{lo: s.lo | other.lo, hi: s.hi | other.hi}
}

// Contains reports whether every permission in other is present in s.
func (s Set) Contains(other Set) bool {
	return s.lo&other.lo == other.lo && s.hi&other.hi == other.hi
}

// IsZero reports whether the set carries no permissions.
func (s Set) IsZero() bool {
	return s.lo == 0 && s.hi == 0
}

// Types expands the set into its member permission types.
func (s Set) Types() []Type {
	out := make([]Type, 0)
	for t := range bitIndex {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return position(out[i]) < position(out[j])
	})
	return out
}

// Names returns the wire names of the member types in bit order.
func (s Set) Names() []string {
	types := s.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}

func (s Set) String() string {
	if s.IsZero() {
		return "{}"
	}
	return "{" + strings.Join(s.Names(), ",") + "}"
}
