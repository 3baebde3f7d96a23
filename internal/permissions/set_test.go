package permissions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetWithAndHas(t *testing.T) {
	s := Of(TypeRead, TypeComment)

	require.True(t, s.Has(TypeRead))
	require.True(t, s.Has(TypeComment))
	require.False(t, s.Has(TypeEdit))
	require.False(t, s.IsZero())

	require.True(t, Set{}.IsZero())
}

func TestSetHighWordBits(t *testing.T) {
	s := Of(TypeManageGrants, TypeManageGroups)

	lo, hi := s.Words()
	require.Zero(t, lo)
	require.NotZero(t, hi)

	require.True(t, s.Has(TypeManageGrants))
	require.True(t, s.Has(TypeManageGroups))
	require.False(t, s.Has(TypeManageDomains))
}

func TestSetUnionCommutative(t *testing.T) {
	a := Of(TypeRead, TypeManageGrants)
	b := Of(TypeEdit, TypeComment)

	require.Equal(t, a.Union(b), b.Union(a))

	merged := a.Union(b)
	for _, typ := range All() {
		require.Equal(t, a.Has(typ) || b.Has(typ), merged.Has(typ), "type %s", typ)
	}
}

func TestSetWordsRoundTrip(t *testing.T) {
	s := Of(TypeRead, TypeDraft, TypePublish, TypeManageDomains, TypeManageMembers)

	lo, hi := s.Words()
	require.Equal(t, s, FromWords(lo, hi))
}

func TestSetWithout(t *testing.T) {
	s := Of(TypeRead, TypeComment, TypeEdit)

	trimmed := s.Without(TypeComment)
	require.True(t, trimmed.Has(TypeRead))
	require.True(t, trimmed.Has(TypeEdit))
	require.False(t, trimmed.Has(TypeComment))

	// Without is pure: the receiver is untouched.
	require.True(t, s.Has(TypeComment))

	// Clearing an absent bit is a no-op, not an error.
	require.Equal(t, trimmed, trimmed.Without(TypeModerate))
}

func TestSetContains(t *testing.T) {
	base := Of(TypeRead, TypeComment, TypeManageGrants)

	require.True(t, base.Contains(Of(TypeRead)))
	require.True(t, base.Contains(Of(TypeRead, TypeManageGrants)))
	require.False(t, base.Contains(Of(TypeEdit)))
	require.True(t, base.Contains(Set{}))
}

func TestUnmappedTypePanics(t *testing.T) {
	require.Panics(t, func() {
		Of(Type(200))
	})
}

func TestTypeNamesRoundTrip(t *testing.T) {
	for _, typ := range All() {
		parsed, ok := Parse(typ.String())
		require.True(t, ok, "type %s", typ)
		require.Equal(t, typ, parsed)
	}

	_, ok := Parse("launch_missiles")
	require.False(t, ok)
}

func TestSetString(t *testing.T) {
	require.Equal(t, "{}", Set{}.String())
	require.Equal(t, "{read,comment}", Of(TypeComment, TypeRead).String())
}
